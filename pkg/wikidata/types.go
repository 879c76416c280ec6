package wikidata

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Value kinds as reported in a datavalue's "type" field.
const (
	KindString          = "string"
	KindQuantity        = "quantity"
	KindGlobeCoordinate = "globecoordinate"
	KindEntityID        = "wikibase-entityid"
	KindOther           = "other"
)

// EntitiesResponse is the wbgetentities response envelope.
type EntitiesResponse struct {
	Entities map[string]Entity `json:"entities"`
	Error    *APIError         `json:"error,omitempty"`
}

// APIError is the error object Wikidata returns with HTTP 200.
type APIError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

// Entity is a single item from wbgetentities.
type Entity struct {
	ID      string             `json:"id"`
	Missing *string            `json:"missing,omitempty"`
	Labels  map[string]Label   `json:"labels,omitempty"`
	Claims  map[string][]Claim `json:"claims,omitempty"`
}

// Label is a language-tagged label.
type Label struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// Claim is a statement about an entity.
type Claim struct {
	Mainsnak Snak   `json:"mainsnak"`
	Rank     string `json:"rank"`
}

// Snak is the (property, value) pair of a claim.
type Snak struct {
	SnakType  string     `json:"snaktype"`
	Property  string     `json:"property"`
	DataValue *DataValue `json:"datavalue,omitempty"`
}

// DataValue is the typed value of a snak. Value is decoded lazily by Decode.
type DataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Quantity is an amount with a unit entity URI ("1" for dimensionless).
type Quantity struct {
	Amount string `json:"amount"`
	Unit   string `json:"unit"`
}

// GlobeCoordinate is a point on a globe.
type GlobeCoordinate struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude"`
	Precision *float64 `json:"precision"`
	Globe     string   `json:"globe"`
}

// EntityRef points at another entity.
type EntityRef struct {
	ID         string `json:"id"`
	EntityType string `json:"entity-type,omitempty"`
	NumericID  int64  `json:"numeric-id,omitempty"`
}

// Value is a decoded datavalue. Exactly one payload field is set, matching Kind.
type Value struct {
	Kind     string           `json:"kind"`
	Text     string           `json:"text,omitempty"`
	Quantity *Quantity        `json:"quantity,omitempty"`
	Globe    *GlobeCoordinate `json:"globe,omitempty"`
	Entity   *EntityRef       `json:"entity,omitempty"`
	Raw      json.RawMessage  `json:"raw,omitempty"`
}

// Decode turns the raw datavalue into a Value.
func (dv *DataValue) Decode() (*Value, error) {
	switch dv.Type {
	case KindString:
		var s string
		if err := json.Unmarshal(dv.Value, &s); err != nil {
			return nil, eris.Wrap(err, "wikidata: decode string value")
		}
		return &Value{Kind: KindString, Text: s}, nil
	case KindQuantity:
		var q Quantity
		if err := json.Unmarshal(dv.Value, &q); err != nil {
			return nil, eris.Wrap(err, "wikidata: decode quantity value")
		}
		return &Value{Kind: KindQuantity, Quantity: &q}, nil
	case KindGlobeCoordinate:
		var g GlobeCoordinate
		if err := json.Unmarshal(dv.Value, &g); err != nil {
			return nil, eris.Wrap(err, "wikidata: decode globecoordinate value")
		}
		return &Value{Kind: KindGlobeCoordinate, Globe: &g}, nil
	case KindEntityID:
		var ref EntityRef
		if err := json.Unmarshal(dv.Value, &ref); err != nil {
			return nil, eris.Wrap(err, "wikidata: decode entity value")
		}
		return &Value{Kind: KindEntityID, Entity: &ref}, nil
	default:
		return &Value{Kind: KindOther, Raw: dv.Value}, nil
	}
}

// IsMissing reports whether Wikidata flagged the entity as nonexistent.
func (e *Entity) IsMissing() bool {
	return e.Missing != nil
}

// Label returns the label for lang, or "" if there is none.
func (e *Entity) Label(lang string) string {
	if l, ok := e.Labels[lang]; ok {
		return l.Value
	}
	return ""
}

// FirstValue decodes the first claim for property in upstream order.
// Later claims are ignored. Returns nil if the property has no claims or the
// first claim carries no value (novalue/somevalue).
func (e *Entity) FirstValue(property string) (*Value, error) {
	claims := e.Claims[property]
	if len(claims) == 0 {
		return nil, nil
	}
	dv := claims[0].Mainsnak.DataValue
	if dv == nil {
		return nil, nil
	}
	v, err := dv.Decode()
	if err != nil {
		return nil, eris.Wrapf(err, "wikidata: property %s", property)
	}
	return v, nil
}
