package model

// County is the assembled record served for one county. Nil fields are
// absent upstream and encode as JSON null.
type County struct {
	Name            string       `json:"name" yaml:"name"`
	Population      *int64       `json:"population" yaml:"population"`
	Coordinates     *Coordinates `json:"coordinates" yaml:"coordinates"`
	Area            *Area        `json:"area" yaml:"area"`
	Country         *string      `json:"country" yaml:"country"`
	OfficialWebsite *string      `json:"officialWebsite" yaml:"official_website"`
	Capital         *string      `json:"capital" yaml:"capital"`
	OSMRelationURL  *string      `json:"osmRelationURL" yaml:"osm_relation_url"`
	WikipediaLink   *string      `json:"wikipediaLink" yaml:"wikipedia_link"`
}

// Area is a quantity with its unit resolved to a label.
type Area struct {
	Value string `json:"value" yaml:"value"`
	Unit  string `json:"unit" yaml:"unit"`
}

// Coordinates is a globe coordinate. Globe holds the resolved label of the
// globe entity (usually "Earth").
type Coordinates struct {
	Latitude  float64  `json:"latitude" yaml:"latitude"`
	Longitude float64  `json:"longitude" yaml:"longitude"`
	Altitude  *float64 `json:"altitude" yaml:"altitude"`
	Precision *float64 `json:"precision" yaml:"precision"`
	Globe     string   `json:"globe" yaml:"globe"`
}

// CountySummary is one entry of the counties listing.
type CountySummary struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	State string `json:"state,omitempty" yaml:"state,omitempty"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
