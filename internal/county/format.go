package county

import (
	"context"
	"strconv"
	"strings"

	"github.com/sells-group/county-api/internal/model"
	"github.com/sells-group/county-api/pkg/wikidata"
)

// EntityIDFromURI returns the last path segment of an entity URI such as
// "http://www.wikidata.org/entity/Q712226". Plain ids are returned unchanged.
func EntityIDFromURI(s string) string {
	if i := strings.LastIndexByte(s, '/'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// FormatQuantity formats a quantity as an Area with the unit entity resolved
// to its label. It returns nil unless v is a quantity with both amount and unit.
func FormatQuantity(ctx context.Context, labels Labeler, v *wikidata.Value) *model.Area {
	if v == nil || v.Quantity == nil || v.Quantity.Amount == "" || v.Quantity.Unit == "" {
		return nil
	}
	return &model.Area{
		Value: strings.TrimPrefix(v.Quantity.Amount, "+"),
		Unit:  itemLabel(ctx, labels, v.Quantity.Unit),
	}
}

// itemLabel resolves an item reference. References that are not item ids,
// such as the dimensionless unit "1", are NotAvailable without a lookup.
func itemLabel(ctx context.Context, labels Labeler, ref string) string {
	id := EntityIDFromURI(ref)
	if !itemIDPattern.MatchString(id) {
		return NotAvailable
	}
	return labels.Resolve(ctx, id)
}

// FormatGeoPoint copies a globe coordinate and resolves its globe entity to a
// label. It returns nil unless v is a globe coordinate.
func FormatGeoPoint(ctx context.Context, labels Labeler, v *wikidata.Value) *model.Coordinates {
	if v == nil || v.Globe == nil {
		return nil
	}
	g := v.Globe
	return &model.Coordinates{
		Latitude:  g.Latitude,
		Longitude: g.Longitude,
		Altitude:  g.Altitude,
		Precision: g.Precision,
		Globe:     itemLabel(ctx, labels, g.Globe),
	}
}

// ParsePopulation reads the integer part of a quantity amount, ignoring a
// leading "+". It returns nil for an absent or unparsable value.
func ParsePopulation(v *wikidata.Value) *int64 {
	if v == nil || v.Quantity == nil {
		return nil
	}
	s := strings.TrimPrefix(v.Quantity.Amount, "+")

	end := 0
	if strings.HasPrefix(s, "-") {
		end = 1
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return nil
	}
	return &n
}
