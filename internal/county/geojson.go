package county

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/county-api/internal/model"
)

// Feature renders a county record as a GeoJSON Feature for map clients. The
// geometry is a Point at the record's coordinates, or null when it has none.
func Feature(id string, rec *model.County) *geojson.Feature {
	f := &geojson.Feature{
		ID: id,
		Properties: map[string]interface{}{
			"name":            rec.Name,
			"population":      rec.Population,
			"area":            rec.Area,
			"country":         rec.Country,
			"officialWebsite": rec.OfficialWebsite,
			"capital":         rec.Capital,
			"osmRelationURL":  rec.OSMRelationURL,
			"wikipediaLink":   rec.WikipediaLink,
		},
	}
	if c := rec.Coordinates; c != nil {
		f.Geometry = geom.NewPointFlat(geom.XY, []float64{c.Longitude, c.Latitude})
		f.Properties["globe"] = c.Globe
	}
	return f
}
