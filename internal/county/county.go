// Package county assembles county records from Wikidata entities: batched
// property lookups, label resolution, value formatting and link derivation,
// all behind the result cache.
package county

import (
	"context"

	"github.com/sells-group/county-api/pkg/wikidata"
)

// Wikidata property ids read for every county.
const (
	PropPopulation   = "P1082"
	PropCoordinates  = "P625"
	PropArea         = "P2046"
	PropCountry      = "P17"
	PropWebsite      = "P856"
	PropCapital      = "P36"
	PropOSMRelation  = "P402"
	PropParentRegion = "P131"
)

// RecordProperties is the property set fetched to build a County.
var RecordProperties = []string{
	PropPopulation,
	PropCoordinates,
	PropArea,
	PropCountry,
	PropWebsite,
	PropCapital,
	PropOSMRelation,
	PropParentRegion,
}

// Upstream fetches entities. wikidata.Client satisfies it.
type Upstream interface {
	GetEntity(ctx context.Context, id string, props ...string) (*wikidata.Entity, error)
}

// Labeler resolves an entity id to a display label. It never fails.
type Labeler interface {
	Resolve(ctx context.Context, id string) string
}
