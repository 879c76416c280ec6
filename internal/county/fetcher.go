package county

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/county-api/internal/cache"
	"github.com/sells-group/county-api/pkg/wikidata"
)

// PropertySet is the first value of each requested property of one entity.
// Requested properties without a value map to nil.
type PropertySet struct {
	EntityID string                     `json:"entityId"`
	Label    string                     `json:"label"`
	Values   map[string]*wikidata.Value `json:"values"`
}

// Value returns the value of prop, or nil.
func (s *PropertySet) Value(prop string) *wikidata.Value {
	if s == nil {
		return nil
	}
	return s.Values[prop]
}

// PropertyFetcher reads a batch of properties of one entity in a single
// upstream call and caches the batch.
type PropertyFetcher struct {
	upstream Upstream
	cache    *cache.Cache
	ttl      time.Duration
}

// NewPropertyFetcher creates a fetcher. A zero ttl uses the cache default.
func NewPropertyFetcher(up Upstream, c *cache.Cache, ttl time.Duration) *PropertyFetcher {
	return &PropertyFetcher{upstream: up, cache: c, ttl: ttl}
}

// Fetch returns the first value of each property in props for entity id.
// The same property set in any order shares one cache entry.
func (f *PropertyFetcher) Fetch(ctx context.Context, id string, props []string) (*PropertySet, error) {
	props = cache.NormalizeIDs(props)
	key := cache.PropertiesKey(id, props)

	var set PropertySet
	ok, err := f.cache.Get(ctx, key, &set)
	if err != nil {
		return nil, eris.Wrapf(err, "county: read property batch %s", id)
	}
	if ok {
		return &set, nil
	}

	ent, err := f.upstream.GetEntity(ctx, id, "claims", "labels")
	if err != nil {
		if errors.Is(err, wikidata.ErrNotFound) {
			return nil, eris.Wrapf(ErrNotFound, "county: entity %s", id)
		}
		return nil, eris.Wrapf(err, "county: fetch properties of %s", id)
	}

	set = PropertySet{
		EntityID: id,
		Label:    ent.Label("en"),
		Values:   make(map[string]*wikidata.Value, len(props)),
	}
	for _, p := range props {
		v, err := ent.FirstValue(p)
		if err != nil {
			return nil, eris.Wrapf(err, "county: decode %s of %s", p, id)
		}
		set.Values[p] = v
	}

	if err := f.cache.Put(ctx, key, set, f.ttl); err != nil {
		return nil, eris.Wrapf(err, "county: store property batch %s", id)
	}
	zap.L().Debug("county: fetched properties",
		zap.String("id", id),
		zap.Strings("props", props),
	)
	return &set, nil
}
