package county

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/county-api/internal/cache"
	"github.com/sells-group/county-api/pkg/wikidata"
)

// fakeUpstream serves entities from memory and counts calls per id.
type fakeUpstream struct {
	mu       sync.Mutex
	entities map[string]*wikidata.Entity
	fail     map[string]error
	calls    map[string]int
	jitter   time.Duration
}

func newFakeUpstream(ents ...*wikidata.Entity) *fakeUpstream {
	f := &fakeUpstream{
		entities: make(map[string]*wikidata.Entity),
		fail:     make(map[string]error),
		calls:    make(map[string]int),
	}
	for _, e := range ents {
		f.entities[e.ID] = e
	}
	return f
}

func (f *fakeUpstream) GetEntity(ctx context.Context, id string, _ ...string) (*wikidata.Entity, error) {
	f.mu.Lock()
	f.calls[id]++
	ent, ok := f.entities[id]
	err := f.fail[id]
	jitter := f.jitter
	f.mu.Unlock()

	if jitter > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(rand.N(jitter)):
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, eris.Wrapf(wikidata.ErrNotFound, "fake: %s", id)
	}
	return ent, nil
}

func (f *fakeUpstream) callsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func (f *fakeUpstream) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// failingBackend fails every cache operation.
type failingBackend struct{}

var errBackendDown = errors.New("backend down")

func (failingBackend) Set(context.Context, string, []byte, time.Duration) error { return errBackendDown }
func (failingBackend) Get(context.Context, string) ([]byte, bool, error)         { return nil, false, errBackendDown }
func (failingBackend) Keys(context.Context, string) ([]string, error)            { return nil, errBackendDown }
func (failingBackend) Delete(context.Context, string) error                      { return errBackendDown }
func (failingBackend) Clear(context.Context) error                               { return errBackendDown }
func (failingBackend) Close() error                                              { return nil }

func newMemoryCache() *cache.Cache {
	return cache.New(cache.NewMemoryBackend(0))
}

// staticLabels resolves from a fixed map.
type staticLabels map[string]string

func (s staticLabels) Resolve(_ context.Context, id string) string {
	if l, ok := s[id]; ok {
		return l
	}
	return NotAvailable
}

func entity(id, label string, claims ...wikidata.Claim) *wikidata.Entity {
	e := &wikidata.Entity{ID: id, Claims: make(map[string][]wikidata.Claim)}
	if label != "" {
		e.Labels = map[string]wikidata.Label{"en": {Language: "en", Value: label}}
	}
	for _, c := range claims {
		p := c.Mainsnak.Property
		e.Claims[p] = append(e.Claims[p], c)
	}
	return e
}

func claim(prop, kind string, value any) wikidata.Claim {
	raw, err := json.Marshal(value)
	if err != nil {
		panic(err)
	}
	return wikidata.Claim{
		Rank: "normal",
		Mainsnak: wikidata.Snak{
			SnakType:  "value",
			Property:  prop,
			DataValue: &wikidata.DataValue{Type: kind, Value: raw},
		},
	}
}

func itemClaim(prop, id string) wikidata.Claim {
	return claim(prop, wikidata.KindEntityID, map[string]any{"entity-type": "item", "id": id})
}

func stringClaim(prop, s string) wikidata.Claim {
	return claim(prop, wikidata.KindString, s)
}

func quantityClaim(prop, amount, unit string) wikidata.Claim {
	return claim(prop, wikidata.KindQuantity, map[string]string{"amount": amount, "unit": unit})
}

func globeClaim(prop string, lat, lon float64) wikidata.Claim {
	return claim(prop, wikidata.KindGlobeCoordinate, map[string]any{
		"latitude":  lat,
		"longitude": lon,
		"altitude":  nil,
		"precision": 0.0001,
		"globe":     "http://www.wikidata.org/entity/Q2",
	})
}

// travisUpstream is Travis County, Texas with every referenced entity.
func travisUpstream() *fakeUpstream {
	return newFakeUpstream(
		entity("Q26587", "Travis County",
			quantityClaim(PropPopulation, "+1290188", "1"),
			quantityClaim(PropPopulation, "+1024266", "1"),
			globeClaim(PropCoordinates, 30.33, -97.78),
			quantityClaim(PropArea, "+2647.5", "http://www.wikidata.org/entity/Q712226"),
			itemClaim(PropCountry, "Q30"),
			stringClaim(PropWebsite, "https://www.traviscountytx.gov"),
			itemClaim(PropCapital, "Q16559"),
			stringClaim(PropOSMRelation, "1837698"),
			itemClaim(PropParentRegion, "Q1439"),
		),
		entity("Q30", "United States"),
		entity("Q16559", "Austin"),
		entity("Q1439", "Texas"),
		entity("Q712226", "square kilometre"),
		entity("Q2", "Earth"),
	)
}
