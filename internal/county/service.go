package county

import (
	"context"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/county-api/internal/cache"
	"github.com/sells-group/county-api/internal/model"
	"github.com/sells-group/county-api/pkg/wikidata"
)

var (
	// ErrInvalidID is returned for ids that are not Wikidata item ids.
	ErrInvalidID = eris.New("county: invalid entity id")
	// ErrNotFound is returned when the upstream has no such entity.
	ErrNotFound = eris.New("county: not found")
	// ErrNotImplemented is returned by operations without a data source.
	ErrNotImplemented = eris.New("county: not implemented")
)

const (
	unknownName       = "Unknown"
	osmRelationPrefix = "https://www.openstreetmap.org/relation/"
)

var itemIDPattern = regexp.MustCompile(`^Q[0-9]+$`)

// ValidateID reports whether id is a Wikidata item id like "Q26587".
func ValidateID(id string) error {
	if !itemIDPattern.MatchString(id) {
		return eris.Wrapf(ErrInvalidID, "county: %q", id)
	}
	return nil
}

// CountySource lists every county. No bundled source exists yet; inject one
// with WithCountySource.
type CountySource interface {
	ListCounties(ctx context.Context) ([]model.CountySummary, error)
}

type unimplementedSource struct{}

func (unimplementedSource) ListCounties(context.Context) ([]model.CountySummary, error) {
	return nil, eris.Wrap(ErrNotImplemented, "county: no county source configured")
}

// Option configures a Service.
type Option func(*Service)

// WithTTL sets the expiry of records, labels and property batches. Zero keeps
// the cache default.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.ttl = ttl
	}
}

// WithCountySource sets the source of the counties listing.
func WithCountySource(src CountySource) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// Service assembles county records and maintains the shared cache.
type Service struct {
	cache  *cache.Cache
	labels *LabelResolver
	props  *PropertyFetcher
	source CountySource
	ttl    time.Duration
}

// NewService creates a Service reading from up and caching in c.
func NewService(up Upstream, c *cache.Cache, opts ...Option) *Service {
	s := &Service{
		cache:  c,
		source: unimplementedSource{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.labels = NewLabelResolver(up, c, s.ttl)
	s.props = NewPropertyFetcher(up, c, s.ttl)
	return s
}

// Labels returns the service's label resolver.
func (s *Service) Labels() *LabelResolver {
	return s.labels
}

// Get returns the county record for id, from cache when present.
func (s *Service) Get(ctx context.Context, id string) (*model.County, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	key := cache.RecordKey(id)
	var rec model.County
	ok, err := s.cache.Get(ctx, key, &rec)
	if err != nil {
		return nil, eris.Wrapf(err, "county: read record %s", id)
	}
	if ok {
		zap.L().Debug("county: cache hit", zap.String("id", id))
		return &rec, nil
	}

	set, err := s.props.Fetch(ctx, id, RecordProperties)
	if err != nil {
		return nil, err
	}

	state := unknownName
	if v := set.Value(PropParentRegion); v != nil && v.Entity != nil {
		state = s.labels.Resolve(ctx, v.Entity.ID)
	}

	var (
		country, capital *string
		area             *model.Area
		coords           *model.Coordinates
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		country = s.entityLabel(gctx, set.Value(PropCountry))
		return nil
	})
	g.Go(func() error {
		capital = s.entityLabel(gctx, set.Value(PropCapital))
		return nil
	})
	g.Go(func() error {
		area = FormatQuantity(gctx, s.labels, set.Value(PropArea))
		return nil
	})
	g.Go(func() error {
		coords = FormatGeoPoint(gctx, s.labels, set.Value(PropCoordinates))
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "county: resolve fields of %s", id)
	}

	name := set.Label
	if name == "" {
		name = unknownName
	}
	rec = model.County{
		Name:            name,
		Population:      ParsePopulation(set.Value(PropPopulation)),
		Coordinates:     coords,
		Area:            area,
		Country:         country,
		OfficialWebsite: stringValue(set.Value(PropWebsite)),
		Capital:         capital,
		WikipediaLink:   model.StringPtr(DeriveContentLink(set.Label, state)),
	}
	if osm := stringValue(set.Value(PropOSMRelation)); osm != nil {
		rec.OSMRelationURL = model.StringPtr(osmRelationPrefix + *osm)
	}

	if err := s.cache.Put(ctx, key, rec, s.ttl); err != nil {
		return nil, eris.Wrapf(err, "county: store record %s", id)
	}
	zap.L().Info("county: assembled record", zap.String("id", id), zap.String("name", name))
	return &rec, nil
}

// ListCounties returns every county from the configured source, cached under
// a single key.
func (s *Service) ListCounties(ctx context.Context) ([]model.CountySummary, error) {
	var list []model.CountySummary
	ok, err := s.cache.Get(ctx, cache.CountiesKey, &list)
	if err != nil {
		return nil, eris.Wrap(err, "county: read counties listing")
	}
	if ok {
		return list, nil
	}

	list, err = s.source.ListCounties(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Put(ctx, cache.CountiesKey, list, s.ttl); err != nil {
		return nil, eris.Wrap(err, "county: store counties listing")
	}
	return list, nil
}

// Status reports the cached keys.
func (s *Service) Status(ctx context.Context) (*cache.Status, error) {
	return s.cache.Status(ctx)
}

// Delete evicts one cache key.
func (s *Service) Delete(ctx context.Context, key string) error {
	return s.cache.Delete(ctx, key)
}

// Clear evicts every cache entry.
func (s *Service) Clear(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// entityLabel resolves an entity-valued property. Absent values stay nil and
// cost no upstream call.
func (s *Service) entityLabel(ctx context.Context, v *wikidata.Value) *string {
	if v == nil || v.Entity == nil {
		return nil
	}
	label := s.labels.Resolve(ctx, v.Entity.ID)
	return &label
}

func stringValue(v *wikidata.Value) *string {
	if v == nil || v.Text == "" {
		return nil
	}
	text := v.Text
	return &text
}
