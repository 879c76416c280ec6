package county

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/county-api/internal/cache"
)

// NotAvailable is the label returned when an entity has no English label or
// cannot be fetched.
const NotAvailable = "N/A"

// LabelResolver turns entity ids into English labels, caching each result.
type LabelResolver struct {
	upstream Upstream
	cache    *cache.Cache
	ttl      time.Duration
}

// NewLabelResolver creates a resolver. A zero ttl uses the cache default.
func NewLabelResolver(up Upstream, c *cache.Cache, ttl time.Duration) *LabelResolver {
	return &LabelResolver{upstream: up, cache: c, ttl: ttl}
}

// Resolve returns the English label of id. Entity URIs are accepted. It
// returns NotAvailable for an empty id, a label-less entity or an upstream
// failure. Only successful lookups are cached.
func (r *LabelResolver) Resolve(ctx context.Context, id string) string {
	id = EntityIDFromURI(id)
	if id == "" {
		zap.L().Warn("county: label requested for empty entity id")
		return NotAvailable
	}

	key := cache.LabelKey(id)
	var label string
	ok, err := r.cache.Get(ctx, key, &label)
	if err != nil {
		zap.L().Warn("county: label cache lookup failed", zap.String("id", id), zap.Error(err))
	}
	if ok {
		return label
	}

	ent, err := r.upstream.GetEntity(ctx, id, "labels")
	if err != nil {
		zap.L().Warn("county: label lookup failed", zap.String("id", id), zap.Error(err))
		return NotAvailable
	}

	label = ent.Label("en")
	if label == "" {
		label = NotAvailable
	}
	if err := r.cache.Put(ctx, key, label, r.ttl); err != nil {
		zap.L().Warn("county: label cache store failed", zap.String("id", id), zap.Error(err))
	}
	return label
}
