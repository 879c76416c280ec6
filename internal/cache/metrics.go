package cache

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// cacheMetrics holds Prometheus counters for cache operations.
type cacheMetrics struct {
	hits   prometheus.Counter
	misses prometheus.Counter
	sets   prometheus.Counter
	errors prometheus.Counter
}

// newCacheMetrics creates the counters and registers them on reg when non-nil.
// Counters already registered by another Cache on the same registry are reused.
func newCacheMetrics(reg prometheus.Registerer) *cacheMetrics {
	return &cacheMetrics{
		hits:   registerCounter(reg, "hits_total", "Total number of cache hits"),
		misses: registerCounter(reg, "misses_total", "Total number of cache misses, including expired entries"),
		sets:   registerCounter(reg, "sets_total", "Total number of cache set operations"),
		errors: registerCounter(reg, "errors_total", "Total number of cache backend faults"),
	}
}

func registerCounter(reg prometheus.Registerer, name, help string) prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "county_api",
		Subsystem: "cache",
		Name:      name,
		Help:      help,
	})
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing
			}
		}
		zap.L().Warn("cache: metrics registration failed", zap.String("metric", name), zap.Error(err))
	}
	return c
}
