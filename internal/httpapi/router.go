// Package httpapi exposes the county service over HTTP.
package httpapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sells-group/county-api/internal/cache"
	"github.com/sells-group/county-api/internal/model"
	"github.com/sells-group/county-api/internal/ratelimit"
)

// Service is the county service consumed by the handlers.
type Service interface {
	Get(ctx context.Context, id string) (*model.County, error)
	ListCounties(ctx context.Context) ([]model.CountySummary, error)
	Status(ctx context.Context) (*cache.Status, error)
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Option configures the router.
type Option func(*router)

// WithLimiter limits requests per client address. Exceeding clients get 429.
func WithLimiter(l *ratelimit.PerKey) Option {
	return func(r *router) {
		r.limiter = l
	}
}

// WithGatherer serves metrics from g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(r *router) {
		r.gatherer = g
	}
}

type router struct {
	svc      Service
	limiter  *ratelimit.PerKey
	gatherer prometheus.Gatherer
}

// NewRouter builds the HTTP handler.
func NewRouter(svc Service, opts ...Option) http.Handler {
	rt := &router{svc: svc, gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(rt)
	}

	// Forwarded headers are not trusted; clients are keyed by socket address.
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		if rt.limiter != nil {
			r.Use(limitClients(rt.limiter))
		}
		r.Get("/", handleWelcome)
		r.Get("/county/{id}", rt.handleCounty)
		r.Get("/county/{id}/geojson", rt.handleCountyGeoJSON)
		r.Get("/map/counties", rt.handleListCounties)
		r.Get("/cache/status", rt.handleCacheStatus)
		r.Delete("/cache/{key}", rt.handleCacheDelete)
		r.Delete("/cache", rt.handleCacheClear)
	})

	return r
}
