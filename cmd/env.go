package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/county-api/internal/cache"
	"github.com/sells-group/county-api/internal/config"
	"github.com/sells-group/county-api/internal/county"
	"github.com/sells-group/county-api/internal/ratelimit"
	"github.com/sells-group/county-api/internal/resilience"
	"github.com/sells-group/county-api/pkg/wikidata"
)

// countyEnv holds the cache, upstream client and service shared by the
// serve, county and cache commands.
type countyEnv struct {
	Backend  cache.Backend
	Cache    *cache.Cache
	Service  *county.Service
	Registry *prometheus.Registry
}

// Close releases the cache backend.
func (e *countyEnv) Close() {
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
}

// initCounty builds the environment from c. Callers should defer env.Close().
func initCounty(ctx context.Context, c *config.Config) (*countyEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	backend, err := cache.NewBackend(ctx, c.Cache)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	ttl := time.Duration(c.Cache.DefaultTTLSecs) * time.Second
	store := cache.New(backend, cache.WithDefaultTTL(ttl), cache.WithRegisterer(reg))

	waiter, err := ratelimit.New(c.Wikidata.RateLimitMode, time.Duration(c.Wikidata.MinDelayMs)*time.Millisecond)
	if err != nil {
		_ = store.Close()
		return nil, eris.Wrap(err, "init wikidata rate limiter")
	}

	clientOpts := []wikidata.Option{
		wikidata.WithBaseURL(c.Wikidata.BaseURL),
		wikidata.WithUserAgent(c.Wikidata.UserAgent),
		wikidata.WithWaiter(waiter),
		wikidata.WithMaxRetries(c.Wikidata.MaxRetries),
		wikidata.WithHTTPClient(&http.Client{Timeout: time.Duration(c.Wikidata.TimeoutSecs) * time.Second}),
		wikidata.WithRegisterer(reg),
	}
	if c.Wikidata.BreakerThreshold > 0 {
		breaker := resilience.NewBreaker(
			c.Wikidata.BreakerThreshold,
			time.Duration(c.Wikidata.BreakerResetSecs)*time.Second,
			resilience.WithStateHook(func(from, to resilience.State) {
				zap.L().Warn("wikidata circuit state changed",
					zap.Stringer("from", from),
					zap.Stringer("to", to),
				)
			}),
		)
		clientOpts = append(clientOpts, wikidata.WithBreaker(breaker))
	}
	client := wikidata.NewClient(clientOpts...)

	zap.L().Debug("county environment ready",
		zap.String("cache_backend", c.Cache.Backend),
		zap.Duration("ttl", ttl),
		zap.String("rate_limit_mode", c.Wikidata.RateLimitMode),
	)

	return &countyEnv{
		Backend:  backend,
		Cache:    store,
		Service:  county.NewService(client, store, county.WithTTL(ttl)),
		Registry: reg,
	}, nil
}
