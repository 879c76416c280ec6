package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/county-api/internal/config"
	"github.com/sells-group/county-api/internal/httpapi"
	"github.com/sells-group/county-api/internal/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the county HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initCounty(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		limiter := newClientLimiter(cfg.RateLimit)
		go pruneLimiter(ctx, limiter, time.Duration(cfg.RateLimit.WindowMins)*time.Minute)
		go sweepExpired(ctx, env, time.Duration(cfg.Cache.CleanupIntervalSecs)*time.Second)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           buildRouter(env, limiter),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port), zap.String("cache_backend", cfg.Cache.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func newClientLimiter(c config.RateLimitConfig) *ratelimit.PerKey {
	return ratelimit.NewPerKey(c.Requests, time.Duration(c.WindowMins)*time.Minute)
}

// buildRouter wires the HTTP API to env.
func buildRouter(env *countyEnv, limiter *ratelimit.PerKey) http.Handler {
	opts := []httpapi.Option{httpapi.WithGatherer(env.Registry)}
	if limiter != nil {
		opts = append(opts, httpapi.WithLimiter(limiter))
	}
	return httpapi.NewRouter(env.Service, opts...)
}

// pruneLimiter drops idle client limiters every interval until ctx ends.
func pruneLimiter(ctx context.Context, l *ratelimit.PerKey, every time.Duration) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := l.Prune(); n > 0 {
				zap.L().Debug("pruned idle client limiters", zap.Int("count", n))
			}
		}
	}
}

// expirySweeper is implemented by backends that only evict expired rows on read.
type expirySweeper interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// sweepExpired periodically removes expired entries from backends without
// active expiry.
func sweepExpired(ctx context.Context, env *countyEnv, every time.Duration) {
	sw, ok := env.Backend.(expirySweeper)
	if !ok || every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := sw.DeleteExpired(ctx)
			if err != nil {
				zap.L().Warn("sweep expired cache entries", zap.Error(err))
				continue
			}
			if n > 0 {
				zap.L().Debug("swept expired cache entries", zap.Int("count", n))
			}
		}
	}
}
