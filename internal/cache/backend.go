package cache

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/county-api/internal/config"
)

// Backend names accepted in configuration.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// NewBackend builds the backend named in cfg. When the redis or sqlite backend
// cannot be opened and cfg.AllowFallback is set, it logs a warning and returns
// an in-memory backend instead.
func NewBackend(ctx context.Context, cfg config.CacheConfig) (Backend, error) {
	cleanup := time.Duration(cfg.CleanupIntervalSecs) * time.Second

	var (
		b   Backend
		err error
	)
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryBackend(cleanup), nil
	case BackendRedis:
		b, err = NewRedisBackend(ctx, RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
	case BackendSQLite:
		b, err = NewSQLiteBackend(ctx, cfg.SQLite.Path)
	default:
		return nil, eris.Errorf("cache: unknown backend %q", cfg.Backend)
	}
	if err == nil {
		zap.L().Info("cache: backend ready", zap.String("backend", cfg.Backend))
		return b, nil
	}
	if !cfg.AllowFallback {
		return nil, eris.Wrapf(err, "cache: open %s backend", cfg.Backend)
	}

	zap.L().Warn("cache: backend unavailable, falling back to memory",
		zap.String("backend", cfg.Backend),
		zap.Error(err),
	)
	return NewMemoryBackend(cleanup), nil
}
