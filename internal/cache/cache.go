// Package cache provides the TTL result cache shared by label resolution,
// property batches and assembled county records.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultTTL applies when Put is called with a non-positive ttl.
const DefaultTTL = time.Hour

// ErrUnavailable matches any backend storage fault. A cache miss is never an error.
var ErrUnavailable = errors.New("cache: backend unavailable")

// BackendError wraps a storage fault from a Backend.
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("cache: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("cache: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUnavailable) true for every BackendError.
func (e *BackendError) Is(target error) bool { return target == ErrUnavailable }

// Backend is the key-value store under a Cache. Implementations must be safe
// for concurrent use and must never return an entry past its expiry.
type Backend interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Get returns the stored bytes and true, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Keys lists unexpired keys matching a glob pattern ("*" for all).
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Delete is a no-op for absent keys.
	Delete(ctx context.Context, key string) error
	// Clear removes every entry owned by this backend.
	Clear(ctx context.Context) error
	Close() error
}

// Status is a snapshot of the tracked keys. Expired entries are never listed.
type Status struct {
	Size int      `json:"size"`
	Keys []string `json:"keys"`
}

// Option configures a Cache.
type Option func(*Cache)

// WithDefaultTTL overrides DefaultTTL.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithRegisterer registers cache metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Cache) {
		c.registerer = reg
	}
}

// Cache stores JSON-encoded values in a Backend with a per-key expiry.
type Cache struct {
	backend    Backend
	ttl        time.Duration
	registerer prometheus.Registerer
	metrics    *cacheMetrics
}

// New wraps backend in a Cache.
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.metrics = newCacheMetrics(c.registerer)
	return c
}

// TTL returns the default expiry applied by Put.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Put stores value under key, overwriting any existing entry.
// A non-positive ttl means the cache default.
func (c *Cache) Put(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	data, err := json.Marshal(value)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %q", key)
	}
	if err := c.backend.Set(ctx, key, data, ttl); err != nil {
		c.metrics.errors.Inc()
		return &BackendError{Op: "set", Key: key, Err: err}
	}
	c.metrics.sets.Inc()
	zap.L().Debug("cache: stored", zap.String("key", key), zap.Duration("ttl", ttl))
	return nil
}

// Get decodes the entry for key into dest. It returns false on a miss or an
// expired entry. An entry that no longer decodes is dropped and counts as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.metrics.errors.Inc()
		return false, &BackendError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		c.metrics.misses.Inc()
		return false, nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		zap.L().Warn("cache: dropping undecodable entry", zap.String("key", key), zap.Error(err))
		_ = c.backend.Delete(ctx, key)
		c.metrics.misses.Inc()
		return false, nil
	}
	c.metrics.hits.Inc()
	return true, nil
}

// Status lists the unexpired keys in sorted order.
func (c *Cache) Status(ctx context.Context) (*Status, error) {
	keys, err := c.backend.Keys(ctx, "*")
	if err != nil {
		c.metrics.errors.Inc()
		return nil, &BackendError{Op: "keys", Err: err}
	}
	sort.Strings(keys)
	if keys == nil {
		keys = []string{}
	}
	return &Status{Size: len(keys), Keys: keys}, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.backend.Delete(ctx, key); err != nil {
		c.metrics.errors.Inc()
		return &BackendError{Op: "delete", Key: key, Err: err}
	}
	zap.L().Info("cache: deleted", zap.String("key", key))
	return nil
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.backend.Clear(ctx); err != nil {
		c.metrics.errors.Inc()
		return &BackendError{Op: "clear", Err: err}
	}
	zap.L().Info("cache: cleared")
	return nil
}

// Close releases the backend.
func (c *Cache) Close() error {
	return c.backend.Close()
}
