package cache

import (
	"context"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryBackend keeps entries in process. Expired entries are invisible to Get
// and Keys at once; the janitor reclaims their memory every cleanup interval.
type MemoryBackend struct {
	gc *gocache.Cache
}

// NewMemoryBackend creates an in-process backend. A non-positive cleanup
// interval disables the janitor.
func NewMemoryBackend(cleanup time.Duration) *MemoryBackend {
	return &MemoryBackend{gc: gocache.New(gocache.NoExpiration, cleanup)}
}

// Set implements Backend.
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	// Copy so callers cannot alias the stored bytes.
	buf := make([]byte, len(value))
	copy(buf, value)
	m.gc.Set(key, buf, ttl)
	return nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.gc.Get(key)
	if !ok {
		return nil, false, nil
	}
	data, ok := v.([]byte)
	if !ok {
		m.gc.Delete(key)
		return nil, false, nil
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// Keys implements Backend.
func (m *MemoryBackend) Keys(_ context.Context, pattern string) ([]string, error) {
	items := m.gc.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		if pattern == "*" {
			keys = append(keys, k)
			continue
		}
		ok, err := path.Match(pattern, k)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.gc.Delete(key)
	return nil
}

// Clear implements Backend.
func (m *MemoryBackend) Clear(_ context.Context) error {
	m.gc.Flush()
	return nil
}

// DeleteExpired sweeps expired entries immediately.
func (m *MemoryBackend) DeleteExpired() {
	m.gc.DeleteExpired()
}

// Close implements Backend. The janitor goroutine stops once the backend is
// garbage collected.
func (m *MemoryBackend) Close() error {
	return nil
}
