package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const scanBatchSize = 100

// RedisOptions configures a RedisBackend.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisBackend stores entries in redis under a key prefix. Expiry is handled
// by redis TTLs.
type RedisBackend struct {
	client     *redis.Client
	prefix     string
	ownsClient bool
}

// NewRedisBackend connects to redis and verifies the connection.
func NewRedisBackend(ctx context.Context, opts RedisOptions) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrapf(err, "cache: connect to redis at %s", opts.Addr)
	}

	return &RedisBackend{client: client, prefix: opts.KeyPrefix, ownsClient: true}, nil
}

// NewRedisBackendWithClient uses an existing client. The caller keeps ownership
// of the client and must close it.
func NewRedisBackendWithClient(client *redis.Client, prefix string) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix}
}

// Set implements Backend.
func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.prefix+key, value, ttl).Err()
}

// Get implements Backend.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Keys implements Backend. Only keys under this backend's prefix are listed,
// with the prefix stripped.
func (r *RedisBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	err := r.scan(ctx, pattern, func(batch []string) error {
		for _, k := range batch {
			keys = append(keys, strings.TrimPrefix(k, r.prefix))
		}
		return nil
	})
	return keys, err
}

// Delete implements Backend.
func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Clear implements Backend. It removes only keys under the prefix and never
// flushes the database.
func (r *RedisBackend) Clear(ctx context.Context) error {
	return r.scan(ctx, "*", func(batch []string) error {
		if len(batch) == 0 {
			return nil
		}
		return r.client.Del(ctx, batch...).Err()
	})
}

// Close implements Backend.
func (r *RedisBackend) Close() error {
	if !r.ownsClient {
		return nil
	}
	return r.client.Close()
}

// scan walks prefixed keys matching pattern in batches.
func (r *RedisBackend) scan(ctx context.Context, pattern string, fn func([]string) error) error {
	var cursor uint64
	for {
		batch, next, err := r.client.Scan(ctx, cursor, r.prefix+pattern, scanBatchSize).Result()
		if err != nil {
			return err
		}
		if err := fn(batch); err != nil {
			return err
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
