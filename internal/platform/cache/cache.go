// Package cache is the shared read-through cache used for unread counts
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss means the key is absent; it is not a backend failure
var ErrCacheMiss = errors.New("cache miss")

// Cache is the subset of cache operations services depend on
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	InvalidatePattern(ctx context.Context, pattern string) error
}

// CacheAside returns the cached value for key, or loads it and writes it back.
// Cache errors never fail the call. The bool reports a cache hit.
func CacheAside[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func() (T, error)) (T, bool, error) {
	var cached T
	if c.Get(ctx, key, &cached) == nil {
		return cached, true, nil
	}

	v, err := load()
	if err != nil {
		return v, false, err
	}
	_ = c.Set(ctx, key, v, ttl)
	return v, false, nil
}
