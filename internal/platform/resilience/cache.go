package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/hoken-app/insurance-portal/internal/platform/cache"
)

// GuardedCache skips the wrapped cache while its breaker is open, so an
// unreachable Redis costs one fast error instead of a dial timeout per call.
// Misses do not count as failures.
type GuardedCache struct {
	next    cache.Cache
	breaker *CircuitBreaker
}

// GuardCache wraps c with a breaker built from config. config.IsFailure is
// replaced so that cache misses never open the breaker.
func GuardCache(c cache.Cache, config CircuitBreakerConfig) *GuardedCache {
	config.IsFailure = func(err error) bool {
		return err != nil && !errors.Is(err, cache.ErrCacheMiss)
	}
	return &GuardedCache{next: c, breaker: NewCircuitBreaker(config)}
}

// Breaker exposes the breaker for health reporting
func (g *GuardedCache) Breaker() *CircuitBreaker {
	return g.breaker
}

func (g *GuardedCache) Get(ctx context.Context, key string, dest interface{}) error {
	return g.breaker.Execute(ctx, func() error {
		return g.next.Get(ctx, key, dest)
	})
}

func (g *GuardedCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return g.breaker.Execute(ctx, func() error {
		return g.next.Set(ctx, key, value, ttl)
	})
}

func (g *GuardedCache) Delete(ctx context.Context, keys ...string) error {
	return g.breaker.Execute(ctx, func() error {
		return g.next.Delete(ctx, keys...)
	})
}

func (g *GuardedCache) InvalidatePattern(ctx context.Context, pattern string) error {
	return g.breaker.Execute(ctx, func() error {
		return g.next.InvalidatePattern(ctx, pattern)
	})
}
