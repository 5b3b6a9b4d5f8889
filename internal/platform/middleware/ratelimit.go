package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hoken-app/insurance-portal/internal/platform/response"
)

// RateLimitConfig holds rate limit configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
	// KeyFunc defaults to the authenticated user, then the client IP
	KeyFunc func(r *http.Request) string
	// OnLimited is called with the key of every rejected request
	OnLimited func(key string)
	Now       func() time.Time
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		RequestsPerMinute: 600,
		BurstSize:         100,
		KeyFunc:           userOrClientIP,
	}
}

type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	mu          sync.Mutex
	buckets     map[string]*tokenBucket
	maxTokens   float64
	refillRate  float64
	now         func() time.Time
	lastCleanup time.Time
}

// NewRateLimiter creates a limiter allowing perMinute requests per key with bursts of burst
func NewRateLimiter(perMinute, burst int, now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &RateLimiter{
		buckets:     make(map[string]*tokenBucket),
		maxTokens:   float64(burst),
		refillRate:  float64(perMinute) / 60.0,
		now:         now,
		lastCleanup: now(),
	}
}

// Allow takes one token for key and returns the tokens left
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	// Full buckets carry no state worth keeping
	if now.Sub(rl.lastCleanup) > 10*time.Minute {
		for k, b := range rl.buckets {
			if b.tokens+now.Sub(b.lastRefill).Seconds()*rl.refillRate >= rl.maxTokens {
				delete(rl.buckets, k)
			}
		}
		rl.lastCleanup = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &tokenBucket{tokens: rl.maxTokens, lastRefill: now}
		rl.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastRefill).Seconds() * rl.refillRate
	if b.tokens > rl.maxTokens {
		b.tokens = rl.maxTokens
	}
	b.lastRefill = now

	if b.tokens < 1 {
		return false, 0
	}
	b.tokens--
	return true, int(b.tokens)
}

// RateLimit creates rate limiting middleware. Register it after the auth
// middleware so requests are keyed by user.
func RateLimit(config *RateLimitConfig) func(http.Handler) http.Handler {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	keyFunc := config.KeyFunc
	if keyFunc == nil {
		keyFunc = userOrClientIP
	}

	limiter := NewRateLimiter(config.RequestsPerMinute, config.BurstSize, config.Now)
	limit := strconv.Itoa(config.RequestsPerMinute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)

			allowed, remaining := limiter.Allow(key)
			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				if config.OnLimited != nil {
					config.OnLimited(key)
				}
				w.Header().Set("Retry-After", "60")
				response.Error(w, response.ErrTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func userOrClientIP(r *http.Request) string {
	if userID, ok := ExtractUserID(r.Context()); ok && userID != "" {
		return "user:" + userID
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
