package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// Decision is the outcome of a single limiter check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// KeyFunc derives the rate limit key for a request.
type KeyFunc func(c echo.Context) string

// KeyByIP keys on the client address.
func KeyByIP(c echo.Context) string {
	return "ip:" + c.RealIP()
}

// KeyByUserOrIP prefers the authenticated user and falls back to the address.
func KeyByUserOrIP(c echo.Context) string {
	if uid, ok := c.Get("user_id").(string); ok && uid != "" {
		return "uid:" + uid
	}
	return KeyByIP(c)
}

// RateLimit rejects requests the limiter refuses with 429. A limiter error
// fails open so an unavailable redis never takes the API down with it.
func RateLimit(l Limiter, prefix string, key KeyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d, err := l.Allow(c.Request().Context(), prefix+":"+key(c))
			if err != nil {
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Too many requests, please try again later")
			}
			return next(c)
		}
	}
}

// tokenBucket implements a token bucket rate limiter.
type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newTokenBucket(rate float64, burst int, now time.Time) *tokenBucket {
	return &tokenBucket{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: rate,
		lastRefill: now,
	}
}

func (b *tokenBucket) take(now time.Time) (bool, float64, time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := now.Sub(b.lastRefill).Seconds()
	b.tokens = math.Min(b.maxTokens, b.tokens+elapsed*b.refillRate)
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, b.tokens, 0
	}
	if b.refillRate <= 0 {
		return false, 0, time.Second
	}
	wait := time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
	return false, 0, wait
}

// MemoryLimiter keeps one token bucket per key in process memory. It is the
// fallback when REDIS_URL is unset and serves the global per-client limit.
type MemoryLimiter struct {
	rate    float64
	burst   int
	now     func() time.Time
	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	return &MemoryLimiter{
		rate:    rps,
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*tokenBucket),
	}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	bucket, ok := m.buckets[key]
	if !ok {
		bucket = newTokenBucket(m.rate, m.burst, now)
		m.buckets[key] = bucket
	}
	m.mu.Unlock()

	allowed, left, wait := bucket.take(now)
	return Decision{
		Allowed:    allowed,
		Limit:      m.burst,
		Remaining:  int(left),
		RetryAfter: wait,
	}, nil
}

// Sweep drops buckets that have been full for longer than idle, bounding
// memory held for one-off clients.
func (m *MemoryLimiter) Sweep(idle time.Duration) int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, b := range m.buckets {
		b.mu.Lock()
		stale := now.Sub(b.lastRefill) > idle
		b.mu.Unlock()
		if stale {
			delete(m.buckets, k)
			removed++
		}
	}
	return removed
}
