package rate

import (
	"math"
	"sync"

	"golang.org/x/time/rate"

	"github.com/code-payments/code-timelock-server/pkg/cache"
)

const (
	defaultMaxTrackedKeys = 100_000
)

// Limiter limits operations per key
type Limiter interface {
	Allow(key string) (bool, error)
}

// LimiterCtor creates a Limiter allowing rate operations per second per key
type LimiterCtor func(rate float64) Limiter

type localRateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters cache.Cache[*rate.Limiter]
}

// NewLocalRateLimiter returns an in memory Limiter. Bursts of up to the per
// second limit are allowed. Only the most recently used keys are tracked, so
// a key that falls out gets a fresh allowance.
func NewLocalRateLimiter(limit rate.Limit) Limiter {
	return &localRateLimiter{
		limit:    limit,
		burst:    int(math.Max(1, math.Floor(float64(limit)))),
		limiters: cache.NewCache[*rate.Limiter](defaultMaxTrackedKeys),
	}
}

// Allow implements Limiter.Allow
func (l *localRateLimiter) Allow(key string) (bool, error) {
	l.mu.Lock()
	limiter, ok := l.limiters.Retrieve(key)
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		if err := l.limiters.Insert(key, limiter, 1); err != nil {
			l.mu.Unlock()
			return false, err
		}
	}
	l.mu.Unlock()

	return limiter.Allow(), nil
}

// NoLimiter never limits operations
type NoLimiter struct{}

// Allow implements Limiter.Allow
func (n *NoLimiter) Allow(_ string) (bool, error) {
	return true, nil
}
