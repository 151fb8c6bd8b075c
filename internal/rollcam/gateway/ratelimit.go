package gateway

import (
	"sync"
	"time"
)

// rateLimiter is a simple fixed-window rate limiter keyed by client address.
// Each client has an independent counter that resets after window duration.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*windowBucket
	now     func() time.Time
}

type windowBucket struct {
	count   int
	resetAt time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*windowBucket),
		now:     time.Now,
	}
}

// Allow returns true if the client is within its rate limit, false when exceeded.
// It is safe for concurrent use from multiple goroutines.
func (r *rateLimiter) Allow(client string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()

	b, ok := r.buckets[client]
	if !ok || now.After(b.resetAt) {
		r.sweep(now)
		r.buckets[client] = &windowBucket{count: 1, resetAt: now.Add(r.window)}
		return true
	}
	if b.count >= r.limit {
		return false
	}
	b.count++
	return true
}

// sweep drops expired buckets so one-off clients do not accumulate.
// Callers hold r.mu.
func (r *rateLimiter) sweep(now time.Time) {
	for k, b := range r.buckets {
		if now.After(b.resetAt) {
			delete(r.buckets, k)
		}
	}
}
