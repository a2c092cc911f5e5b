package weather

import (
	"sync"
	"time"
)

// RateLimiter is a fixed-window admission counter used by provider adapters
// to respect upstream quotas. One limiter guards one upstream quota; it is
// not keyed per call type. State is in-memory only and never persisted.
type RateLimiter struct {
	maxRequests int
	window      time.Duration

	mu       sync.Mutex
	requests []time.Time
}

// NewRateLimiter creates a limiter admitting maxRequests per window.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
	}
}

// Allow prunes request timestamps older than the window, then admits the
// call iff the remaining count is below the limit. Check-and-increment is a
// single critical section. A false return is a hard stop: the caller must
// surface ErrRateLimited without attempting the upstream call.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	kept := rl.requests[:0]
	for _, t := range rl.requests {
		if now.Sub(t) < rl.window {
			kept = append(kept, t)
		}
	}
	rl.requests = kept

	if len(rl.requests) < rl.maxRequests {
		rl.requests = append(rl.requests, now)
		return true
	}
	return false
}
