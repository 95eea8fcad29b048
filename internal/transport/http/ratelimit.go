package http

import (
	"sync"
	"time"
)

// rateLimiter admits up to limit sends per fixed window of one session. The
// window starts at the first send and a new one opens lazily on the first
// send after it closes. A non-positive limit admits everything.
type rateLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	started time.Time
	used    int
}

func newRateLimiter(limit int, window time.Duration, now func() time.Time) *rateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{limit: limit, window: window, now: now}
}

// allow records one send and reports whether it fits in the current window.
// Rejected sends do not count against the window.
func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t := r.now()
	if r.started.IsZero() || t.Sub(r.started) >= r.window {
		r.started = t
		r.used = 0
	}
	if r.used >= r.limit {
		return false
	}
	r.used++
	return true
}
