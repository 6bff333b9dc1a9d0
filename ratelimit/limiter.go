// Package ratelimit provides a small in-process fixed-window request
// limiter. State lives in the instance, so limits reset on restart and
// are per-replica; that is acceptable for the abuse surface it guards.
package ratelimit

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

type window struct {
	count   int
	started time.Time
}

// Limiter counts requests per client key within a rolling fixed window.
type Limiter struct {
	mu      sync.Mutex
	windows map[uint64]*window
	max     int
	period  time.Duration
}

// NewLimiter creates a limiter allowing max requests per period for each
// distinct key.
func NewLimiter(max int, period time.Duration) *Limiter {
	return &Limiter{
		windows: make(map[uint64]*window),
		max:     max,
		period:  period,
	}
}

// Allow records a request for key and reports whether it is admitted.
// When throttled it also returns how long until the window resets.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	h := xxhash.Sum64String(key)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[h]
	if !ok || now.Sub(w.started) >= l.period {
		l.windows[h] = &window{count: 1, started: now}
		return true, 0
	}
	if w.count >= l.max {
		return false, l.period - now.Sub(w.started)
	}
	w.count++
	return true, 0
}

// Prune drops windows older than the limiter period. Called periodically so
// the map does not grow with every client ever seen.
func (l *Limiter) Prune() {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for h, w := range l.windows {
		if now.Sub(w.started) >= l.period {
			delete(l.windows, h)
		}
	}
}
