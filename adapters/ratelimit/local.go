package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/beacon/ports"
)

const (
	// DefaultWindow is the trailing interval rate decisions consider.
	DefaultWindow = 60 * time.Second

	// DefaultMaxRequests is the admission ceiling within one window.
	DefaultMaxRequests = 60
)

// LocalLimiter is an in-process sliding-window limiter. Decisions are
// correct only within a single service instance; deployments sharing a
// key space across instances need the redis variant.
type LocalLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	window  time.Duration
	max     int

	now func() time.Time
}

// NewLocalLimiter creates a local limiter. Zero window or max selects
// the defaults.
func NewLocalLimiter(window time.Duration, max int) *LocalLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMaxRequests
	}
	return &LocalLimiter{
		windows: make(map[string][]time.Time),
		window:  window,
		max:     max,
		now:     time.Now,
	}
}

// Check evicts timestamps older than the window, admits iff the
// remaining count is below the maximum, and records the event on
// admission.
func (l *LocalLimiter) Check(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.windows[key][:0]
	for _, ts := range l.windows[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.max {
		l.windows[key] = kept
		return false, nil
	}

	l.windows[key] = append(kept, now)
	return true, nil
}

// Prune drops keys whose window became fully empty and returns how many
// were removed. A periodic housekeeping task calls this to bound memory.
func (l *LocalLimiter) Prune(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	removed := 0
	for key, window := range l.windows {
		live := false
		for _, ts := range window {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.windows, key)
			removed++
		}
	}
	return removed, nil
}

var _ ports.RateLimiter = (*LocalLimiter)(nil)
