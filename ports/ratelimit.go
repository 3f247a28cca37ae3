package ports

import "context"

// RateLimiter is sliding-window admission control keyed by an arbitrary
// string (DID, or client IP for unauthenticated callers). Implementations
// must produce identical admit/deny decisions for identical event-time
// sequences; they differ only in their cross-process safety guarantee.
type RateLimiter interface {
	// Check evicts events older than the window, then admits iff the
	// remaining count is below the maximum, recording the event on
	// admission. False means reject now, not retry.
	Check(ctx context.Context, key string) (bool, error)

	// Prune evicts keys whose window became fully empty and returns how
	// many were removed. Stores with native expiry treat this as a no-op.
	Prune(ctx context.Context) (int, error)
}
