package ports

import (
	"context"
	"time"

	"github.com/layer-3/beacon/core"
)

// SessionStore manages bearer-token session lifecycle. A DID may hold
// multiple concurrent sessions; the token is always the lookup key.
type SessionStore interface {
	// Create opens a new session and returns its token. A zero ttl
	// selects the store's default.
	Create(ctx context.Context, did, handle string, ttl time.Duration) (string, error)

	// Get returns the session for a token. An expired session behaves
	// identically to a miss and may be evicted opportunistically.
	Get(ctx context.Context, token string) (*core.Session, error)

	// Delete removes a single session.
	Delete(ctx context.Context, token string) error

	// RevokeByDID evicts every session held by the DID and reports
	// whether any existed.
	RevokeByDID(ctx context.Context, did string) (bool, error)

	// UpdateHandle propagates a handle change to every live session of
	// the DID without invalidating tokens.
	UpdateHandle(ctx context.Context, did, handle string) error

	// HasDID reports whether the DID holds at least one live session.
	HasDID(ctx context.Context, did string) (bool, error)

	// Prune evicts expired sessions and returns the count removed.
	Prune(ctx context.Context) (int, error)
}
