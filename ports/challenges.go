package ports

import "context"

// ChallengeStore issues and consumes one-time authentication nonces.
// A DID has at most one pending challenge; Create replaces any prior one.
type ChallengeStore interface {
	// Create issues a new nonce for the DID, replacing any pending challenge.
	Create(ctx context.Context, did string) (string, error)

	// Consume deletes the DID's challenge record unconditionally and
	// reports whether it existed, was unexpired and matched the nonce.
	// A challenge is single-use even when the nonce does not match.
	Consume(ctx context.Context, did string, nonce string) (bool, error)

	// Prune evicts expired challenges and returns the count removed.
	// Backends with native TTL expiry treat this as a no-op.
	Prune(ctx context.Context) (int, error)
}
