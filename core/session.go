package core

import "time"

// Challenge represents a pending authentication challenge.
// A DID has at most one active challenge at a time; issuing a new
// one replaces any pending record.
type Challenge struct {
	DID       string    // Decentralized identifier of the user
	Nonce     string    // Random nonce the client must echo back
	ExpiresAt time.Time // When the challenge expires
}

// Expired reports whether the challenge is past its TTL.
func (c Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Session represents an authenticated bearer-token session.
// The token is the lookup key; a DID may hold several concurrent
// sessions (one per device).
type Session struct {
	Token     string    // Opaque bearer token, lookup key
	DID       string    // Decentralized identifier of the user
	Handle    string    // Human-readable handle at session creation
	CreatedAt time.Time // When the session was created
	ExpiresAt time.Time // When the session expires
}

// Expired reports whether the session is past its TTL.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
