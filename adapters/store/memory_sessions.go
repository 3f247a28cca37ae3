package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/layer-3/beacon/core"
	"github.com/layer-3/beacon/ports"
)

// DefaultSessionTTL applies when a caller passes a zero TTL to Create.
const DefaultSessionTTL = 8 * time.Hour

// ErrNonPositiveTTL is returned by session store constructors when the
// configured default TTL is zero or negative.
var ErrNonPositiveTTL = errors.New("session ttl must be positive")

// MemorySessionStore is an in-process implementation of
// ports.SessionStore. It keeps a per-DID token index so revocation and
// handle propagation do not scan the whole session map.
type MemorySessionStore struct {
	mu         sync.RWMutex
	sessions   map[string]*core.Session
	byDID      map[string]map[string]struct{} // did -> set of tokens
	defaultTTL time.Duration

	now func() time.Time
}

// NewMemorySessionStore creates an in-memory session store with the
// given default TTL. A non-positive TTL is rejected.
func NewMemorySessionStore(defaultTTL time.Duration) (*MemorySessionStore, error) {
	if defaultTTL <= 0 {
		return nil, ErrNonPositiveTTL
	}
	return &MemorySessionStore{
		sessions:   make(map[string]*core.Session),
		byDID:      make(map[string]map[string]struct{}),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}, nil
}

// Create opens a new session independent of any prior session for the
// DID, supporting multi-device logins.
func (s *MemorySessionStore) Create(ctx context.Context, did, handle string, ttl time.Duration) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sessions[token] = &core.Session{
		Token:     token,
		DID:       did,
		Handle:    handle,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if s.byDID[did] == nil {
		s.byDID[did] = make(map[string]struct{})
	}
	s.byDID[did][token] = struct{}{}

	return token, nil
}

// Get returns the session for a token. An expired session behaves
// identically to a miss and is evicted on the way out.
func (s *MemorySessionStore) Get(ctx context.Context, token string) (*core.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	if sess.Expired(s.now()) {
		s.evict(token, sess.DID)
		return nil, nil
	}

	copied := *sess
	return &copied, nil
}

// Delete removes a single session; deleting a missing token is a no-op.
func (s *MemorySessionStore) Delete(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[token]; ok {
		s.evict(token, sess.DID)
	}
	return nil
}

// RevokeByDID evicts every session held by the DID, returning whether
// any existed. Used to force-logout a banned DID.
func (s *MemorySessionStore) RevokeByDID(ctx context.Context, did string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, ok := s.byDID[did]
	if !ok || len(tokens) == 0 {
		return false, nil
	}
	for token := range tokens {
		delete(s.sessions, token)
	}
	delete(s.byDID, did)
	return true, nil
}

// UpdateHandle propagates a handle change to every live session of the
// DID without rotating tokens.
func (s *MemorySessionStore) UpdateHandle(ctx context.Context, did, handle string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for token := range s.byDID[did] {
		if sess, ok := s.sessions[token]; ok {
			sess.Handle = handle
		}
	}
	return nil
}

// HasDID reports whether the DID holds at least one unexpired session.
func (s *MemorySessionStore) HasDID(ctx context.Context, did string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	for token := range s.byDID[did] {
		if sess, ok := s.sessions[token]; ok && !sess.Expired(now) {
			return true, nil
		}
	}
	return false, nil
}

// Prune evicts expired sessions and returns the count removed.
func (s *MemorySessionStore) Prune(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, sess := range s.sessions {
		if sess.Expired(now) {
			s.evict(token, sess.DID)
			removed++
		}
	}
	return removed, nil
}

// evict removes a token from both indexes. Caller holds the write lock.
func (s *MemorySessionStore) evict(token, did string) {
	delete(s.sessions, token)
	if tokens, ok := s.byDID[did]; ok {
		delete(tokens, token)
		if len(tokens) == 0 {
			delete(s.byDID, did)
		}
	}
}

var _ ports.SessionStore = (*MemorySessionStore)(nil)
