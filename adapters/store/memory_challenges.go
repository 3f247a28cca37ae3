package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/beacon/core"
	"github.com/layer-3/beacon/ports"
)

// ChallengeTTL is how long an issued nonce stays valid.
const ChallengeTTL = 60 * time.Second

// MemoryChallengeStore is an in-process implementation of
// ports.ChallengeStore. It has no native expiry, so Prune must run
// periodically to reclaim memory from abandoned handshakes.
type MemoryChallengeStore struct {
	mu         sync.RWMutex
	challenges map[string]core.Challenge

	now func() time.Time
}

// NewMemoryChallengeStore creates an empty in-memory challenge store.
func NewMemoryChallengeStore() *MemoryChallengeStore {
	return &MemoryChallengeStore{
		challenges: make(map[string]core.Challenge),
		now:        time.Now,
	}
}

// Create issues a new nonce for the DID, replacing any pending challenge.
func (s *MemoryChallengeStore) Create(ctx context.Context, did string) (string, error) {
	nonce, err := generateToken()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[did] = core.Challenge{
		DID:       did,
		Nonce:     nonce,
		ExpiresAt: s.now().Add(ChallengeTTL),
	}
	return nonce, nil
}

// Consume deletes the DID's challenge record unconditionally and reports
// whether it existed, was unexpired and matched the supplied nonce.
func (s *MemoryChallengeStore) Consume(ctx context.Context, did string, nonce string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.challenges[did]
	if !ok {
		return false, nil
	}
	delete(s.challenges, did)

	if ch.Expired(s.now()) {
		return false, nil
	}
	return ch.Nonce == nonce, nil
}

// Prune removes expired challenges and returns the count removed.
func (s *MemoryChallengeStore) Prune(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for did, ch := range s.challenges {
		if ch.Expired(now) {
			delete(s.challenges, did)
			removed++
		}
	}
	return removed, nil
}

var _ ports.ChallengeStore = (*MemoryChallengeStore)(nil)
