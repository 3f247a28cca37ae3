package store

import (
	"context"
	"crypto/subtle"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/beacon/ports"
)

// RedisChallengeStore is a redis implementation of ports.ChallengeStore.
// Expiry is delegated to redis key TTLs and single-use consumption is a
// single GETDEL, so the store is safe across service instances.
type RedisChallengeStore struct {
	client *redis.Client
	prefix string
}

// NewRedisChallengeStore creates a redis-backed challenge store.
func NewRedisChallengeStore(client *redis.Client) *RedisChallengeStore {
	return &RedisChallengeStore{
		client: client,
		prefix: "beacon:challenge:",
	}
}

func (s *RedisChallengeStore) key(did string) string {
	return s.prefix + did
}

// Create issues a new nonce for the DID. SET replaces any pending
// challenge, which is the single-challenge-per-DID policy.
func (s *RedisChallengeStore) Create(ctx context.Context, did string) (string, error) {
	nonce, err := generateToken()
	if err != nil {
		return "", err
	}

	if err := s.client.Set(ctx, s.key(did), nonce, ChallengeTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}
	return nonce, nil
}

// Consume atomically fetches and deletes the DID's challenge, then
// compares nonces. An expired key is already gone, so it reads as a miss.
func (s *RedisChallengeStore) Consume(ctx context.Context, did string, nonce string) (bool, error) {
	stored, err := s.client.GetDel(ctx, s.key(did)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to consume challenge: %w", err)
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(nonce)) == 1, nil
}

// Prune is a no-op: redis evicts expired keys natively.
func (s *RedisChallengeStore) Prune(ctx context.Context) (int, error) {
	return 0, nil
}

var _ ports.ChallengeStore = (*RedisChallengeStore)(nil)
