package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/beacon/ports"
)

// runChallengeSuite asserts the ChallengeStore contract shared by every
// implementation.
func runChallengeSuite(t *testing.T, s ports.ChallengeStore) {
	ctx := context.Background()

	t.Run("consume once", func(t *testing.T) {
		nonce, err := s.Create(ctx, "did:plc:alice")
		require.NoError(t, err)
		require.NotEmpty(t, nonce)

		ok, err := s.Consume(ctx, "did:plc:alice", nonce)
		require.NoError(t, err)
		require.True(t, ok)

		ok, err = s.Consume(ctx, "did:plc:alice", nonce)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("mismatch spends the challenge", func(t *testing.T) {
		nonce, err := s.Create(ctx, "did:plc:bob")
		require.NoError(t, err)

		ok, err := s.Consume(ctx, "did:plc:bob", "wrong")
		require.NoError(t, err)
		require.False(t, ok)

		// The record is gone even though the nonce never matched.
		ok, err = s.Consume(ctx, "did:plc:bob", nonce)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("create replaces pending challenge", func(t *testing.T) {
		first, err := s.Create(ctx, "did:plc:carol")
		require.NoError(t, err)
		second, err := s.Create(ctx, "did:plc:carol")
		require.NoError(t, err)
		require.NotEqual(t, first, second)

		ok, err := s.Consume(ctx, "did:plc:carol", first)
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("unknown did", func(t *testing.T) {
		ok, err := s.Consume(ctx, "did:plc:nobody", "whatever")
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestMemoryChallengeStore(t *testing.T) {
	runChallengeSuite(t, NewMemoryChallengeStore())
}

func TestMemoryChallengeStore_Expiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryChallengeStore()

	now := time.Now()
	s.now = func() time.Time { return now }

	nonce, err := s.Create(ctx, "did:plc:alice")
	require.NoError(t, err)

	now = now.Add(ChallengeTTL + time.Second)

	ok, err := s.Consume(ctx, "did:plc:alice", nonce)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemoryChallengeStore_Prune(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryChallengeStore()

	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.Create(ctx, "did:plc:old1")
	require.NoError(t, err)
	_, err = s.Create(ctx, "did:plc:old2")
	require.NoError(t, err)

	now = now.Add(ChallengeTTL + time.Second)
	_, err = s.Create(ctx, "did:plc:fresh")
	require.NoError(t, err)

	removed, err := s.Prune(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	removed, err = s.Prune(ctx)
	require.NoError(t, err)
	require.Zero(t, removed)
}

// redisClient returns a client for integration tests, skipping when no
// redis is configured.
func redisClient(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	return redis.NewClient(opts)
}

func TestRedisChallengeStore(t *testing.T) {
	client := redisClient(t)
	defer client.Close()

	runChallengeSuite(t, NewRedisChallengeStore(client))
}
