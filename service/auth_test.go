package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/layer-3/beacon/adapters/store"
	"github.com/layer-3/beacon/core"
)

func newAuth(t *testing.T) *AuthService {
	t.Helper()

	sessions, err := store.NewMemorySessionStore(store.DefaultSessionTTL)
	require.NoError(t, err)

	return NewAuthService(
		store.NewMemoryChallengeStore(),
		sessions,
		NewBlockService(testLogger()),
		nopPublisher{},
		testLogger(),
	)
}

func TestAuthService_HandshakeRoundTrip(t *testing.T) {
	auth := newAuth(t)
	ctx := context.Background()

	nonce, err := auth.CreateChallenge(ctx, "did:plc:alice")
	require.NoError(t, err)

	token, err := auth.Verify(ctx, "did:plc:alice", nonce, "alice.example")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	sess, err := auth.Authenticate(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "did:plc:alice", sess.DID)
	require.Equal(t, "alice.example", sess.Handle)

	// The challenge was spent by the first verify.
	_, err = auth.Verify(ctx, "did:plc:alice", nonce, "alice.example")
	require.ErrorIs(t, err, core.ErrInvalidChallenge)
}

func TestAuthService_VerifyRejectsBadNonce(t *testing.T) {
	auth := newAuth(t)
	ctx := context.Background()

	nonce, err := auth.CreateChallenge(ctx, "did:plc:alice")
	require.NoError(t, err)

	_, err = auth.Verify(ctx, "did:plc:alice", "not-the-nonce", "alice.example")
	require.ErrorIs(t, err, core.ErrInvalidChallenge)

	// A mismatch spends the challenge too.
	_, err = auth.Verify(ctx, "did:plc:alice", nonce, "alice.example")
	require.ErrorIs(t, err, core.ErrInvalidChallenge)
}

func TestAuthService_Logout(t *testing.T) {
	auth := newAuth(t)
	ctx := context.Background()

	nonce, err := auth.CreateChallenge(ctx, "did:plc:alice")
	require.NoError(t, err)
	token, err := auth.Verify(ctx, "did:plc:alice", nonce, "alice.example")
	require.NoError(t, err)

	require.NoError(t, auth.Logout(ctx, token))

	_, err = auth.Authenticate(ctx, token)
	require.ErrorIs(t, err, core.ErrInvalidSession)
}

func TestAuthService_RevokeByDID(t *testing.T) {
	auth := newAuth(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		nonce, err := auth.CreateChallenge(ctx, "did:plc:alice")
		require.NoError(t, err)
		_, err = auth.Verify(ctx, "did:plc:alice", nonce, "alice.example")
		require.NoError(t, err)
	}

	existed, err := auth.RevokeByDID(ctx, "did:plc:alice")
	require.NoError(t, err)
	require.True(t, existed)

	existed, err = auth.RevokeByDID(ctx, "did:plc:alice")
	require.NoError(t, err)
	require.False(t, existed)
}
