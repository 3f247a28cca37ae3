package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func checkN(t *testing.T, l *LocalLimiter, key string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ok, err := l.Check(context.Background(), key)
		require.NoError(t, err)
		require.True(t, ok, "request %d should be admitted", i+1)
	}
}

func TestLocalLimiter_AdmitsUpToMax(t *testing.T) {
	l := NewLocalLimiter(time.Minute, 3)

	now := time.Now()
	l.now = func() time.Time { return now }

	checkN(t, l, "did:plc:alice", 3)

	ok, err := l.Check(context.Background(), "did:plc:alice")
	require.NoError(t, err)
	require.False(t, ok)

	// Other keys are unaffected.
	ok, err = l.Check(context.Background(), "did:plc:bob")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLocalLimiter_SlidingWindowFreesOneSlot(t *testing.T) {
	l := NewLocalLimiter(time.Minute, 3)

	base := time.Now()
	now := base
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		now = base.Add(time.Duration(i) * 10 * time.Second)
		ok, err := l.Check(context.Background(), "k")
		require.NoError(t, err)
		require.True(t, ok)
	}

	now = base.Add(30 * time.Second)
	ok, err := l.Check(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, ok)

	// Move just past the window from the oldest admitted call: exactly
	// one slot frees.
	now = base.Add(time.Minute + time.Second)
	ok, err = l.Check(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.Check(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLocalLimiter_Prune(t *testing.T) {
	l := NewLocalLimiter(time.Minute, 3)

	now := time.Now()
	l.now = func() time.Time { return now }

	checkN(t, l, "stale", 1)

	now = now.Add(30 * time.Second)
	checkN(t, l, "fresh", 1)

	now = now.Add(45 * time.Second) // stale's window is empty, fresh's is not

	removed, err := l.Prune(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	removed, err = l.Prune(context.Background())
	require.NoError(t, err)
	require.Zero(t, removed)
}

func TestLocalLimiter_Defaults(t *testing.T) {
	l := NewLocalLimiter(0, 0)
	require.Equal(t, DefaultWindow, l.window)
	require.Equal(t, DefaultMaxRequests, l.max)
}
