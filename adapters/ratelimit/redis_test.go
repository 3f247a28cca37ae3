package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestRedisLimiter(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	l := NewRedisLimiter(client, time.Minute, 3)
	key := "test-" + uuid.New().String()

	for i := 0; i < 3; i++ {
		ok, err := l.Check(context.Background(), key)
		require.NoError(t, err)
		require.True(t, ok, "request %d should be admitted", i+1)
	}

	ok, err := l.Check(context.Background(), key)
	require.NoError(t, err)
	require.False(t, ok)

	removed, err := l.Prune(context.Background())
	require.NoError(t, err)
	require.Zero(t, removed)
}
