package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/beacon/ports"
)

// slidingWindow runs the whole evict/count/conditionally-insert sequence
// server-side, so concurrent callers across instances cannot race past
// the limit. KEYS[1] is the window set; ARGV are now (ms), window (ms),
// max requests and a unique member for this event.
var slidingWindow = redis.NewScript(`
redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, ARGV[1] - ARGV[2])
local count = redis.call('ZCARD', KEYS[1])
if count < tonumber(ARGV[3]) then
	redis.call('ZADD', KEYS[1], ARGV[1], ARGV[4])
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
	return 1
end
return 0
`)

// RedisLimiter is the distributed sliding-window limiter. It produces
// the same admit/deny decisions as LocalLimiter for identical event-time
// sequences, executed as one indivisible server-side operation.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	window time.Duration
	max    int
}

// NewRedisLimiter creates a redis-backed limiter. Zero window or max
// selects the defaults.
func NewRedisLimiter(client *redis.Client, window time.Duration, max int) *RedisLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMaxRequests
	}
	return &RedisLimiter{
		client: client,
		prefix: "beacon:rate:",
		window: window,
		max:    max,
	}
}

// Check runs the sliding-window script for the key.
func (l *RedisLimiter) Check(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d-%s", now, uuid.New().String())

	res, err := slidingWindow.Run(ctx, l.client,
		[]string{l.prefix + key},
		now, l.window.Milliseconds(), l.max, member,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit script failed: %w", err)
	}

	return res == 1, nil
}

// Prune is a no-op: the script refreshes a PEXPIRE on every admission,
// so idle keys fall out of redis on their own.
func (l *RedisLimiter) Prune(ctx context.Context) (int, error) {
	return 0, nil
}

var _ ports.RateLimiter = (*RedisLimiter)(nil)
