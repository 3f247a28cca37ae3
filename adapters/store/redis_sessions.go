package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/layer-3/beacon/core"
	"github.com/layer-3/beacon/ports"
)

// RedisSessionStore is a redis implementation of ports.SessionStore.
// Session records are JSON values under a native TTL; a per-DID set
// indexes tokens so revocation and handle propagation work without
// scanning the keyspace. Index members for already-expired sessions are
// lazily removed whenever they are encountered.
type RedisSessionStore struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
}

// NewRedisSessionStore creates a redis-backed session store with the
// given default TTL. A non-positive TTL is rejected.
func NewRedisSessionStore(client *redis.Client, defaultTTL time.Duration) (*RedisSessionStore, error) {
	if defaultTTL <= 0 {
		return nil, ErrNonPositiveTTL
	}
	return &RedisSessionStore{
		client:     client,
		prefix:     "beacon:session:",
		defaultTTL: defaultTTL,
	}, nil
}

func (s *RedisSessionStore) key(token string) string {
	return s.prefix + token
}

func (s *RedisSessionStore) didKey(did string) string {
	return s.prefix + "did:" + did
}

// Create opens a new session and indexes its token under the DID.
func (s *RedisSessionStore) Create(ctx context.Context, did, handle string, ttl time.Duration) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	now := time.Now()
	sess := core.Session{
		Token:     token,
		DID:       did,
		Handle:    handle,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return "", fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(token), data, ttl)
	pipe.SAdd(ctx, s.didKey(did), token)
	// The index must outlive every member it holds, so its TTL only
	// ever grows: a fresh index gets the session's TTL, an existing one
	// is extended but never shortened by a shorter-lived session.
	pipe.ExpireNX(ctx, s.didKey(did), ttl)
	pipe.ExpireGT(ctx, s.didKey(did), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}

	return token, nil
}

// Get returns the session for a token; redis expiry makes an expired
// session indistinguishable from a miss.
func (s *RedisSessionStore) Get(ctx context.Context, token string) (*core.Session, error) {
	val, err := s.client.Get(ctx, s.key(token)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess core.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// Delete removes a single session and its index entry.
func (s *RedisSessionStore) Delete(ctx context.Context, token string) error {
	sess, err := s.Get(ctx, token)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(token))
	if sess != nil {
		pipe.SRem(ctx, s.didKey(sess.DID), token)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// RevokeByDID evicts every session held by the DID, returning whether
// any live session existed.
func (s *RedisSessionStore) RevokeByDID(ctx context.Context, did string) (bool, error) {
	tokens, err := s.client.SMembers(ctx, s.didKey(did)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(tokens) == 0 {
		return false, nil
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, s.key(token))
	}

	deleted, err := s.client.Del(ctx, keys...).Result()
	if err != nil {
		return false, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	if err := s.client.Del(ctx, s.didKey(did)).Err(); err != nil {
		return false, fmt.Errorf("failed to drop session index: %w", err)
	}

	return deleted > 0, nil
}

// UpdateHandle rewrites every live session of the DID in place,
// preserving each record's remaining TTL.
func (s *RedisSessionStore) UpdateHandle(ctx context.Context, did, handle string) error {
	tokens, err := s.client.SMembers(ctx, s.didKey(did)).Result()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	for _, token := range tokens {
		val, err := s.client.Get(ctx, s.key(token)).Result()
		if err == redis.Nil {
			s.client.SRem(ctx, s.didKey(did), token)
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}

		var sess core.Session
		if err := json.Unmarshal([]byte(val), &sess); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		sess.Handle = handle

		data, err := json.Marshal(sess)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		if err := s.client.Set(ctx, s.key(token), data, redis.KeepTTL).Err(); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
	}
	return nil
}

// HasDID reports whether the DID holds at least one live session.
func (s *RedisSessionStore) HasDID(ctx context.Context, did string) (bool, error) {
	tokens, err := s.client.SMembers(ctx, s.didKey(did)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to list sessions: %w", err)
	}

	for _, token := range tokens {
		exists, err := s.client.Exists(ctx, s.key(token)).Result()
		if err != nil {
			return false, fmt.Errorf("failed to check session: %w", err)
		}
		if exists > 0 {
			return true, nil
		}
		s.client.SRem(ctx, s.didKey(did), token)
	}
	return false, nil
}

// Prune is a no-op: redis evicts expired sessions natively.
func (s *RedisSessionStore) Prune(ctx context.Context) (int, error) {
	return 0, nil
}

var _ ports.SessionStore = (*RedisSessionStore)(nil)
