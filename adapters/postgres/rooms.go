package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/layer-3/beacon/core"
	"github.com/layer-3/beacon/ports"
)

// RoomStore implements the durable room and moderation contracts over a
// pgx connection pool. It is deliberately row-level: the coordination
// layer only ever asks for one room or one membership fact at a time.
type RoomStore struct {
	pool *pgxpool.Pool
}

// NewRoomStore wraps an existing pool.
func NewRoomStore(pool *pgxpool.Pool) *RoomStore {
	return &RoomStore{pool: pool}
}

// GetRoom returns the room record, or core.ErrNotFound.
func (s *RoomStore) GetRoom(ctx context.Context, roomID string) (*core.Room, error) {
	const q = `
		SELECT id, creator_did, requires_allowlist, min_account_age_days, created_at
		FROM rooms
		WHERE id = $1`

	var room core.Room
	err := s.pool.QueryRow(ctx, q, roomID).Scan(
		&room.ID,
		&room.CreatorDID,
		&room.RequiresAllowlist,
		&room.MinAccountAgeDays,
		&room.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	return &room, nil
}

// IsRoomBanned reports whether the DID is banned from the room.
func (s *RoomStore) IsRoomBanned(ctx context.Context, roomID, did string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM room_bans WHERE room_id = $1 AND did = $2)`

	var banned bool
	if err := s.pool.QueryRow(ctx, q, roomID, did).Scan(&banned); err != nil {
		return false, fmt.Errorf("failed to check room ban: %w", err)
	}
	return banned, nil
}

// IsAllowlisted reports whether the DID appears on the room's allowlist.
func (s *RoomStore) IsAllowlisted(ctx context.Context, roomID, did string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM room_allowlist WHERE room_id = $1 AND did = $2)`

	var allowed bool
	if err := s.pool.QueryRow(ctx, q, roomID, did).Scan(&allowed); err != nil {
		return false, fmt.Errorf("failed to check allowlist: %w", err)
	}
	return allowed, nil
}

var _ ports.RoomStore = (*RoomStore)(nil)
