package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/layer-3/beacon/ports"
)

// FriendGraph resolves relationship tiers from the friends table. A row
// carries a close flag; a close friend is also a friend.
type FriendGraph struct {
	pool *pgxpool.Pool
}

// NewFriendGraph wraps an existing pool.
func NewFriendGraph(pool *pgxpool.Pool) *FriendGraph {
	return &FriendGraph{pool: pool}
}

// IsFriend reports whether owner lists requester as a friend.
func (g *FriendGraph) IsFriend(ctx context.Context, owner, requester string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM friends WHERE owner_did = $1 AND friend_did = $2)`

	var ok bool
	if err := g.pool.QueryRow(ctx, q, owner, requester).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check friend: %w", err)
	}
	return ok, nil
}

// IsCloseFriend reports whether owner lists requester as a close friend.
func (g *FriendGraph) IsCloseFriend(ctx context.Context, owner, requester string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM friends WHERE owner_did = $1 AND friend_did = $2 AND close)`

	var ok bool
	if err := g.pool.QueryRow(ctx, q, owner, requester).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check close friend: %w", err)
	}
	return ok, nil
}

var _ ports.FriendGraph = (*FriendGraph)(nil)
