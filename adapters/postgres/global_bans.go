package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/layer-3/beacon/ports"
)

// GlobalBanStore is the durable side of the process-wide ban set.
type GlobalBanStore struct {
	pool *pgxpool.Pool
}

// NewGlobalBanStore wraps an existing pool.
func NewGlobalBanStore(pool *pgxpool.Pool) *GlobalBanStore {
	return &GlobalBanStore{pool: pool}
}

// ListGlobalBans returns every banned DID. Called once at startup to
// hydrate the in-memory mirror.
func (s *GlobalBanStore) ListGlobalBans(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT did FROM global_bans`)
	if err != nil {
		return nil, fmt.Errorf("failed to list global bans: %w", err)
	}
	defer rows.Close()

	var dids []string
	for rows.Next() {
		var did string
		if err := rows.Scan(&did); err != nil {
			return nil, fmt.Errorf("failed to scan global ban: %w", err)
		}
		dids = append(dids, did)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read global bans: %w", err)
	}
	return dids, nil
}

// AddGlobalBan records a ban durably; re-banning is idempotent.
func (s *GlobalBanStore) AddGlobalBan(ctx context.Context, did string) error {
	const q = `INSERT INTO global_bans (did) VALUES ($1) ON CONFLICT (did) DO NOTHING`
	if _, err := s.pool.Exec(ctx, q, did); err != nil {
		return fmt.Errorf("failed to add global ban: %w", err)
	}
	return nil
}

// RemoveGlobalBan removes a durable ban record.
func (s *GlobalBanStore) RemoveGlobalBan(ctx context.Context, did string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM global_bans WHERE did = $1`, did); err != nil {
		return fmt.Errorf("failed to remove global ban: %w", err)
	}
	return nil
}

var _ ports.GlobalBanStore = (*GlobalBanStore)(nil)
