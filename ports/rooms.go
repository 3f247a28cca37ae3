package ports

import (
	"context"

	"github.com/layer-3/beacon/core"
)

// RoomStore is the durable relational collaborator for rooms and
// moderation rows. Failures propagate as generic I/O errors; they are
// not part of the access-control taxonomy.
type RoomStore interface {
	// GetRoom returns the room record, or core.ErrNotFound.
	GetRoom(ctx context.Context, roomID string) (*core.Room, error)

	// IsRoomBanned reports whether the DID is banned from the room.
	IsRoomBanned(ctx context.Context, roomID, did string) (bool, error)

	// IsAllowlisted reports whether the DID appears on the room's allowlist.
	IsAllowlisted(ctx context.Context, roomID, did string) (bool, error)
}

// GlobalBanStore is the durable side of the process-wide ban set. The
// in-memory mirror writes through this store before mutating itself.
type GlobalBanStore interface {
	// ListGlobalBans returns every banned DID, used once at startup.
	ListGlobalBans(ctx context.Context) ([]string, error)

	// AddGlobalBan records a ban durably.
	AddGlobalBan(ctx context.Context, did string) error

	// RemoveGlobalBan removes a durable ban record.
	RemoveGlobalBan(ctx context.Context, did string) error
}
