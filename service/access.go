package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/layer-3/beacon/core"
	"github.com/layer-3/beacon/ports"
)

// ageCacheTTL is how long a resolved account-creation date is cached.
// Creation dates never change, so the TTL only bounds memory.
const ageCacheTTL = 24 * time.Hour

type ageEntry struct {
	createdAt time.Time
	expiresAt time.Time
}

// AccessGate composes the independent moderation policies into a single
// decision: global ban, room ban, room existence, allowlist, minimum
// account age — evaluated in that order, short-circuiting on the first
// failure. Policy denials are decisions, not errors; only store I/O
// failures surface as errors.
type AccessGate struct {
	rooms     ports.RoomStore
	directory ports.IdentityDirectory
	bans      *GlobalBanList
	log       *slog.Logger

	ageMu    sync.RWMutex
	ageCache map[string]ageEntry

	now func() time.Time
}

// NewAccessGate creates an access gate over the given collaborators.
func NewAccessGate(rooms ports.RoomStore, directory ports.IdentityDirectory, bans *GlobalBanList, log *slog.Logger) *AccessGate {
	return &AccessGate{
		rooms:     rooms,
		directory: directory,
		bans:      bans,
		log:       log,
		ageCache:  make(map[string]ageEntry),
		now:       time.Now,
	}
}

// CheckUserAccess evaluates whether the DID may act in the room.
func (g *AccessGate) CheckUserAccess(ctx context.Context, roomID, did string) (core.AccessDecision, error) {
	// A global ban wins over everything, including allowlist membership.
	if g.bans.Contains(did) {
		return core.Deny("you are banned from this service"), nil
	}

	banned, err := g.rooms.IsRoomBanned(ctx, roomID, did)
	if err != nil {
		return core.AccessDecision{}, fmt.Errorf("failed to check room ban: %w", err)
	}
	if banned {
		return core.Deny("you are banned from this room"), nil
	}

	room, err := g.rooms.GetRoom(ctx, roomID)
	if errors.Is(err, core.ErrNotFound) {
		return core.Deny("room not found"), nil
	}
	if err != nil {
		return core.AccessDecision{}, err
	}

	if room.RequiresAllowlist && did != room.CreatorDID {
		allowed, err := g.rooms.IsAllowlisted(ctx, roomID, did)
		if err != nil {
			return core.AccessDecision{}, fmt.Errorf("failed to check allowlist: %w", err)
		}
		if !allowed {
			return core.Deny("this room requires an invitation"), nil
		}
	}

	if room.MinAccountAgeDays > 0 {
		createdAt, err := g.resolveCreatedAt(ctx, did)
		if err != nil {
			// Fail closed: an unverifiable account is never admitted
			// by default.
			g.log.Warn("account age unresolved", "did", did, "err", err)
			return core.Deny("could not verify account age"), nil
		}

		ageDays := int(g.now().Sub(createdAt).Hours() / 24)
		if ageDays < room.MinAccountAgeDays {
			return core.Deny(fmt.Sprintf("account must be at least %d days old to join this room", room.MinAccountAgeDays)), nil
		}
	}

	return core.Allow(), nil
}

// resolveCreatedAt consults the 24h cache before the directory. A cache
// hit never performs a lookup.
func (g *AccessGate) resolveCreatedAt(ctx context.Context, did string) (time.Time, error) {
	g.ageMu.RLock()
	entry, ok := g.ageCache[did]
	g.ageMu.RUnlock()
	if ok && g.now().Before(entry.expiresAt) {
		return entry.createdAt, nil
	}

	createdAt, err := g.directory.CreatedAt(ctx, did)
	if err != nil {
		return time.Time{}, err
	}

	g.ageMu.Lock()
	g.ageCache[did] = ageEntry{createdAt: createdAt, expiresAt: g.now().Add(ageCacheTTL)}
	g.ageMu.Unlock()

	return createdAt, nil
}

// PruneAgeCache evicts expired cache entries and returns the count
// removed. Wired into the housekeeping sweep.
func (g *AccessGate) PruneAgeCache() int {
	g.ageMu.Lock()
	defer g.ageMu.Unlock()

	now := g.now()
	removed := 0
	for did, entry := range g.ageCache {
		if !now.Before(entry.expiresAt) {
			delete(g.ageCache, did)
			removed++
		}
	}
	return removed
}
