package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/layer-3/beacon/ports"
)

// GlobalBanList is the in-memory mirror of the durable global ban table.
// It is hydrated once at startup and consulted on every access-gate
// evaluation. Every mutation writes through durable storage before
// touching the set, so the read path can never observe a state the
// durable layer did not record.
type GlobalBanList struct {
	mu     sync.RWMutex
	banned map[string]struct{}

	store    ports.GlobalBanStore
	sessions ports.SessionStore
	events   ports.EventPublisher
	log      *slog.Logger
}

// NewGlobalBanList creates an empty, unhydrated ban list.
func NewGlobalBanList(store ports.GlobalBanStore, sessions ports.SessionStore, events ports.EventPublisher, log *slog.Logger) *GlobalBanList {
	return &GlobalBanList{
		banned:   make(map[string]struct{}),
		store:    store,
		sessions: sessions,
		events:   events,
		log:      log,
	}
}

// Load hydrates the set from durable storage. Called once at startup.
func (l *GlobalBanList) Load(ctx context.Context) error {
	dids, err := l.store.ListGlobalBans(ctx)
	if err != nil {
		return fmt.Errorf("failed to load global bans: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.banned = make(map[string]struct{}, len(dids))
	for _, did := range dids {
		l.banned[did] = struct{}{}
	}
	return nil
}

// Contains reports whether the DID is globally banned. Hot read path.
func (l *GlobalBanList) Contains(did string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, banned := l.banned[did]
	return banned
}

// Add bans a DID: durable write first, then the in-memory set, then the
// DID's live sessions are revoked and peers are notified. Event publish
// failures are logged, never fatal.
func (l *GlobalBanList) Add(ctx context.Context, did string) error {
	if err := l.store.AddGlobalBan(ctx, did); err != nil {
		return err
	}

	l.mu.Lock()
	l.banned[did] = struct{}{}
	l.mu.Unlock()

	if _, err := l.sessions.RevokeByDID(ctx, did); err != nil {
		l.log.Error("failed to revoke sessions of banned did", "did", did, "err", err)
	}
	if err := l.events.PublishGlobalBan(ctx, did, true); err != nil {
		l.log.Error("failed to publish ban event", "did", did, "err", err)
	}
	return nil
}

// Remove lifts a ban: durable delete first, then the in-memory set.
func (l *GlobalBanList) Remove(ctx context.Context, did string) error {
	if err := l.store.RemoveGlobalBan(ctx, did); err != nil {
		return err
	}

	l.mu.Lock()
	delete(l.banned, did)
	l.mu.Unlock()

	if err := l.events.PublishGlobalBan(ctx, did, false); err != nil {
		l.log.Error("failed to publish unban event", "did", did, "err", err)
	}
	return nil
}

// Apply mutates only the in-memory set. Used when consuming a peer
// instance's ban event; the peer already owns the durable write.
func (l *GlobalBanList) Apply(did string, banned bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if banned {
		l.banned[did] = struct{}{}
	} else {
		delete(l.banned, did)
	}
}
