package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/layer-3/beacon/core"
	"github.com/layer-3/beacon/ports"
)

// MaxBulkPresence caps a single bulk presence query.
const MaxBulkPresence = 100

type presenceEntry struct {
	status      core.Status
	awayMessage string
	visibility  core.Visibility
	rooms       map[string]struct{}
	conns       int
}

// PresenceTracker owns the in-memory presence and room-membership state.
// It is constructed once at process start and passed by reference to
// everything that reads or mutates presence; no other code touches the
// underlying maps.
type PresenceTracker struct {
	mu        sync.RWMutex
	entries   map[string]*presenceEntry
	roomIndex map[string]map[string]struct{} // roomID -> member DIDs
}

// NewPresenceTracker creates an empty tracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		entries:   make(map[string]*presenceEntry),
		roomIndex: make(map[string]map[string]struct{}),
	}
}

// Connect transitions the DID to online and counts the connection. A
// DID may hold several sockets at once (multi-device); presence is
// shared across them, and an additional connect while already tracked
// resets status but keeps the chosen visibility.
func (t *PresenceTracker) Connect(did string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[did]; ok {
		entry.status = core.StatusOnline
		entry.awayMessage = ""
		entry.conns++
		return
	}
	t.entries[did] = &presenceEntry{
		status:     core.StatusOnline,
		visibility: core.VisibilityEveryone,
		rooms:      make(map[string]struct{}),
		conns:      1,
	}
}

// Disconnect releases one connection. While other connections for the
// DID remain, presence and room memberships are untouched and no rooms
// are reported abandoned. When the last connection drops, the DID's
// presence is removed, all of its room memberships are cleared, and the
// abandoned rooms are returned so fan-out state can be cleaned up by
// the caller.
func (t *PresenceTracker) Disconnect(did string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[did]
	if !ok {
		return nil
	}
	entry.conns--
	if entry.conns > 0 {
		return nil
	}

	abandoned := make([]string, 0, len(entry.rooms))
	for roomID := range entry.rooms {
		abandoned = append(abandoned, roomID)
		if members, ok := t.roomIndex[roomID]; ok {
			delete(members, did)
			if len(members) == 0 {
				delete(t.roomIndex, roomID)
			}
		}
	}
	delete(t.entries, did)
	return abandoned
}

// SetStatus applies an explicit status change. The away message is
// cleared unless re-supplied; an empty visibility keeps the previous
// setting. Unknown DIDs (not connected) report core.ErrNotFound.
func (t *PresenceTracker) SetStatus(did string, status core.Status, awayMessage string, visibility core.Visibility) error {
	if !status.Valid() || status == core.StatusOffline {
		return fmt.Errorf("cannot set status %q", status)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[did]
	if !ok {
		return core.ErrNotFound
	}

	entry.status = status
	entry.awayMessage = awayMessage
	if visibility != "" {
		entry.visibility = visibility
	}
	return nil
}

// JoinRoom adds the DID to a room. Membership is independent of status.
func (t *PresenceTracker) JoinRoom(did, roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[did]
	if !ok {
		return
	}
	entry.rooms[roomID] = struct{}{}
	if t.roomIndex[roomID] == nil {
		t.roomIndex[roomID] = make(map[string]struct{})
	}
	t.roomIndex[roomID][did] = struct{}{}
}

// LeaveRoom removes the DID from a room.
func (t *PresenceTracker) LeaveRoom(did, roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[did]; ok {
		delete(entry.rooms, roomID)
	}
	if members, ok := t.roomIndex[roomID]; ok {
		delete(members, did)
		if len(members) == 0 {
			delete(t.roomIndex, roomID)
		}
	}
}

// Get returns a snapshot of the DID's presence, or false if untracked.
func (t *PresenceTracker) Get(did string) (core.Status, string, core.Visibility, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[did]
	if !ok {
		return core.StatusOffline, "", "", false
	}
	return entry.status, entry.awayMessage, entry.visibility, true
}

// RoomMembers returns the DIDs currently joined to a room.
func (t *PresenceTracker) RoomMembers(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	members := t.roomIndex[roomID]
	out := make([]string, 0, len(members))
	for did := range members {
		out = append(out, did)
	}
	return out
}

// RoomsOf returns the rooms the DID is currently joined to.
func (t *PresenceTracker) RoomsOf(did string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[did]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(entry.rooms))
	for roomID := range entry.rooms {
		out = append(out, roomID)
	}
	return out
}

// PresenceService layers visibility resolution and block masking on top
// of the raw tracker. Every presence answer that leaves the process goes
// through here.
type PresenceService struct {
	tracker *PresenceTracker
	blocks  *BlockService
	friends ports.FriendGraph
	log     *slog.Logger
}

// NewPresenceService creates a presence service over a shared tracker.
func NewPresenceService(tracker *PresenceTracker, blocks *BlockService, friends ports.FriendGraph, log *slog.Logger) *PresenceService {
	return &PresenceService{
		tracker: tracker,
		blocks:  blocks,
		friends: friends,
		log:     log,
	}
}

// Connect marks the DID online and refreshes its block-list liveness.
func (s *PresenceService) Connect(did string) {
	s.tracker.Connect(did)
	s.blocks.Touch(did)
}

// Disconnect clears the DID's presence and returns the rooms it
// abandoned.
func (s *PresenceService) Disconnect(did string) []string {
	return s.tracker.Disconnect(did)
}

// SetStatus applies an explicit status change.
func (s *PresenceService) SetStatus(did string, status core.Status, awayMessage string, visibility core.Visibility) error {
	return s.tracker.SetStatus(did, status, awayMessage, visibility)
}

// JoinRoom adds the DID to a room's membership.
func (s *PresenceService) JoinRoom(did, roomID string) {
	s.tracker.JoinRoom(did, roomID)
}

// LeaveRoom removes the DID from a room's membership.
func (s *PresenceService) LeaveRoom(did, roomID string) {
	s.tracker.LeaveRoom(did, roomID)
}

// RoomMembersFor returns a room's members from the requester's point of
// view: members the requester has blocked are omitted. The directional
// check is deliberate here; only the requester's own intent matters for
// their own listing.
func (s *PresenceService) RoomMembersFor(requester, roomID string) []string {
	members := s.tracker.RoomMembers(roomID)
	out := members[:0]
	for _, did := range members {
		if !s.blocks.DoesBlock(requester, did) {
			out = append(out, did)
		}
	}
	return out
}

// GetBulkPresence answers one entry per requested DID, same order, with
// visibility and block masking already applied. Unknown DIDs default to
// offline with no away message; they are never omitted or reordered.
func (s *PresenceService) GetBulkPresence(ctx context.Context, requester string, dids []string) ([]core.Presence, error) {
	if len(dids) > MaxBulkPresence {
		return nil, fmt.Errorf("at most %d identifiers per query", MaxBulkPresence)
	}

	out := make([]core.Presence, 0, len(dids))
	for _, did := range dids {
		out = append(out, s.resolveOne(ctx, requester, did))
	}
	return out, nil
}

func (s *PresenceService) resolveOne(ctx context.Context, requester, did string) core.Presence {
	status, away, visibility, ok := s.tracker.Get(did)
	if !ok {
		return core.Presence{DID: did, Status: core.StatusOffline}
	}

	// Owners always see themselves unmasked.
	if requester == did {
		return core.Presence{DID: did, Status: status, AwayMessage: away}
	}

	// A block in either direction masks presence entirely.
	if s.blocks.IsBlocked(requester, did) {
		return core.Presence{DID: did, Status: core.StatusOffline}
	}

	isFriend, isClose := s.tier(ctx, did, requester, visibility)
	visible := core.ResolveVisibleStatus(visibility, status, isFriend, isClose)
	if visible == core.StatusOffline {
		return core.Presence{DID: did, Status: core.StatusOffline}
	}
	return core.Presence{DID: did, Status: visible, AwayMessage: away}
}

// tier resolves the requester's relationship tier, but only when the
// owner's visibility setting needs it. Resolution failures read as
// "not in the tier", never as a wider reveal.
func (s *PresenceService) tier(ctx context.Context, owner, requester string, visibility core.Visibility) (isFriend, isClose bool) {
	if visibility != core.VisibilityFriends && visibility != core.VisibilityCloseFriends {
		return false, false
	}
	if s.friends == nil {
		return false, false
	}

	var err error
	isClose, err = s.friends.IsCloseFriend(ctx, owner, requester)
	if err != nil {
		s.log.Warn("close-friend lookup failed", "owner", owner, "err", err)
		isClose = false
	}
	if visibility == core.VisibilityFriends {
		isFriend, err = s.friends.IsFriend(ctx, owner, requester)
		if err != nil {
			s.log.Warn("friend lookup failed", "owner", owner, "err", err)
			isFriend = false
		}
	}
	return isFriend, isClose
}
