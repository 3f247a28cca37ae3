package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/layer-3/beacon/core"
)

type fakeRoomStore struct {
	rooms       map[string]*core.Room
	roomBans    map[string]map[string]bool // roomID -> did -> banned
	allowlisted map[string]map[string]bool
}

func (f *fakeRoomStore) GetRoom(ctx context.Context, roomID string) (*core.Room, error) {
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return room, nil
}

func (f *fakeRoomStore) IsRoomBanned(ctx context.Context, roomID, did string) (bool, error) {
	return f.roomBans[roomID][did], nil
}

func (f *fakeRoomStore) IsAllowlisted(ctx context.Context, roomID, did string) (bool, error) {
	return f.allowlisted[roomID][did], nil
}

type fakeDirectory struct {
	createdAt map[string]time.Time
	calls     int
}

func (f *fakeDirectory) CreatedAt(ctx context.Context, did string) (time.Time, error) {
	f.calls++
	created, ok := f.createdAt[did]
	if !ok {
		return time.Time{}, core.ErrUnresolved
	}
	return created, nil
}

type fakeBanStore struct {
	banned map[string]bool
	fail   bool
}

func (f *fakeBanStore) ListGlobalBans(ctx context.Context) ([]string, error) {
	if f.fail {
		return nil, errors.New("db down")
	}
	var out []string
	for did, banned := range f.banned {
		if banned {
			out = append(out, did)
		}
	}
	return out, nil
}

func (f *fakeBanStore) AddGlobalBan(ctx context.Context, did string) error {
	if f.fail {
		return errors.New("db down")
	}
	if f.banned == nil {
		f.banned = make(map[string]bool)
	}
	f.banned[did] = true
	return nil
}

func (f *fakeBanStore) RemoveGlobalBan(ctx context.Context, did string) error {
	if f.fail {
		return errors.New("db down")
	}
	delete(f.banned, did)
	return nil
}

type nopPublisher struct{}

func (nopPublisher) PublishLogout(ctx context.Context, did string) error { return nil }
func (nopPublisher) PublishGlobalBan(ctx context.Context, did string, banned bool) error {
	return nil
}
func (nopPublisher) PublishConversationIdle(ctx context.Context, conversationID string) error {
	return nil
}

type nopSessions struct{}

func (nopSessions) Create(ctx context.Context, did, handle string, ttl time.Duration) (string, error) {
	return "", nil
}
func (nopSessions) Get(ctx context.Context, token string) (*core.Session, error) { return nil, nil }
func (nopSessions) Delete(ctx context.Context, token string) error               { return nil }
func (nopSessions) RevokeByDID(ctx context.Context, did string) (bool, error)    { return false, nil }
func (nopSessions) UpdateHandle(ctx context.Context, did, handle string) error   { return nil }
func (nopSessions) HasDID(ctx context.Context, did string) (bool, error)         { return false, nil }
func (nopSessions) Prune(ctx context.Context) (int, error)                       { return 0, nil }

func newGate(t *testing.T, rooms *fakeRoomStore, dir *fakeDirectory, bannedDIDs ...string) *AccessGate {
	t.Helper()

	banStore := &fakeBanStore{banned: make(map[string]bool)}
	for _, did := range bannedDIDs {
		banStore.banned[did] = true
	}
	bans := NewGlobalBanList(banStore, nopSessions{}, nopPublisher{}, testLogger())
	require.NoError(t, bans.Load(context.Background()))

	return NewAccessGate(rooms, dir, bans, testLogger())
}

func daysAgo(n int) time.Time {
	return time.Now().AddDate(0, 0, -n)
}

func TestAccessGate_GlobalBanShortCircuits(t *testing.T) {
	rooms := &fakeRoomStore{
		rooms: map[string]*core.Room{
			"r1": {ID: "r1", CreatorDID: "did:plc:owner", RequiresAllowlist: true, MinAccountAgeDays: 30},
		},
		allowlisted: map[string]map[string]bool{"r1": {"did:plc:alice": true}},
	}
	dir := &fakeDirectory{createdAt: map[string]time.Time{"did:plc:alice": daysAgo(365)}}

	gate := newGate(t, rooms, dir, "did:plc:alice")

	// Allowlisted and old enough, but globally banned: denied without
	// ever consulting the directory.
	decision, err := gate.CheckUserAccess(context.Background(), "r1", "did:plc:alice")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "banned")
	require.Zero(t, dir.calls)
}

func TestAccessGate_RoomBan(t *testing.T) {
	rooms := &fakeRoomStore{
		rooms:    map[string]*core.Room{"r1": {ID: "r1", CreatorDID: "did:plc:owner"}},
		roomBans: map[string]map[string]bool{"r1": {"did:plc:alice": true}},
	}
	gate := newGate(t, rooms, &fakeDirectory{})

	decision, err := gate.CheckUserAccess(context.Background(), "r1", "did:plc:alice")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "room")
}

func TestAccessGate_RoomNotFound(t *testing.T) {
	gate := newGate(t, &fakeRoomStore{}, &fakeDirectory{})

	decision, err := gate.CheckUserAccess(context.Background(), "missing", "did:plc:alice")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "not found")
}

func TestAccessGate_Allowlist(t *testing.T) {
	rooms := &fakeRoomStore{
		rooms: map[string]*core.Room{
			"r1": {ID: "r1", CreatorDID: "did:plc:owner", RequiresAllowlist: true},
		},
		allowlisted: map[string]map[string]bool{"r1": {"did:plc:invited": true}},
	}
	gate := newGate(t, rooms, &fakeDirectory{})
	ctx := context.Background()

	decision, err := gate.CheckUserAccess(ctx, "r1", "did:plc:stranger")
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	decision, err = gate.CheckUserAccess(ctx, "r1", "did:plc:invited")
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	// The creator bypasses their own allowlist.
	decision, err = gate.CheckUserAccess(ctx, "r1", "did:plc:owner")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestAccessGate_MinAccountAge(t *testing.T) {
	rooms := &fakeRoomStore{
		rooms: map[string]*core.Room{
			"r1": {ID: "r1", CreatorDID: "did:plc:owner", MinAccountAgeDays: 30},
		},
	}
	dir := &fakeDirectory{createdAt: map[string]time.Time{
		"did:plc:young": daysAgo(10),
		"did:plc:old":   daysAgo(40),
	}}
	gate := newGate(t, rooms, dir)
	ctx := context.Background()

	decision, err := gate.CheckUserAccess(ctx, "r1", "did:plc:young")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "30")

	decision, err = gate.CheckUserAccess(ctx, "r1", "did:plc:old")
	require.NoError(t, err)
	require.True(t, decision.Allowed)
	require.Empty(t, decision.Reason)
}

func TestAccessGate_FailsClosedOnUnresolvedAge(t *testing.T) {
	rooms := &fakeRoomStore{
		rooms: map[string]*core.Room{
			"r1": {ID: "r1", CreatorDID: "did:plc:owner", MinAccountAgeDays: 30},
		},
	}
	gate := newGate(t, rooms, &fakeDirectory{}) // resolves nothing

	decision, err := gate.CheckUserAccess(context.Background(), "r1", "did:plc:web")
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Contains(t, decision.Reason, "could not verify")
}

func TestAccessGate_AgeCacheHitSkipsDirectory(t *testing.T) {
	rooms := &fakeRoomStore{
		rooms: map[string]*core.Room{
			"r1": {ID: "r1", CreatorDID: "did:plc:owner", MinAccountAgeDays: 30},
		},
	}
	dir := &fakeDirectory{createdAt: map[string]time.Time{"did:plc:old": daysAgo(40)}}
	gate := newGate(t, rooms, dir)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := gate.CheckUserAccess(ctx, "r1", "did:plc:old")
		require.NoError(t, err)
		require.True(t, decision.Allowed)
	}
	require.Equal(t, 1, dir.calls)
}

func TestAccessGate_PruneAgeCache(t *testing.T) {
	rooms := &fakeRoomStore{
		rooms: map[string]*core.Room{
			"r1": {ID: "r1", CreatorDID: "did:plc:owner", MinAccountAgeDays: 30},
		},
	}
	dir := &fakeDirectory{createdAt: map[string]time.Time{"did:plc:old": daysAgo(40)}}
	gate := newGate(t, rooms, dir)

	_, err := gate.CheckUserAccess(context.Background(), "r1", "did:plc:old")
	require.NoError(t, err)

	require.Zero(t, gate.PruneAgeCache()) // entry still fresh

	now := time.Now()
	gate.now = func() time.Time { return now.Add(25 * time.Hour) }
	require.Equal(t, 1, gate.PruneAgeCache())
}

func TestGlobalBanList_WriteThrough(t *testing.T) {
	banStore := &fakeBanStore{banned: make(map[string]bool)}
	bans := NewGlobalBanList(banStore, nopSessions{}, nopPublisher{}, testLogger())
	require.NoError(t, bans.Load(context.Background()))

	require.NoError(t, bans.Add(context.Background(), "did:plc:bad"))
	require.True(t, bans.Contains("did:plc:bad"))
	require.True(t, banStore.banned["did:plc:bad"])

	require.NoError(t, bans.Remove(context.Background(), "did:plc:bad"))
	require.False(t, bans.Contains("did:plc:bad"))
	require.False(t, banStore.banned["did:plc:bad"])
}

func TestGlobalBanList_DurableFailureLeavesMirrorUntouched(t *testing.T) {
	banStore := &fakeBanStore{banned: make(map[string]bool), fail: true}
	bans := NewGlobalBanList(banStore, nopSessions{}, nopPublisher{}, testLogger())

	require.Error(t, bans.Add(context.Background(), "did:plc:bad"))
	require.False(t, bans.Contains("did:plc:bad"))
}

func TestGlobalBanList_Apply(t *testing.T) {
	bans := NewGlobalBanList(&fakeBanStore{}, nopSessions{}, nopPublisher{}, testLogger())

	bans.Apply("did:plc:peer", true)
	require.True(t, bans.Contains("did:plc:peer"))

	bans.Apply("did:plc:peer", false)
	require.False(t, bans.Contains("did:plc:peer"))
}
