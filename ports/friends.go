package ports

import "context"

// FriendGraph answers relationship-tier questions for presence
// visibility. Both checks are from the owner's point of view: does the
// owner consider the requester a friend / close friend.
type FriendGraph interface {
	IsFriend(ctx context.Context, owner, requester string) (bool, error)
	IsCloseFriend(ctx context.Context, owner, requester string) (bool, error)
}
