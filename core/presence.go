package core

// Status is a user's presence status.
type Status string

const (
	StatusOnline    Status = "online"
	StatusAway      Status = "away"
	StatusIdle      Status = "idle"
	StatusOffline   Status = "offline"
	StatusInvisible Status = "invisible"
)

// Valid reports whether s is one of the declared presence statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusIdle, StatusOffline, StatusInvisible:
		return true
	}
	return false
}

// Visibility controls who may see a user's actual presence status.
type Visibility string

const (
	VisibilityEveryone     Visibility = "everyone"
	VisibilityFriends      Visibility = "friends"
	VisibilityCloseFriends Visibility = "close-friends"
	VisibilityNobody       Visibility = "nobody"
)

// Presence is a single user's presence state as reported to callers.
type Presence struct {
	DID         string `json:"did"`
	Status      Status `json:"status"`
	AwayMessage string `json:"away_message,omitempty"`
}

// ResolveVisibleStatus applies a visibility setting to an actual status.
// It is pure and total over the Visibility enum: under "everyone" the
// actual status is passed through unchanged, invisible included; tiered
// settings reveal the actual status only to requesters inside the tier;
// "nobody" and any unrecognized visibility value resolve to offline.
func ResolveVisibleStatus(vis Visibility, actual Status, isFriend, isCloseFriend bool) Status {
	switch vis {
	case VisibilityEveryone:
		return actual
	case VisibilityFriends:
		if isFriend || isCloseFriend {
			return actual
		}
		return StatusOffline
	case VisibilityCloseFriends:
		if isCloseFriend {
			return actual
		}
		return StatusOffline
	case VisibilityNobody:
		return StatusOffline
	default:
		return StatusOffline
	}
}
