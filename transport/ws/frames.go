package ws

import "time"

// Client frame types.
const (
	FrameJoinRoom  = "join_room"
	FrameLeaveRoom = "leave_room"
	FrameRoomMsg   = "room_message"
	FrameDMOpen    = "dm_open"
	FrameDMClose   = "dm_close"
	FrameDMMsg     = "dm_message"
	FrameStatus    = "status"
	FrameBlockSync = "block_sync"
)

// Server frame types.
const (
	FrameError  = "error"
	FrameDenied = "denied"
)

// clientFrame is one inbound message from a connected client.
type clientFrame struct {
	Type           string   `json:"type"`
	Room           string   `json:"room,omitempty"`
	ConversationID string   `json:"conversation_id,omitempty"`
	Text           string   `json:"text,omitempty"`
	Status         string   `json:"status,omitempty"`
	AwayMessage    string   `json:"away_message,omitempty"`
	Visibility     string   `json:"visibility,omitempty"`
	BlockedDIDs    []string `json:"blocked_dids,omitempty"`
}

// serverFrame is one outbound message to a connected client.
type serverFrame struct {
	Type           string    `json:"type"`
	Room           string    `json:"room,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	From           string    `json:"from,omitempty"`
	Text           string    `json:"text,omitempty"`
	Reason         string    `json:"reason,omitempty"`
	SentAt         time.Time `json:"sent_at,omitempty"`
}
