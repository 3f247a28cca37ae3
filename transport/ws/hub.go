package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/layer-3/beacon/core"
	"github.com/layer-3/beacon/ports"
	"github.com/layer-3/beacon/service"
)

// Hub owns the per-connection read loops and glues inbound frames to
// the coordination services. It does not parse transport framing beyond
// the JSON envelope; message persistence lives elsewhere.
type Hub struct {
	presence *service.PresenceService
	blocks   *service.BlockService
	gate     *service.AccessGate
	limiter  ports.RateLimiter
	events   ports.EventPublisher
	rooms    *RoomSubscriptions
	dms      *DMSubscriptions
	log      *slog.Logger
}

// NewHub creates a hub over the given services and registries.
func NewHub(
	presence *service.PresenceService,
	blocks *service.BlockService,
	gate *service.AccessGate,
	limiter ports.RateLimiter,
	events ports.EventPublisher,
	rooms *RoomSubscriptions,
	dms *DMSubscriptions,
	log *slog.Logger,
) *Hub {
	return &Hub{
		presence: presence,
		blocks:   blocks,
		gate:     gate,
		limiter:  limiter,
		events:   events,
		rooms:    rooms,
		dms:      dms,
		log:      log,
	}
}

// HandleConnection runs the read loop for one authenticated socket
// until the peer disconnects, then tears down every piece of ephemeral
// state the connection accumulated.
func (h *Hub) HandleConnection(ctx context.Context, sess *core.Session, sock *websocket.Conn) {
	conn := newSocketConn(sess.DID, sock)

	h.presence.Connect(sess.DID)
	defer h.teardown(ctx, conn)

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			return
		}

		allowed, err := h.limiter.Check(ctx, sess.DID)
		if err != nil {
			h.log.Error("rate limit check failed", "did", sess.DID, "err", err)
			continue
		}
		if !allowed {
			h.sendError(conn, "rate limit exceeded")
			continue
		}
		h.blocks.Touch(sess.DID)

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.sendError(conn, "malformed frame")
			continue
		}
		h.dispatch(ctx, conn, frame)
	}
}

func (h *Hub) dispatch(ctx context.Context, conn *socketConn, frame clientFrame) {
	switch frame.Type {
	case FrameJoinRoom:
		h.handleJoin(ctx, conn, frame.Room)
	case FrameLeaveRoom:
		h.presence.LeaveRoom(conn.DID(), frame.Room)
		h.rooms.Unsubscribe(frame.Room, conn)
	case FrameRoomMsg:
		h.handleRoomMessage(ctx, conn, frame)
	case FrameDMOpen:
		h.dms.Subscribe(frame.ConversationID, conn)
	case FrameDMClose:
		h.closeDM(ctx, conn, frame.ConversationID)
	case FrameDMMsg:
		h.handleDMMessage(conn, frame)
	case FrameStatus:
		h.handleStatus(conn, frame)
	case FrameBlockSync:
		h.blocks.Sync(conn.DID(), frame.BlockedDIDs)
	default:
		h.sendError(conn, "unknown frame type")
	}
}

func (h *Hub) handleJoin(ctx context.Context, conn *socketConn, roomID string) {
	decision, err := h.gate.CheckUserAccess(ctx, roomID, conn.DID())
	if err != nil {
		h.log.Error("access check failed", "room", roomID, "did", conn.DID(), "err", err)
		h.sendError(conn, "internal error")
		return
	}
	if !decision.Allowed {
		h.send(conn, serverFrame{Type: FrameDenied, Room: roomID, Reason: decision.Reason})
		return
	}

	h.presence.JoinRoom(conn.DID(), roomID)
	h.rooms.Subscribe(roomID, conn)
}

func (h *Hub) handleRoomMessage(ctx context.Context, conn *socketConn, frame clientFrame) {
	decision, err := h.gate.CheckUserAccess(ctx, frame.Room, conn.DID())
	if err != nil {
		h.log.Error("access check failed", "room", frame.Room, "did", conn.DID(), "err", err)
		h.sendError(conn, "internal error")
		return
	}
	if !decision.Allowed {
		h.send(conn, serverFrame{Type: FrameDenied, Room: frame.Room, Reason: decision.Reason})
		return
	}

	out := serverFrame{
		Type:   FrameRoomMsg,
		Room:   frame.Room,
		From:   conn.DID(),
		Text:   frame.Text,
		SentAt: time.Now().UTC(),
	}
	// Delivery between blocked pairs is suppressed in both directions.
	err = h.rooms.BroadcastFiltered(frame.Room, out, conn, func(c Conn) bool {
		return h.blocks.IsBlocked(conn.DID(), c.DID())
	})
	if err != nil {
		h.log.Error("room broadcast failed", "room", frame.Room, "err", err)
	}
}

func (h *Hub) handleDMMessage(conn *socketConn, frame clientFrame) {
	out := serverFrame{
		Type:           FrameDMMsg,
		ConversationID: frame.ConversationID,
		From:           conn.DID(),
		Text:           frame.Text,
		SentAt:         time.Now().UTC(),
	}
	err := h.dms.BroadcastFiltered(frame.ConversationID, out, conn, func(c Conn) bool {
		return h.blocks.IsBlocked(conn.DID(), c.DID())
	})
	if err != nil {
		h.log.Error("dm broadcast failed", "conversation", frame.ConversationID, "err", err)
	}
}

func (h *Hub) handleStatus(conn *socketConn, frame clientFrame) {
	err := h.presence.SetStatus(
		conn.DID(),
		core.Status(frame.Status),
		frame.AwayMessage,
		core.Visibility(frame.Visibility),
	)
	if err != nil {
		h.sendError(conn, "invalid status change")
	}
}

func (h *Hub) closeDM(ctx context.Context, conn *socketConn, conversationID string) {
	if h.dms.Unsubscribe(conversationID, conn) {
		h.announceIdle(ctx, conversationID)
	}
}

// teardown runs once per connection, on close. The registries never own
// socket lifecycle, so this is the one place a dead connection is pruned
// from every topic it belonged to.
func (h *Hub) teardown(ctx context.Context, conn *socketConn) {
	abandoned := h.presence.Disconnect(conn.DID())
	for _, roomID := range abandoned {
		h.rooms.Unsubscribe(roomID, conn)
	}
	h.rooms.UnsubscribeAll(conn)

	for _, conversationID := range h.dms.UnsubscribeAll(conn) {
		h.announceIdle(ctx, conversationID)
	}
}

func (h *Hub) announceIdle(ctx context.Context, conversationID string) {
	if err := h.events.PublishConversationIdle(ctx, conversationID); err != nil {
		h.log.Error("failed to publish conversation idle", "conversation", conversationID, "err", err)
	}
}

func (h *Hub) sendError(conn *socketConn, reason string) {
	h.send(conn, serverFrame{Type: FrameError, Reason: reason})
}

func (h *Hub) send(conn *socketConn, frame serverFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	_ = conn.Send(data)
}
