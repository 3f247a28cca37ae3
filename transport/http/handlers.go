package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/layer-3/beacon/core"
	"github.com/layer-3/beacon/service"
	"github.com/layer-3/beacon/transport/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Handlers contains the HTTP handlers for the coordination endpoints.
type Handlers struct {
	auth     *service.AuthService
	presence *service.PresenceService
	gate     *service.AccessGate
	bans     *service.GlobalBanList
	hub      *ws.Hub
}

// NewHandlers creates the handler set.
func NewHandlers(
	auth *service.AuthService,
	presence *service.PresenceService,
	gate *service.AccessGate,
	bans *service.GlobalBanList,
	hub *ws.Hub,
) *Handlers {
	return &Handlers{
		auth:     auth,
		presence: presence,
		gate:     gate,
		bans:     bans,
		hub:      hub,
	}
}

// Challenge issues a one-time nonce for the handshake.
func (h *Handlers) Challenge(c *gin.Context) {
	var req struct {
		DID string `json:"did" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	nonce, err := h.auth.CreateChallenge(c.Request.Context(), req.DID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create challenge"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"nonce": nonce})
}

// Verify consumes the challenge and opens a session.
func (h *Handlers) Verify(c *gin.Context) {
	var req struct {
		DID    string `json:"did" binding:"required"`
		Nonce  string `json:"nonce" binding:"required"`
		Handle string `json:"handle"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	token, err := h.auth.Verify(c.Request.Context(), req.DID, req.Nonce, req.Handle)
	if err != nil {
		if errors.Is(err, core.ErrInvalidChallenge) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired challenge"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "authentication failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout deletes the caller's session.
func (h *Handlers) Logout(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.auth.Logout(c.Request.Context(), sess.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to log out"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// BulkPresence answers up to 100 presence queries in request order,
// visibility already applied.
func (h *Handlers) BulkPresence(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	dids := c.QueryArray("did")
	entries, err := h.presence.GetBulkPresence(c.Request.Context(), sess.DID, dids)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"presence": entries})
}

// RoomAccess evaluates the access gate for the caller.
func (h *Handlers) RoomAccess(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	decision, err := h.gate.CheckUserAccess(c.Request.Context(), c.Param("id"), sess.DID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// RoomMembers lists a room's current members from the caller's point
// of view.
func (h *Handlers) RoomMembers(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	members := h.presence.RoomMembersFor(sess.DID, c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"members": members})
}

// UpdateHandle propagates a handle change to the caller's live sessions.
func (h *Handlers) UpdateHandle(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Handle string `json:"handle" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.auth.UpdateHandle(c.Request.Context(), sess.DID, req.Handle); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update handle"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "handle updated"})
}

// AddGlobalBan bans a DID service-wide and force-logs-out its sessions.
func (h *Handlers) AddGlobalBan(c *gin.Context) {
	var req struct {
		DID string `json:"did" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.bans.Add(c.Request.Context(), req.DID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add ban"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "banned"})
}

// RemoveGlobalBan lifts a service-wide ban.
func (h *Handlers) RemoveGlobalBan(c *gin.Context) {
	if err := h.bans.Remove(c.Request.Context(), c.Param("did")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove ban"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "unbanned"})
}

// Connect upgrades the request to a websocket and hands it to the hub.
func (h *Handlers) Connect(c *gin.Context) {
	sess := sessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sock, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer sock.Close()

	h.hub.HandleConnection(c.Request.Context(), sess, sock)
}
