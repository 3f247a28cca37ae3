package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeDeadline = 10 * time.Second

// socketConn adapts a gorilla websocket connection to the Conn handle
// the registries index. Writes are serialized; gorilla permits only one
// concurrent writer.
type socketConn struct {
	id   string
	did  string
	sock *websocket.Conn

	writeMu sync.Mutex
}

func newSocketConn(did string, sock *websocket.Conn) *socketConn {
	return &socketConn{
		id:   uuid.New().String(),
		did:  did,
		sock: sock,
	}
}

func (c *socketConn) ID() string {
	return c.id
}

func (c *socketConn) DID() string {
	return c.did
}

func (c *socketConn) Send(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.sock.SetWriteDeadline(time.Now().Add(writeDeadline))
	return c.sock.WriteMessage(websocket.TextMessage, payload)
}

var _ Conn = (*socketConn)(nil)
