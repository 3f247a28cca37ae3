package ws

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id   string
	did  string
	sent [][]byte
	fail bool
}

func (c *fakeConn) ID() string  { return c.id }
func (c *fakeConn) DID() string { return c.did }

func (c *fakeConn) Send(payload []byte) error {
	if c.fail {
		return errors.New("broken pipe")
	}
	c.sent = append(c.sent, payload)
	return nil
}

func TestRoomSubscriptions_BroadcastWithExclude(t *testing.T) {
	subs := NewRoomSubscriptions()
	connA := &fakeConn{id: "a", did: "did:plc:alice"}
	connB := &fakeConn{id: "b", did: "did:plc:bob"}

	subs.Subscribe("r1", connA)
	subs.Subscribe("r1", connB)

	require.NoError(t, subs.Broadcast("r1", map[string]string{"hello": "world"}, connA))

	require.Empty(t, connA.sent)
	require.Len(t, connB.sent, 1)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(connB.sent[0], &payload))
	require.Equal(t, "world", payload["hello"])
}

func TestRoomSubscriptions_SubscribeIdempotent(t *testing.T) {
	subs := NewRoomSubscriptions()
	conn := &fakeConn{id: "a", did: "did:plc:alice"}

	subs.Subscribe("r1", conn)
	subs.Subscribe("r1", conn)

	require.NoError(t, subs.Broadcast("r1", "ping", nil))
	require.Len(t, conn.sent, 1)
}

func TestRoomSubscriptions_FailingConnDoesNotAbortDelivery(t *testing.T) {
	subs := NewRoomSubscriptions()
	broken := &fakeConn{id: "x", did: "did:plc:broken", fail: true}
	healthy := &fakeConn{id: "y", did: "did:plc:healthy"}

	subs.Subscribe("r1", broken)
	subs.Subscribe("r1", healthy)

	require.NoError(t, subs.Broadcast("r1", "ping", nil))
	require.Len(t, healthy.sent, 1)
}

func TestRoomSubscriptions_UnsubscribeRemovesEmptyTopic(t *testing.T) {
	subs := NewRoomSubscriptions()
	connA := &fakeConn{id: "a", did: "did:plc:alice"}
	connB := &fakeConn{id: "b", did: "did:plc:bob"}

	subs.Subscribe("r1", connA)
	subs.Subscribe("r1", connB)
	require.Equal(t, 2, subs.Subscribers("r1"))

	subs.Unsubscribe("r1", connA)
	require.Equal(t, 1, subs.Subscribers("r1"))

	subs.UnsubscribeAll(connB)
	require.Zero(t, subs.Subscribers("r1"))

	// The topic entry itself is gone, not an empty set.
	require.NotContains(t, subs.topics, "r1")
}

func TestRoomSubscriptions_BroadcastFiltered(t *testing.T) {
	subs := NewRoomSubscriptions()
	connA := &fakeConn{id: "a", did: "did:plc:alice"}
	connB := &fakeConn{id: "b", did: "did:plc:bob"}

	subs.Subscribe("r1", connA)
	subs.Subscribe("r1", connB)

	err := subs.BroadcastFiltered("r1", "ping", nil, func(c Conn) bool {
		return c.DID() == "did:plc:bob"
	})
	require.NoError(t, err)
	require.Len(t, connA.sent, 1)
	require.Empty(t, connB.sent)
}

func TestDMSubscriptions_UnsubscribeAllReturnsEmptiedTopics(t *testing.T) {
	subs := NewDMSubscriptions()
	connA := &fakeConn{id: "a", did: "did:plc:alice"}
	connB := &fakeConn{id: "b", did: "did:plc:bob"}

	subs.Subscribe("c1", connA)
	subs.Subscribe("c1", connB)
	subs.Subscribe("c2", connA)

	emptied := subs.UnsubscribeAll(connA)

	// c2 lost its only subscriber; c1 still has connB.
	require.ElementsMatch(t, []string{"c2"}, emptied)
	require.Equal(t, 1, subs.Subscribers("c1"))
	require.Zero(t, subs.Subscribers("c2"))

	emptied = subs.UnsubscribeAll(connB)
	require.ElementsMatch(t, []string{"c1"}, emptied)
}

func TestDMSubscriptions_UnsubscribeReportsEmptyingOnce(t *testing.T) {
	subs := NewDMSubscriptions()
	connA := &fakeConn{id: "a", did: "did:plc:alice"}
	connB := &fakeConn{id: "b", did: "did:plc:bob"}

	subs.Subscribe("c1", connA)
	subs.Subscribe("c1", connB)

	// Only the removal that takes the conversation to zero reports it
	// emptied; a repeat removal of the same connection reports nothing,
	// so idle cleanup cannot fire twice for one conversation.
	require.False(t, subs.Unsubscribe("c1", connA))
	require.True(t, subs.Unsubscribe("c1", connB))
	require.False(t, subs.Unsubscribe("c1", connB))
	require.NotContains(t, subs.topics, "c1")
}

func TestDMSubscriptions_UnsubscribeAllUntracked(t *testing.T) {
	subs := NewDMSubscriptions()
	require.Empty(t, subs.UnsubscribeAll(&fakeConn{id: "ghost", did: "did:plc:ghost"}))
}
