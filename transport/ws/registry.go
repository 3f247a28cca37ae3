package ws

import (
	"encoding/json"
	"sync"
)

// Conn is the opaque connection handle the registries index. The
// registries never own connection lifecycle; a connection's own close
// handler is responsible for eventual unsubscription.
type Conn interface {
	// ID uniquely identifies the connection within the process.
	ID() string

	// DID is the authenticated identity behind the connection.
	DID() string

	// Send delivers one serialized payload. Errors mean the peer is
	// gone or going; callers drop them.
	Send(payload []byte) error
}

// registry is the shared topic -> connection index behind both
// subscription flavors.
type registry struct {
	mu     sync.RWMutex
	topics map[string]map[string]Conn // topic -> conn ID -> conn
}

func newRegistry() registry {
	return registry{topics: make(map[string]map[string]Conn)}
}

func (r *registry) subscribe(topic string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.topics[topic] == nil {
		r.topics[topic] = make(map[string]Conn)
	}
	r.topics[topic][conn.ID()] = conn
}

// unsubscribe removes the connection from the topic and reports whether
// this removal emptied the topic. The check happens under the same lock
// as the removal so concurrent unsubscribers cannot both observe the
// topic emptying.
func (r *registry) unsubscribe(topic string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.topics[topic]
	if !ok {
		return false
	}
	if _, ok := subs[conn.ID()]; !ok {
		return false
	}
	delete(subs, conn.ID())
	if len(subs) == 0 {
		delete(r.topics, topic)
		return true
	}
	return false
}

// unsubscribeAll removes the connection from every topic in one pass and
// returns the topics that became empty as a result.
func (r *registry) unsubscribeAll(conn Conn) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var emptied []string
	for topic, subs := range r.topics {
		if _, ok := subs[conn.ID()]; !ok {
			continue
		}
		delete(subs, conn.ID())
		if len(subs) == 0 {
			delete(r.topics, topic)
			emptied = append(emptied, topic)
		}
	}
	return emptied
}

// subscribers snapshots the current subscriber set for a topic.
func (r *registry) subscribers(topic string) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.topics[topic]
	out := make([]Conn, 0, len(subs))
	for _, conn := range subs {
		out = append(out, conn)
	}
	return out
}

// count returns the number of subscribers on a topic. Introspection only.
func (r *registry) count(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.topics[topic])
}

// broadcast serializes the payload once and delivers it to every
// subscriber present at call time, except the excluded connection and
// any the skip predicate rejects. Individual send failures are dropped:
// a half-closed socket must not abort delivery to the rest.
func (r *registry) broadcast(topic string, payload any, exclude Conn, skip func(Conn) bool) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	for _, conn := range r.subscribers(topic) {
		if exclude != nil && conn.ID() == exclude.ID() {
			continue
		}
		if skip != nil && skip(conn) {
			continue
		}
		_ = conn.Send(data)
	}
	return nil
}

// RoomSubscriptions indexes live connections per room for message
// fan-out.
type RoomSubscriptions struct {
	registry
}

// NewRoomSubscriptions creates an empty room registry.
func NewRoomSubscriptions() *RoomSubscriptions {
	return &RoomSubscriptions{registry: newRegistry()}
}

// Subscribe adds the connection to a room topic; re-subscribing is
// idempotent.
func (s *RoomSubscriptions) Subscribe(roomID string, conn Conn) {
	s.subscribe(roomID, conn)
}

// Unsubscribe removes the connection, deleting the topic entry entirely
// when its set becomes empty.
func (s *RoomSubscriptions) Unsubscribe(roomID string, conn Conn) {
	s.unsubscribe(roomID, conn)
}

// UnsubscribeAll removes the connection from every room in one pass.
func (s *RoomSubscriptions) UnsubscribeAll(conn Conn) {
	s.unsubscribeAll(conn)
}

// Broadcast fans a payload out to the room's current subscribers.
func (s *RoomSubscriptions) Broadcast(roomID string, payload any, exclude Conn) error {
	return s.broadcast(roomID, payload, exclude, nil)
}

// BroadcastFiltered is Broadcast with a per-subscriber skip predicate,
// used to suppress delivery between blocked pairs.
func (s *RoomSubscriptions) BroadcastFiltered(roomID string, payload any, exclude Conn, skip func(Conn) bool) error {
	return s.broadcast(roomID, payload, exclude, skip)
}

// Subscribers returns the current subscriber count. Introspection only.
func (s *RoomSubscriptions) Subscribers(roomID string) int {
	return s.count(roomID)
}

// DMSubscriptions indexes live connections per conversation.
type DMSubscriptions struct {
	registry
}

// NewDMSubscriptions creates an empty conversation registry.
func NewDMSubscriptions() *DMSubscriptions {
	return &DMSubscriptions{registry: newRegistry()}
}

// Subscribe adds the connection to a conversation topic.
func (s *DMSubscriptions) Subscribe(conversationID string, conn Conn) {
	s.subscribe(conversationID, conn)
}

// Unsubscribe removes the connection, deleting the topic entry entirely
// when its set becomes empty, and reports whether this removal emptied
// the conversation.
func (s *DMSubscriptions) Unsubscribe(conversationID string, conn Conn) bool {
	return s.unsubscribe(conversationID, conn)
}

// UnsubscribeAll removes the connection from every conversation and
// returns the conversations that became empty, so the caller can release
// their ephemeral resources.
func (s *DMSubscriptions) UnsubscribeAll(conn Conn) []string {
	return s.unsubscribeAll(conn)
}

// Broadcast fans a payload out to the conversation's subscribers.
func (s *DMSubscriptions) Broadcast(conversationID string, payload any, exclude Conn) error {
	return s.broadcast(conversationID, payload, exclude, nil)
}

// BroadcastFiltered is Broadcast with a per-subscriber skip predicate.
func (s *DMSubscriptions) BroadcastFiltered(conversationID string, payload any, exclude Conn, skip func(Conn) bool) error {
	return s.broadcast(conversationID, payload, exclude, skip)
}

// Subscribers returns the current subscriber count. Introspection only.
func (s *DMSubscriptions) Subscribers(conversationID string) int {
	return s.count(conversationID)
}
