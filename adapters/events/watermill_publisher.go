package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/layer-3/beacon/ports"
)

const (
	// LogoutTopic carries force-logout notifications between instances.
	LogoutTopic = "beacon.logout"

	// GlobalBanTopic carries global ban set changes between instances.
	GlobalBanTopic = "beacon.ban"

	// ConversationIdleTopic announces DM conversations that lost their
	// last subscriber on this instance.
	ConversationIdleTopic = "beacon.conversation.idle"
)

// LogoutEvent is published when every session of a DID is revoked.
type LogoutEvent struct {
	DID string `json:"did"`
}

// GlobalBanEvent is published on every global ban set mutation.
type GlobalBanEvent struct {
	DID    string `json:"did"`
	Banned bool   `json:"banned"`
}

// ConversationIdleEvent is published when a DM topic empties.
type ConversationIdleEvent struct {
	ConversationID string `json:"conversation_id"`
}

// WatermillPublisher implements ports.EventPublisher over a watermill
// message publisher.
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new watermill-backed publisher.
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

func (p *WatermillPublisher) publish(topic string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// PublishLogout announces that every session of a DID was revoked.
func (p *WatermillPublisher) PublishLogout(ctx context.Context, did string) error {
	return p.publish(LogoutTopic, LogoutEvent{DID: did})
}

// PublishGlobalBan announces a change to the global ban set.
func (p *WatermillPublisher) PublishGlobalBan(ctx context.Context, did string, banned bool) error {
	return p.publish(GlobalBanTopic, GlobalBanEvent{DID: did, Banned: banned})
}

// PublishConversationIdle announces that a DM conversation emptied.
func (p *WatermillPublisher) PublishConversationIdle(ctx context.Context, conversationID string) error {
	return p.publish(ConversationIdleTopic, ConversationIdleEvent{ConversationID: conversationID})
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)
