package ports

import "context"

// EventPublisher notifies peer instances about coordination-layer
// state changes. Publish failures are logged by callers and never fail
// the triggering operation.
type EventPublisher interface {
	// PublishLogout announces that every session of a DID was revoked.
	PublishLogout(ctx context.Context, did string) error

	// PublishGlobalBan announces a change to the global ban set.
	PublishGlobalBan(ctx context.Context, did string, banned bool) error

	// PublishConversationIdle announces that a DM conversation lost its
	// last subscribed connection.
	PublishConversationIdle(ctx context.Context, conversationID string) error
}
