package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/layer-3/beacon/core"
	"github.com/layer-3/beacon/ports"
)

// AuthService handles the challenge handshake and session lifecycle.
// Signature verification over the nonce belongs to the identity layer
// in front of this service; by the time Verify is called the transport
// has authenticated ownership of the DID.
type AuthService struct {
	challenges ports.ChallengeStore
	sessions   ports.SessionStore
	blocks     *BlockService
	events     ports.EventPublisher
	log        *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	challenges ports.ChallengeStore,
	sessions ports.SessionStore,
	blocks *BlockService,
	events ports.EventPublisher,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		challenges: challenges,
		sessions:   sessions,
		blocks:     blocks,
		events:     events,
		log:        log,
	}
}

// CreateChallenge issues a fresh nonce for the DID, replacing any
// pending challenge.
func (s *AuthService) CreateChallenge(ctx context.Context, did string) (string, error) {
	nonce, err := s.challenges.Create(ctx, did)
	if err != nil {
		return "", fmt.Errorf("failed to create challenge: %w", err)
	}
	return nonce, nil
}

// Verify consumes the DID's challenge and, on a match, opens a session.
// The challenge is spent either way; a retry needs a new one.
func (s *AuthService) Verify(ctx context.Context, did, nonce, handle string) (string, error) {
	ok, err := s.challenges.Consume(ctx, did, nonce)
	if err != nil {
		return "", fmt.Errorf("failed to consume challenge: %w", err)
	}
	if !ok {
		return "", core.ErrInvalidChallenge
	}

	token, err := s.sessions.Create(ctx, did, handle, 0)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}

	s.blocks.Touch(did)
	return token, nil
}

// Authenticate resolves a bearer token to its session. Expired and
// unknown tokens are indistinguishable.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*core.Session, error) {
	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if sess == nil {
		return nil, core.ErrInvalidSession
	}
	return sess, nil
}

// Logout deletes a single session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// RevokeByDID force-logs-out every session of a DID and notifies peer
// instances. Returns whether any session existed.
func (s *AuthService) RevokeByDID(ctx context.Context, did string) (bool, error) {
	existed, err := s.sessions.RevokeByDID(ctx, did)
	if err != nil {
		return false, fmt.Errorf("failed to revoke sessions: %w", err)
	}
	if existed {
		if err := s.events.PublishLogout(ctx, did); err != nil {
			// The sessions are gone locally, which is the critical part.
			s.log.Error("failed to publish logout event", "did", did, "err", err)
		}
	}
	return existed, nil
}

// UpdateHandle propagates a handle change to the DID's live sessions.
func (s *AuthService) UpdateHandle(ctx context.Context, did, handle string) error {
	if err := s.sessions.UpdateHandle(ctx, did, handle); err != nil {
		return fmt.Errorf("failed to update handle: %w", err)
	}
	return nil
}
