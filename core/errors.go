package core

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrSessionExpired   = errors.New("session has expired")
	ErrInvalidSession   = errors.New("invalid session token")
	ErrInvalidChallenge = errors.New("invalid or expired challenge")
	ErrRateLimited      = errors.New("rate limit exceeded")
	ErrUnresolved       = errors.New("identity could not be resolved")
	ErrStoreFailure     = errors.New("store operation failed")
)
