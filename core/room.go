package core

import "time"

// Room is the durable room record as far as the coordination layer
// is concerned. Message history, topic metadata and the like live in
// the CRUD layer and never reach this package.
type Room struct {
	ID                string
	CreatorDID        string
	RequiresAllowlist bool
	MinAccountAgeDays int // zero means no age requirement
	CreatedAt         time.Time
}

// AccessDecision is the result of evaluating the access gate for a
// (room, did) pair. Reason is set only on denial and is a policy
// explanation safe to surface to the end user verbatim.
type AccessDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Allow is the single allowed decision; it carries no reason.
func Allow() AccessDecision {
	return AccessDecision{Allowed: true}
}

// Deny returns a denied decision with the given reason.
func Deny(reason string) AccessDecision {
	return AccessDecision{Allowed: false, Reason: reason}
}
