package domain

import "errors"

// Domain-specific errors for business logic validation.
var (
	// Lookup errors
	ErrPostNotFound       = errors.New("post not found")
	ErrEngagementNotFound = errors.New("engagement not found")
	ErrChatNotFound       = errors.New("chat not found")

	// Engagement errors
	ErrAlreadyEngaged    = errors.New("post already has an active engagement")
	ErrSelfEngagement    = errors.New("cannot accept own post")
	ErrIllegalTransition = errors.New("illegal engagement transition")
	ErrStateConflict     = errors.New("engagement state changed, refresh and retry")
	ErrEmptyReason       = errors.New("dispute reason is required")

	// Ledger errors
	ErrInvalidAmount     = errors.New("transfer amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient karma balance")

	// Rating errors
	ErrDuplicateRating = errors.New("rating already submitted for engagement")
	ErrInvalidScore    = errors.New("score must be between 1 and 5")

	// Chat errors
	ErrEmptyContent   = errors.New("message content is required")
	ErrChatArchived   = errors.New("chat is archived")
	ErrNotParticipant = errors.New("not a chat participant")

	// Auth errors
	ErrInvalidToken = errors.New("invalid authentication token")
)
