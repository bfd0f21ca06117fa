package domain

import (
	"time"

	"github.com/google/uuid"
)

// EngagementStatus represents the status of a task engagement in the state machine.
type EngagementStatus string

const (
	EngagementStatusPending              EngagementStatus = "PENDING"
	EngagementStatusInProgress           EngagementStatus = "IN_PROGRESS"
	EngagementStatusAwaitingConfirmation EngagementStatus = "AWAITING_CONFIRMATION"
	EngagementStatusConfirmed            EngagementStatus = "CONFIRMED"
	EngagementStatusDisputed             EngagementStatus = "DISPUTED"
)

// IsTerminal returns true if the status allows no further forward transitions.
func (s EngagementStatus) IsTerminal() bool {
	return s == EngagementStatusConfirmed || s == EngagementStatusDisputed
}

// IsActive returns true if the engagement still occupies the post's
// engagement slot. At most one active engagement may exist per post.
func (s EngagementStatus) IsActive() bool {
	switch s {
	case EngagementStatusPending, EngagementStatusInProgress, EngagementStatusAwaitingConfirmation:
		return true
	default:
		return false
	}
}

// IsValid checks if the status is one of the allowed values.
func (s EngagementStatus) IsValid() bool {
	switch s {
	case EngagementStatusPending, EngagementStatusInProgress,
		EngagementStatusAwaitingConfirmation, EngagementStatusConfirmed,
		EngagementStatusDisputed:
		return true
	default:
		return false
	}
}

// TaskEngagement is the relationship between a post owner and the user
// fulfilling the post. It is created on accept, mutated only through the
// state machine, and retained after reaching a terminal status for audit
// and rating.
type TaskEngagement struct {
	ID                     uuid.UUID
	PostID                 uuid.UUID
	OwnerID                uuid.UUID
	FulfillerID            uuid.UUID
	Status                 EngagementStatus
	ProposedCompletionDate *time.Time
	CompletionNotes        *string
	DisputeReason          *string
	AcceptedAt             time.Time
	CompletedAt            *time.Time
	ConfirmedAt            *time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// IsOwner checks if the given user owns the post behind this engagement.
func (e *TaskEngagement) IsOwner(userID uuid.UUID) bool {
	return e.OwnerID == userID
}

// IsFulfiller checks if the given user is the accepted fulfiller.
func (e *TaskEngagement) IsFulfiller(userID uuid.UUID) bool {
	return e.FulfillerID == userID
}

// IsParty checks if the given user is either side of the engagement.
func (e *TaskEngagement) IsParty(userID uuid.UUID) bool {
	return e.IsOwner(userID) || e.IsFulfiller(userID)
}
