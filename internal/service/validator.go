package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
)

// Validator checks role and source-state rules for engagement transitions.
// Any mismatch fails with a wrapped ErrIllegalTransition naming the
// attempted transition and current state, never a silent no-op.
type Validator struct{}

// NewValidator creates a Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// CanComplete validates the IN_PROGRESS -> AWAITING_CONFIRMATION
// transition: only the fulfiller may mark completion.
func (v *Validator) CanComplete(e *domain.TaskEngagement, actorID uuid.UUID) error {
	if e.Status != domain.EngagementStatusInProgress {
		return fmt.Errorf("%w: cannot mark engagement %s completed from %s, expected IN_PROGRESS",
			domain.ErrIllegalTransition, e.ID, e.Status)
	}
	if !e.IsFulfiller(actorID) {
		return fmt.Errorf("%w: user %s is not the fulfiller of engagement %s",
			domain.ErrIllegalTransition, actorID, e.ID)
	}
	return nil
}

// CanConfirm validates the AWAITING_CONFIRMATION -> CONFIRMED transition:
// only the post owner may confirm.
func (v *Validator) CanConfirm(e *domain.TaskEngagement, actorID uuid.UUID) error {
	if e.Status != domain.EngagementStatusAwaitingConfirmation {
		return fmt.Errorf("%w: cannot confirm engagement %s from %s, expected AWAITING_CONFIRMATION",
			domain.ErrIllegalTransition, e.ID, e.Status)
	}
	if !e.IsOwner(actorID) {
		return fmt.Errorf("%w: user %s is not the owner of engagement %s",
			domain.ErrIllegalTransition, actorID, e.ID)
	}
	return nil
}

// CanDispute validates entry into DISPUTED: either party, from
// IN_PROGRESS or AWAITING_CONFIRMATION.
func (v *Validator) CanDispute(e *domain.TaskEngagement, actorID uuid.UUID) error {
	if e.Status != domain.EngagementStatusInProgress && e.Status != domain.EngagementStatusAwaitingConfirmation {
		return fmt.Errorf("%w: cannot dispute engagement %s from %s",
			domain.ErrIllegalTransition, e.ID, e.Status)
	}
	if !e.IsParty(actorID) {
		return fmt.Errorf("%w: user %s is not part of engagement %s",
			domain.ErrIllegalTransition, actorID, e.ID)
	}
	return nil
}
