package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RewardType represents how a post's exchange is settled.
type RewardType string

const (
	RewardTypeKarma RewardType = "karma"
	RewardTypeCash  RewardType = "cash"
)

// PostStatus values written back by the engine. Posts are otherwise
// owned by the external registry.
type PostStatus string

const (
	PostStatusActive    PostStatus = "active"
	PostStatusCompleted PostStatus = "completed"
)

// Post is the read-only view of a registry post that the engine needs:
// who owns it, whether it is a request or an offer, and how it is rewarded.
type Post struct {
	ID                 uuid.UUID
	OwnerID            uuid.UUID
	IsRequest          bool
	RewardType         RewardType
	KarmaValue         int
	PaymentAmountCents *int64
	Status             PostStatus
	CreatedAt          time.Time
}

// Validate checks required fields once at the registry boundary, so the
// core never re-checks them ad hoc.
func (p *Post) Validate() error {
	if p.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: post %s has no owner", ErrPostNotFound, p.ID)
	}
	switch p.RewardType {
	case RewardTypeKarma:
		if p.KarmaValue <= 0 {
			return fmt.Errorf("%w: karma post %s has non-positive value", ErrInvalidAmount, p.ID)
		}
	case RewardTypeCash:
		if p.PaymentAmountCents == nil || *p.PaymentAmountCents <= 0 {
			return fmt.Errorf("%w: cash post %s has no payment amount", ErrInvalidAmount, p.ID)
		}
	default:
		return fmt.Errorf("%w: post %s has unknown reward type %q", ErrInvalidAmount, p.ID, p.RewardType)
	}
	return nil
}
