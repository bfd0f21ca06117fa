package domain

import (
	"time"

	"github.com/google/uuid"
)

// KarmaTransaction is one settled karma transfer. Rows are append-only and
// keyed by engagement: the engagement id is the idempotency key, so retried
// confirmations and duplicate realtime events collapse to a single record.
// Balances are always derived from the signed sum of these rows, never
// stored as a separately mutated counter.
type KarmaTransaction struct {
	ID           uuid.UUID
	EngagementID uuid.UUID
	FromUserID   uuid.UUID
	ToUserID     uuid.UUID
	Amount       int
	CreatedAt    time.Time
}
