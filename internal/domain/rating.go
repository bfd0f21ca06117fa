package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Well-known helpfulness tags. The column is a free text array; these are
// the values the mobile client offers.
const (
	TagOnTime   = "on-time"
	TagFriendly = "friendly"
	TagSkilled  = "skilled"
	TagGenerous = "generous"
)

// Rating is a post-completion review of one party by the other. Immutable
// once created; at most one rating per (engagement, rater).
type Rating struct {
	ID           uuid.UUID
	EngagementID uuid.UUID
	RaterID      uuid.UUID
	RateeID      uuid.UUID
	Score        int
	Review       *string
	Tags         []string
	CreatedAt    time.Time
}

// RatingSummary is the running (sum, count) per ratee, maintained so the
// average is O(1) without rescanning rating history.
type RatingSummary struct {
	UserID   uuid.UUID
	ScoreSum int64
	Count    int64
}

// Average returns the display average rounded to one decimal. Further
// computation should use the raw sum and count.
func (s RatingSummary) Average() float64 {
	if s.Count == 0 {
		return 0
	}
	return math.Round(float64(s.ScoreSum)/float64(s.Count)*10) / 10
}
