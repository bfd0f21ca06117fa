package chat

import (
	"sync"

	"github.com/google/uuid"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
)

// PresenceTracker keeps the last-writer-wins online/last-seen state per
// user. A presence update is authoritative only if its timestamp is newer
// than the last one observed, which suppresses out-of-order events from
// the realtime channel.
type PresenceTracker struct {
	mu     sync.Mutex
	states map[uuid.UUID]domain.PresenceState
}

// NewPresenceTracker creates an empty PresenceTracker.
func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{states: make(map[uuid.UUID]domain.PresenceState)}
}

// Observe applies a presence update. Returns false if the update is older
// than the currently known state and was dropped.
func (p *PresenceTracker) Observe(state domain.PresenceState) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	current, ok := p.states[state.UserID]
	if ok && current.LastSeenAt.After(state.LastSeenAt) {
		return false
	}
	p.states[state.UserID] = state
	return true
}

// Get returns the known presence state for a user.
func (p *PresenceTracker) Get(userID uuid.UUID) (domain.PresenceState, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state, ok := p.states[userID]
	return state, ok
}
