package chat

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/realtobyfu/karma-farm-sub001/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceTracker_ObserveAndGet(t *testing.T) {
	tracker := NewPresenceTracker()
	userID := uuid.New()

	_, known := tracker.Get(userID)
	assert.False(t, known)

	now := time.Now().UTC()
	applied := tracker.Observe(domain.PresenceState{UserID: userID, IsOnline: true, LastSeenAt: now})
	assert.True(t, applied)

	state, known := tracker.Get(userID)
	require.True(t, known)
	assert.True(t, state.IsOnline)
	assert.Equal(t, now, state.LastSeenAt)
}

func TestPresenceTracker_DropsOutOfOrderUpdates(t *testing.T) {
	tracker := NewPresenceTracker()
	userID := uuid.New()
	now := time.Now().UTC()

	applied := tracker.Observe(domain.PresenceState{UserID: userID, IsOnline: false, LastSeenAt: now})
	require.True(t, applied)

	// A stale online event arrives late; last writer by timestamp wins.
	applied = tracker.Observe(domain.PresenceState{UserID: userID, IsOnline: true, LastSeenAt: now.Add(-time.Minute)})
	assert.False(t, applied)

	state, known := tracker.Get(userID)
	require.True(t, known)
	assert.False(t, state.IsOnline)
	assert.Equal(t, now, state.LastSeenAt)
}

func TestPresenceTracker_NewerUpdateWins(t *testing.T) {
	tracker := NewPresenceTracker()
	userID := uuid.New()
	now := time.Now().UTC()

	require.True(t, tracker.Observe(domain.PresenceState{UserID: userID, IsOnline: true, LastSeenAt: now}))
	require.True(t, tracker.Observe(domain.PresenceState{UserID: userID, IsOnline: false, LastSeenAt: now.Add(time.Second)}))

	state, _ := tracker.Get(userID)
	assert.False(t, state.IsOnline)
}

func TestPresenceTracker_UsersAreIndependent(t *testing.T) {
	tracker := NewPresenceTracker()
	userA := uuid.New()
	userB := uuid.New()
	now := time.Now().UTC()

	require.True(t, tracker.Observe(domain.PresenceState{UserID: userA, IsOnline: true, LastSeenAt: now}))

	_, known := tracker.Get(userB)
	assert.False(t, known)
}
