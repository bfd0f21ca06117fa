package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type typingEmission struct {
	chatID   uuid.UUID
	userID   uuid.UUID
	isTyping bool
}

type emissionRecorder struct {
	mu        sync.Mutex
	emissions []typingEmission
}

func (r *emissionRecorder) record(chatID, userID uuid.UUID, isTyping bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emissions = append(r.emissions, typingEmission{chatID: chatID, userID: userID, isTyping: isTyping})
}

func (r *emissionRecorder) snapshot() []typingEmission {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]typingEmission(nil), r.emissions...)
}

func TestTypingTracker_FirstTouchEmits(t *testing.T) {
	recorder := &emissionRecorder{}
	tracker := newTypingTracker(time.Hour, time.Hour, recorder.record)

	chatID := uuid.New()
	userID := uuid.New()

	tracker.Touch(chatID, userID)

	emissions := recorder.snapshot()
	require.Len(t, emissions, 1)
	assert.Equal(t, typingEmission{chatID: chatID, userID: userID, isTyping: true}, emissions[0])
	assert.True(t, tracker.IsTyping(chatID, userID))
}

func TestTypingTracker_DebounceSuppressesRepeats(t *testing.T) {
	recorder := &emissionRecorder{}
	tracker := newTypingTracker(time.Hour, time.Hour, recorder.record)

	chatID := uuid.New()
	userID := uuid.New()

	// Simulates a burst of keystrokes: one emission, claim stays alive.
	for i := 0; i < 10; i++ {
		tracker.Touch(chatID, userID)
	}

	assert.Len(t, recorder.snapshot(), 1)
	assert.True(t, tracker.IsTyping(chatID, userID))
}

func TestTypingTracker_ReEmitsAfterDebounceWindow(t *testing.T) {
	recorder := &emissionRecorder{}
	tracker := newTypingTracker(time.Hour, 10*time.Millisecond, recorder.record)

	chatID := uuid.New()
	userID := uuid.New()

	tracker.Touch(chatID, userID)
	time.Sleep(20 * time.Millisecond)
	tracker.Touch(chatID, userID)

	emissions := recorder.snapshot()
	require.Len(t, emissions, 2)
	assert.True(t, emissions[1].isTyping)
}

func TestTypingTracker_StopEmitsImmediately(t *testing.T) {
	recorder := &emissionRecorder{}
	tracker := newTypingTracker(time.Hour, time.Hour, recorder.record)

	chatID := uuid.New()
	userID := uuid.New()

	tracker.Touch(chatID, userID)
	tracker.Stop(chatID, userID)

	emissions := recorder.snapshot()
	require.Len(t, emissions, 2)
	assert.False(t, emissions[1].isTyping)
	assert.False(t, tracker.IsTyping(chatID, userID))
}

func TestTypingTracker_StopWithoutClaimIsNoop(t *testing.T) {
	recorder := &emissionRecorder{}
	tracker := newTypingTracker(time.Hour, time.Hour, recorder.record)

	tracker.Stop(uuid.New(), uuid.New())

	assert.Empty(t, recorder.snapshot())
}

func TestTypingTracker_TimeoutRevertsToIdle(t *testing.T) {
	recorder := &emissionRecorder{}
	tracker := newTypingTracker(20*time.Millisecond, time.Millisecond, recorder.record)

	chatID := uuid.New()
	userID := uuid.New()

	tracker.Touch(chatID, userID)

	require.Eventually(t, func() bool {
		return !tracker.IsTyping(chatID, userID)
	}, time.Second, 5*time.Millisecond, "claim should expire without refresh")

	emissions := recorder.snapshot()
	require.Len(t, emissions, 2)
	assert.False(t, emissions[1].isTyping)
}

func TestTypingTracker_TouchRefreshesTimeout(t *testing.T) {
	recorder := &emissionRecorder{}
	tracker := newTypingTracker(50*time.Millisecond, time.Millisecond, recorder.record)

	chatID := uuid.New()
	userID := uuid.New()

	tracker.Touch(chatID, userID)
	for i := 0; i < 4; i++ {
		time.Sleep(20 * time.Millisecond)
		tracker.Touch(chatID, userID)
	}

	// 80ms elapsed, past the original timeout, but refreshes kept it alive.
	assert.True(t, tracker.IsTyping(chatID, userID))
}

func TestTypingTracker_RefreshRacingExpiryStaysTyping(t *testing.T) {
	recorder := &emissionRecorder{}
	tracker := newTypingTracker(5*time.Millisecond, time.Hour, recorder.record)

	chatID := uuid.New()
	userID := uuid.New()

	// Touch at roughly the timeout cadence so refreshes keep colliding
	// with the expiry callback. A fired-but-stale callback must not revert
	// a refreshed claim to idle.
	tracker.Touch(chatID, userID)
	for i := 0; i < 30; i++ {
		time.Sleep(4 * time.Millisecond)
		tracker.Touch(chatID, userID)
	}

	assert.True(t, tracker.IsTyping(chatID, userID))
	for _, emission := range recorder.snapshot() {
		assert.True(t, emission.isTyping, "no idle emission while the claim kept refreshing")
	}
}

func TestTypingTracker_ClaimsAreScopedPerChat(t *testing.T) {
	recorder := &emissionRecorder{}
	tracker := newTypingTracker(time.Hour, time.Hour, recorder.record)

	userID := uuid.New()
	chatA := uuid.New()
	chatB := uuid.New()

	tracker.Touch(chatA, userID)

	assert.True(t, tracker.IsTyping(chatA, userID))
	assert.False(t, tracker.IsTyping(chatB, userID))
}
