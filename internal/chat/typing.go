package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// typingTimeout is how long a typing claim survives without refresh
	// before auto-reverting to idle. Self-heals the indicator if the
	// client disconnects mid-type.
	typingTimeout = 3 * time.Second

	// typingDebounce suppresses redundant typing=true emissions while the
	// user keeps typing, so the realtime channel doesn't see an event per
	// keystroke.
	typingDebounce = 500 * time.Millisecond
)

type typingKey struct {
	chatID uuid.UUID
	userID uuid.UUID
}

type typingEntry struct {
	lastEmit  time.Time
	expiresAt time.Time
	timer     *time.Timer
}

// TypingTracker runs the per-user-per-chat typing state machine:
// Idle -> Typing -> Idle. State is ephemeral and in-process only.
type TypingTracker struct {
	mu       sync.Mutex
	states   map[typingKey]*typingEntry
	timeout  time.Duration
	debounce time.Duration
	emit     func(chatID, userID uuid.UUID, isTyping bool)
}

// NewTypingTracker creates a tracker with production timings. emit is
// called outside the tracker lock for every state change worth announcing.
func NewTypingTracker(emit func(chatID, userID uuid.UUID, isTyping bool)) *TypingTracker {
	return newTypingTracker(typingTimeout, typingDebounce, emit)
}

func newTypingTracker(timeout, debounce time.Duration, emit func(chatID, userID uuid.UUID, isTyping bool)) *TypingTracker {
	return &TypingTracker{
		states:   make(map[typingKey]*typingEntry),
		timeout:  timeout,
		debounce: debounce,
		emit:     emit,
	}
}

// Touch records typing activity. Entering Typing emits typing=true and
// starts the timeout; further touches refresh the timeout but re-emit at
// most once per debounce window.
func (t *TypingTracker) Touch(chatID, userID uuid.UUID) {
	key := typingKey{chatID: chatID, userID: userID}
	now := time.Now()
	shouldEmit := false

	t.mu.Lock()
	entry, ok := t.states[key]
	if !ok {
		entry = &typingEntry{}
		entry.timer = time.AfterFunc(t.timeout, func() { t.expire(key) })
		t.states[key] = entry
		shouldEmit = true
	} else {
		entry.timer.Reset(t.timeout)
		if now.Sub(entry.lastEmit) >= t.debounce {
			shouldEmit = true
		}
	}
	entry.expiresAt = now.Add(t.timeout)
	if shouldEmit {
		entry.lastEmit = now
	}
	t.mu.Unlock()

	if shouldEmit {
		t.emit(chatID, userID, true)
	}
}

// Stop ends the typing claim immediately (message sent or chat left) and
// emits typing=false.
func (t *TypingTracker) Stop(chatID, userID uuid.UUID) {
	key := typingKey{chatID: chatID, userID: userID}

	t.mu.Lock()
	entry, ok := t.states[key]
	if ok {
		entry.timer.Stop()
		delete(t.states, key)
	}
	t.mu.Unlock()

	if ok {
		t.emit(chatID, userID, false)
	}
}

// expire is the timeout path: no refresh arrived, revert to idle. The
// timer can fire and then block on the lock while a Touch refreshes the
// claim; a stale fire is detected by the pushed-out deadline and re-armed
// instead of emitting a spurious idle.
func (t *TypingTracker) expire(key typingKey) {
	t.mu.Lock()
	entry, ok := t.states[key]
	if ok && time.Now().Before(entry.expiresAt) {
		entry.timer.Reset(time.Until(entry.expiresAt))
		t.mu.Unlock()
		return
	}
	if ok {
		delete(t.states, key)
	}
	t.mu.Unlock()

	if ok {
		t.emit(key.chatID, key.userID, false)
	}
}

// IsTyping reports whether the user currently holds a typing claim in the
// chat.
func (t *TypingTracker) IsTyping(chatID, userID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.states[typingKey{chatID: chatID, userID: userID}]
	return ok
}
