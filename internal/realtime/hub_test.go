package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RoutesChatScopedEvents(t *testing.T) {
	hub := NewHub()
	chatA := uuid.New()
	chatB := uuid.New()

	subA := hub.Subscribe(chatA)
	defer subA.Close()
	subB := hub.Subscribe(chatB)
	defer subB.Close()

	hub.Publish(Event{Type: EventMessage, ChatID: &chatA, At: time.Now()})

	select {
	case event := <-subA.Events():
		assert.Equal(t, EventMessage, event.Type)
	default:
		t.Fatal("expected event for chat A subscriber")
	}

	select {
	case event := <-subB.Events():
		t.Fatalf("chat B subscriber received foreign event %v", event)
	default:
	}
}

func TestHub_BroadcastsUnscopedEvents(t *testing.T) {
	hub := NewHub()

	subA := hub.Subscribe(uuid.New())
	defer subA.Close()
	subB := hub.Subscribe(uuid.New())
	defer subB.Close()

	hub.Publish(Event{Type: EventResync, At: time.Now()})

	for _, sub := range []*Subscription{subA, subB} {
		select {
		case event := <-sub.Events():
			assert.Equal(t, EventResync, event.Type)
		default:
			t.Fatal("expected broadcast to reach every subscriber")
		}
	}
}

func TestHub_EvictsSlowSubscribers(t *testing.T) {
	hub := NewHub()
	chatID := uuid.New()

	sub := hub.Subscribe(chatID)

	// Never drained: overflow the buffer and trip eviction.
	for i := 0; i < subscriptionBuffer+1; i++ {
		hub.Publish(Event{Type: EventMessage, ChatID: &chatID, At: time.Now()})
	}

	// Drain everything that was buffered; the channel must end closed.
	received := 0
	closed := false
	for !closed {
		select {
		case _, open := <-sub.Events():
			if !open {
				closed = true
				break
			}
			received++
		case <-time.After(time.Second):
			t.Fatal("expected evicted subscriber's channel to be closed")
		}
	}

	assert.Equal(t, subscriptionBuffer, received)

	// A later publish must not reach the evicted subscriber.
	hub.Publish(Event{Type: EventMessage, ChatID: &chatID, At: time.Now()})
}

func TestHub_PublishAfterCloseIsSafe(t *testing.T) {
	hub := NewHub()
	chatID := uuid.New()

	sub := hub.Subscribe(chatID)
	sub.Close()
	sub.Close() // idempotent

	hub.Publish(Event{Type: EventMessage, ChatID: &chatID, At: time.Now()})

	_, open := <-sub.Events()
	require.False(t, open)
}
