package realtime

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriptionBuffer is the per-subscriber channel capacity. A subscriber
// that falls this far behind is closed rather than blocked on; its client
// re-subscribes and reconciles by re-fetching, the same path as a network
// reconnect.
const subscriptionBuffer = 64

// Hub fans realtime events out to subscribers. Chat-scoped events go to
// that chat's subscribers, everything else is broadcast.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscription is a cancellable handle on a chat's event stream.
type Subscription struct {
	hub    *Hub
	chatID uuid.UUID
	events chan Event
	once   sync.Once
}

// Events returns the stream. The channel is closed when the subscription
// is cancelled or evicted; a closed channel means the consumer must
// re-subscribe and re-fetch affected entities.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Close cancels the subscription. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s)
		close(s.events)
	})
}

// Subscribe registers a subscriber for one chat's events plus broadcasts.
func (h *Hub) Subscribe(chatID uuid.UUID) *Subscription {
	sub := &Subscription{
		hub:    h,
		chatID: chatID,
		events: make(chan Event, subscriptionBuffer),
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *Hub) remove(s *Subscription) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
}

// Publish delivers an event to matching subscribers. Delivery never blocks
// the publisher: a subscriber with a full buffer is evicted.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	var evicted []*Subscription
	for sub := range h.subs {
		if event.ChatID != nil && *event.ChatID != sub.chatID {
			continue
		}
		select {
		case sub.events <- event:
		default:
			evicted = append(evicted, sub)
		}
	}
	for _, sub := range evicted {
		delete(h.subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range evicted {
		slog.Warn("dropping slow realtime subscriber", "chat_id", sub.chatID)
		sub.Close()
	}
}
