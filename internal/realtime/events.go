// Package realtime maintains the change-event stream between the backend
// and connected clients: writers publish through Postgres NOTIFY, a
// listener fans notifications out to in-process subscribers, and the chat
// feed delivers them to clients.
package realtime

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NotifyChannel is the Postgres NOTIFY channel all events travel on.
const NotifyChannel = "karma_events"

// EventType identifies the kind of realtime event.
type EventType string

const (
	EventMessage    EventType = "message"
	EventTyping     EventType = "typing"
	EventPresence   EventType = "presence"
	EventEngagement EventType = "engagement"

	// EventResync tells clients the stream may have gaps (reconnect or a
	// dropped subscriber) and affected entities must be re-fetched rather
	// than assumed caught up.
	EventResync EventType = "resync"
)

// Event is the envelope carried over NOTIFY and delivered to subscribers.
// Chat-scoped events carry a ChatID and are routed to that chat's
// subscribers; events without one are broadcast.
type Event struct {
	Type    EventType       `json:"type"`
	ChatID  *uuid.UUID      `json:"chat_id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	At      time.Time       `json:"at"`
}

// NewEvent builds an event with a JSON-encoded payload.
func NewEvent(eventType EventType, chatID *uuid.UUID, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		Type:    eventType,
		ChatID:  chatID,
		Payload: body,
		At:      time.Now().UTC(),
	}, nil
}

// TypingPayload is the payload of an EventTyping event.
type TypingPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	IsTyping bool      `json:"is_typing"`
}

// PresencePayload is the payload of an EventPresence event. Consumers must
// treat it as authoritative only if LastSeenAt is newer than the last one
// observed for the user.
type PresencePayload struct {
	UserID     uuid.UUID `json:"user_id"`
	IsOnline   bool      `json:"is_online"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// EngagementPayload is the payload of an EventEngagement event.
type EngagementPayload struct {
	EngagementID uuid.UUID `json:"engagement_id"`
	PostID       uuid.UUID `json:"post_id"`
	Status       string    `json:"status"`
}
