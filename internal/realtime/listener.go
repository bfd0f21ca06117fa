package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Listener holds a dedicated connection LISTENing for events and feeds
// them into the hub. On reconnect it publishes a resync event first:
// events missed during the disconnect window are reconciled by clients
// re-fetching, never assumed caught up by the stream alone.
type Listener struct {
	pool *pgxpool.Pool
	hub  *Hub
}

// NewListener creates a Listener.
func NewListener(pool *pgxpool.Pool, hub *Hub) *Listener {
	return &Listener{pool: pool, hub: hub}
}

// Run listens until the context is cancelled, reconnecting with doubling
// backoff on connection loss.
func (l *Listener) Run(ctx context.Context) error {
	backoff := initialBackoff
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("realtime listener disconnected", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (l *Listener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	// Anything published before this point may have been missed.
	l.hub.Publish(Event{Type: EventResync, At: time.Now().UTC()})
	slog.Info("realtime listener connected", "channel", NotifyChannel)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var event Event
		if err := json.Unmarshal([]byte(notification.Payload), &event); err != nil {
			slog.Error("malformed realtime event", "error", err, "payload", notification.Payload)
			continue
		}
		l.hub.Publish(event)
	}
}
