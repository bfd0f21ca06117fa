package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Publisher sends events through Postgres NOTIFY so every replica's
// listener sees them. Events published within a transaction are delivered
// only if the transaction commits, which keeps the stream consistent with
// the durable state.
type Publisher struct {
	pool *pgxpool.Pool
}

// NewPublisher creates a Publisher.
func NewPublisher(pool *pgxpool.Pool) *Publisher {
	return &Publisher{pool: pool}
}

// PublishTx publishes an event inside the caller's transaction.
func (p *Publisher) PublishTx(ctx context.Context, tx pgx.Tx, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, string(body)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}

// Publish publishes an event outside any transaction. Used for ephemeral
// typing and presence signals, which have no durable state to stay
// consistent with.
func (p *Publisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", NotifyChannel, string(body)); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	return nil
}
