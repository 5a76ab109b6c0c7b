// Package audit records key profile actions through a transactional outbox.
// Events are written next to the domain change and relayed to Kafka by the
// outbox relay; Kafka is the downstream source of truth for audit events.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// OutboxStore is the relay-facing side of the outbox.
type OutboxStore interface {
	ListUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}

// Publisher captures structured audit events. It is append-only and uses the
// storage layer for persistence so tests can swap sinks easily.
type Publisher struct {
	store Store
}

// NewPublisher builds a publisher over the given store.
func NewPublisher(store Store) *Publisher {
	return &Publisher{store: store}
}

// Emit records one event, stamping the time when the caller left it zero.
// When called inside a reconciliation transaction the event commits or rolls
// back with the page.
func (p *Publisher) Emit(ctx context.Context, base Event) error {
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	if base.Timestamp.IsZero() {
		base.Timestamp = time.Now()
	}
	return p.store.Append(ctx, base)
}
