package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Relay drains the outbox to Kafka in batches. Rows are marked published
// only after the broker acked them, so a crash re-sends at-least-once and
// consumers must dedupe on event ID.
type Relay struct {
	outbox   OutboxStore
	producer Producer
	interval time.Duration
	batch    int
	log      *slog.Logger
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithRelayInterval sets the poll interval. Defaults to 5s.
func WithRelayInterval(d time.Duration) RelayOption {
	return func(r *Relay) { r.interval = d }
}

// WithRelayBatchSize caps how many rows one tick drains. Defaults to 100.
func WithRelayBatchSize(n int) RelayOption {
	return func(r *Relay) { r.batch = n }
}

// WithRelayLogger sets the logger.
func WithRelayLogger(log *slog.Logger) RelayOption {
	return func(r *Relay) { r.log = log }
}

// NewRelay builds the outbox relay worker.
func NewRelay(outbox OutboxStore, producer Producer, opts ...RelayOption) *Relay {
	r := &Relay{
		outbox:   outbox,
		producer: producer,
		interval: 5 * time.Second,
		batch:    100,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls the outbox until the context ends. Publish failures are logged
// and retried on the next tick rather than stopping the relay.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.DrainOnce(ctx); err != nil {
				r.log.Error("audit relay tick failed", "error", err)
			}
		}
	}
}

// DrainOnce relays one batch of pending outbox rows.
func (r *Relay) DrainOnce(ctx context.Context) error {
	entries, err := r.outbox.ListUnpublished(ctx, r.batch)
	if err != nil {
		return fmt.Errorf("read outbox: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	published := make([]uuid.UUID, 0, len(entries))
	for _, entry := range entries {
		if err := r.producer.Produce(ctx, []byte(entry.ID.String()), entry.Payload); err != nil {
			// Keep outbox order; stop the batch at the first failure.
			if markErr := r.outbox.MarkPublished(ctx, published); markErr != nil {
				return fmt.Errorf("mark published after produce failure: %w", markErr)
			}
			return fmt.Errorf("produce outbox entry %s: %w", entry.ID, err)
		}
		published = append(published, entry.ID)
	}

	if err := r.outbox.MarkPublished(ctx, published); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	r.log.Debug("audit outbox drained", "count", len(published))
	return nil
}
