package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// fakeOutbox is a minimal in-memory outbox for relay tests.
type fakeOutbox struct {
	mu        sync.Mutex
	entries   []OutboxEntry
	published map[uuid.UUID]bool
	listErr   error
}

func newFakeOutbox(payloads ...string) *fakeOutbox {
	f := &fakeOutbox{published: make(map[uuid.UUID]bool)}
	base := time.Now()
	for i, p := range payloads {
		f.entries = append(f.entries, OutboxEntry{
			ID:        uuid.New(),
			Payload:   []byte(p),
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return f
}

func (f *fakeOutbox) ListUnpublished(_ context.Context, limit int) ([]OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []OutboxEntry
	for _, e := range f.entries {
		if !f.published[e.ID] {
			out = append(out, e)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkPublished(_ context.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.published[id] = true
	}
	return nil
}

func (f *fakeOutbox) pendingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.entries {
		if !f.published[e.ID] {
			n++
		}
	}
	return n
}

type fakeProducer struct {
	mu     sync.Mutex
	values []string
	failOn string
}

func (p *fakeProducer) Produce(_ context.Context, _ []byte, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failOn != "" && string(value) == p.failOn {
		return errors.New("broker unavailable")
	}
	p.values = append(p.values, string(value))
	return nil
}

func (p *fakeProducer) Close() {}

func testRelay(outbox OutboxStore, producer Producer) *Relay {
	return NewRelay(outbox, producer,
		WithRelayLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithRelayBatchSize(10),
	)
}

func TestDrainOncePublishesInOrder(t *testing.T) {
	outbox := newFakeOutbox(`{"n":1}`, `{"n":2}`, `{"n":3}`)
	producer := &fakeProducer{}

	relay := testRelay(outbox, producer)
	require.NoError(t, relay.DrainOnce(context.Background()))

	require.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, producer.values)
	require.Zero(t, outbox.pendingCount())
}

func TestDrainOnceEmptyOutboxIsNoOp(t *testing.T) {
	outbox := newFakeOutbox()
	producer := &fakeProducer{}

	relay := testRelay(outbox, producer)
	require.NoError(t, relay.DrainOnce(context.Background()))
	require.Empty(t, producer.values)
}

func TestProduceFailureKeepsUnackedRows(t *testing.T) {
	outbox := newFakeOutbox(`{"n":1}`, `{"n":2}`, `{"n":3}`)
	producer := &fakeProducer{failOn: `{"n":2}`}

	relay := testRelay(outbox, producer)
	require.Error(t, relay.DrainOnce(context.Background()))

	// Row 1 was acked and marked; rows 2 and 3 stay pending for the next tick.
	require.Equal(t, []string{`{"n":1}`}, producer.values)
	require.Equal(t, 2, outbox.pendingCount())

	producer.failOn = ""
	require.NoError(t, relay.DrainOnce(context.Background()))
	require.Zero(t, outbox.pendingCount())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	relay := testRelay(newFakeOutbox(), &fakeProducer{})
	require.ErrorIs(t, relay.Run(ctx), context.Canceled)
}

func TestPublisherStampsIDAndTimestamp(t *testing.T) {
	store := NewInMemoryStore()
	pub := NewPublisher(store)

	require.NoError(t, pub.Emit(context.Background(), Event{
		Action:  ActionAddressCreate,
		Subject: "910012345",
		Outcome: "ok",
	}))

	events := store.Events()
	require.Len(t, events, 1)
	require.NotEqual(t, uuid.Nil, events[0].ID)
	require.False(t, events[0].Timestamp.IsZero())
	require.Equal(t, ActionAddressCreate, events[0].Action)
}
