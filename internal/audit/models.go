package audit

import (
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the profile service.
const (
	ActionSyncRun       = "sync.run"
	ActionAddressCreate = "address.create"
	ActionAddressUpdate = "address.update"
	ActionAddressDelete = "address.delete"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        uuid.UUID         `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Subject   string            `json:"subject"`
	Outcome   string            `json:"outcome"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// OutboxEntry is one pending row of the transactional outbox.
type OutboxEntry struct {
	ID        uuid.UUID
	Payload   []byte
	CreatedAt time.Time
}
