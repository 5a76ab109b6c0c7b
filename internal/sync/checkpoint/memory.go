package checkpoint

import (
	"context"
	"sync"
	"time"

	"profil/internal/sync/models"
	"profil/pkg/platform/sentinel"
)

// InMemory keeps checkpoints in memory as a test double.
type InMemory struct {
	mu    sync.RWMutex
	rows  map[models.SourceType]*models.Checkpoint
	clock func() time.Time
}

// NewInMemory constructs an empty in-memory checkpoint store.
func NewInMemory() *InMemory {
	return &InMemory{rows: make(map[models.SourceType]*models.Checkpoint), clock: time.Now}
}

// GetLatest returns the checkpoint for a source, or sentinel.ErrNotFound when
// the source has never completed a sync.
func (s *InMemory) GetLatest(ctx context.Context, source models.SourceType) (*models.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cp, ok := s.rows[source]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *cp
	return &out, nil
}

// Advance upserts the checkpoint to the given position.
func (s *InMemory) Advance(ctx context.Context, source models.SourceType, pos models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rows[source] = &models.Checkpoint{
		Source:        source,
		LastChangedID: pos.ChangeID,
		LastChangedAt: pos.ChangedAt,
		UpdatedAt:     s.clock(),
	}
	return nil
}
