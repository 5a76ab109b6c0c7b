package person

import (
	"context"
	"sync"

	"profil/internal/profile/models"
	"profil/pkg/platform/sentinel"
)

// InMemory keeps person contact records in memory for tests.
type InMemory struct {
	mu      sync.RWMutex
	records map[string]*models.PersonContactRecord
}

// NewInMemory constructs an empty in-memory person contact store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]*models.PersonContactRecord)}
}

// Get returns the record for a national identity number.
func (s *InMemory) Get(ctx context.Context, nin string) (*models.PersonContactRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[nin]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

// Upsert writes the record and reports whether stored content actually
// changed. Writing an identical record is a no-op.
func (s *InMemory) Upsert(ctx context.Context, rec *models.PersonContactRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[rec.NationalIdentityNumber]
	if ok && existing.ContentEquals(rec) {
		return false, nil
	}
	cp := *rec
	s.records[rec.NationalIdentityNumber] = &cp
	return true, nil
}
