package organization

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"profil/internal/organization/models"
	"profil/pkg/platform/sentinel"
)

// InMemory keeps organizations and their notification addresses in memory.
// It mirrors the Postgres store's semantics closely enough to serve as a test
// double for services and the reconciliation engine.
type InMemory struct {
	mu    sync.RWMutex
	orgs  map[string]*models.Organization           // keyed by organization number
	addrs map[uuid.UUID]*models.NotificationAddress // keyed by address ID
}

// NewInMemory constructs an empty in-memory organization store.
func NewInMemory() *InMemory {
	return &InMemory{
		orgs:  make(map[string]*models.Organization),
		addrs: make(map[uuid.UUID]*models.NotificationAddress),
	}
}

// FindByNumber returns the organization with its live addresses.
func (s *InMemory) FindByNumber(ctx context.Context, orgNumber string) (*models.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[strings.TrimSpace(orgNumber)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *org
	out.Addresses = s.liveAddressesLocked(org.ID)
	return &out, nil
}

// Create inserts a new organization. The business key must be unused.
func (s *InMemory) Create(ctx context.Context, org *models.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(org.OrganizationNumber)
	if key == "" {
		return sentinel.ErrInvalidState
	}
	if _, exists := s.orgs[key]; exists {
		return sentinel.ErrConflict
	}
	cp := *org
	cp.Addresses = nil
	s.orgs[key] = &cp
	return nil
}

// InsertAddress adds a live notification address to its organization.
func (s *InMemory) InsertAddress(ctx context.Context, addr *models.NotificationAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.addrs {
		if existing.OrganizationID == addr.OrganizationID &&
			existing.RegistryID == addr.RegistryID && !existing.SoftDeleted {
			return sentinel.ErrConflict
		}
	}
	cp := *addr
	s.addrs[addr.ID] = &cp
	return nil
}

// UpdateAddress overwrites an existing address row.
func (s *InMemory) UpdateAddress(ctx context.Context, addr *models.NotificationAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.addrs[addr.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *addr
	s.addrs[addr.ID] = &cp
	return nil
}

// SoftDeleteAddress marks an address as deleted without removing the row.
func (s *InMemory) SoftDeleteAddress(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr, ok := s.addrs[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	addr.SoftDeleted = true
	addr.UpdatedAt = at
	return nil
}

// FindAddress returns one address row by ID, soft-deleted rows included.
func (s *InMemory) FindAddress(ctx context.Context, id uuid.UUID) (*models.NotificationAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	addr, ok := s.addrs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *addr
	return &cp, nil
}

// FindAddressByRegistryID returns the row an organization holds for a
// registry id, soft-deleted rows included. A live row wins over tombstones;
// among tombstones the most recently updated one wins.
func (s *InMemory) FindAddressByRegistryID(ctx context.Context, orgID uuid.UUID, registryID string) (*models.NotificationAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var tombstone *models.NotificationAddress
	for _, addr := range s.addrs {
		if addr.OrganizationID != orgID || addr.RegistryID != registryID {
			continue
		}
		if !addr.SoftDeleted {
			cp := *addr
			return &cp, nil
		}
		if tombstone == nil || addr.UpdatedAt.After(tombstone.UpdatedAt) {
			tombstone = addr
		}
	}
	if tombstone == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *tombstone
	return &cp, nil
}

// ListCurrentAddresses returns the live addresses of an organization.
func (s *InMemory) ListCurrentAddresses(ctx context.Context, orgID uuid.UUID) ([]*models.NotificationAddress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveAddressesLocked(orgID), nil
}

func (s *InMemory) liveAddressesLocked(orgID uuid.UUID) []*models.NotificationAddress {
	var out []*models.NotificationAddress
	for _, addr := range s.addrs {
		if addr.OrganizationID == orgID && !addr.SoftDeleted {
			cp := *addr
			out = append(out, &cp)
		}
	}
	return out
}
