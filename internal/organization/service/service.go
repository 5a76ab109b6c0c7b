// Package service implements locally-originated notification address edits.
// Local edits are written with UpdateSource System and pushed outward to the
// registry; the inbound change feed overwrites them on the next sync if the
// registry disagrees.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"profil/internal/audit"
	"profil/internal/organization/models"
	"profil/internal/sync/mapper"
	"profil/pkg/platform/sentinel"
	"profil/pkg/platform/tx"
)

// ErrPushFailed marks an edit that was stored locally but not accepted by
// the registry. The row stays with HasRegistryAccepted false until the next
// push or inbound sync reconciles it.
var ErrPushFailed = errors.New("registry push failed")

// Store is the subset of the organization store the service needs.
type Store interface {
	FindByNumber(ctx context.Context, orgNumber string) (*models.Organization, error)
	Create(ctx context.Context, org *models.Organization) error
	InsertAddress(ctx context.Context, addr *models.NotificationAddress) error
	UpdateAddress(ctx context.Context, addr *models.NotificationAddress) error
	SoftDeleteAddress(ctx context.Context, id uuid.UUID, at time.Time) error
	FindAddress(ctx context.Context, id uuid.UUID) (*models.NotificationAddress, error)
	ListCurrentAddresses(ctx context.Context, orgID uuid.UUID) ([]*models.NotificationAddress, error)
}

// RegistryClient pushes local edits to the external registry.
type RegistryClient interface {
	Define(ctx context.Context, addr *models.NotificationAddress) (string, error)
	Replace(ctx context.Context, registryID string, addr *models.NotificationAddress) error
	Remove(ctx context.Context, registryID string) error
}

// AuditPublisher records edit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// AddressInput is one locally-originated address edit.
type AddressInput struct {
	AddressType      models.AddressType
	Domain           string
	Address          string
	NotificationName string
}

// Service coordinates local writes with the outbound registry push.
type Service struct {
	store    Store
	registry RegistryClient
	audit    AuditPublisher
	run      func(ctx context.Context, fn func(ctx context.Context) error) error
	log      *slog.Logger
	clock    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides time in tests.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithTxRunner overrides the transaction wrapper, for tests without a DB.
func WithTxRunner(run func(ctx context.Context, fn func(ctx context.Context) error) error) Option {
	return func(s *Service) { s.run = run }
}

// New builds the organization address service.
func New(db *sql.DB, store Store, registry RegistryClient, auditPub AuditPublisher, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("organization service: store is required")
	}
	if registry == nil {
		return nil, errors.New("organization service: registry client is required")
	}
	s := &Service{
		store:    store,
		registry: registry,
		audit:    auditPub,
		log:      slog.Default(),
		clock:    time.Now,
	}
	if db != nil {
		s.run = func(ctx context.Context, fn func(ctx context.Context) error) error {
			return tx.Within(ctx, db, fn)
		}
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.run == nil {
		return nil, errors.New("organization service: db or tx runner is required")
	}
	return s, nil
}

// ListAddresses returns the organization's live notification addresses.
func (s *Service) ListAddresses(ctx context.Context, orgNumber string) ([]*models.NotificationAddress, error) {
	org, err := s.store.FindByNumber(ctx, orgNumber)
	if err != nil {
		return nil, fmt.Errorf("find organization %s: %w", orgNumber, err)
	}
	return org.Addresses, nil
}

// CreateAddress stores a new address locally and pushes it to the registry.
// The local row is durable either way; a failed push leaves it unaccepted and
// returns ErrPushFailed.
func (s *Service) CreateAddress(ctx context.Context, orgNumber string, input AddressInput) (*models.NotificationAddress, error) {
	if !input.AddressType.IsValid() {
		return nil, fmt.Errorf("address type %q: %w", input.AddressType, sentinel.ErrInvalidState)
	}

	now := s.clock()
	var addr *models.NotificationAddress
	err := s.run(ctx, func(ctx context.Context) error {
		org, err := s.loadOrCreateOrg(ctx, orgNumber, now)
		if err != nil {
			return err
		}
		addr = s.buildAddress(org.ID, input, now)
		if err := s.store.InsertAddress(ctx, addr); err != nil {
			return fmt.Errorf("insert address: %w", err)
		}
		return s.emit(ctx, audit.ActionAddressCreate, orgNumber, "stored")
	})
	if err != nil {
		return nil, err
	}

	registryID, err := s.registry.Define(ctx, addr)
	if err != nil {
		s.log.Warn("registry rejected new address",
			"organization", orgNumber, "address", addr.ID, "error", err)
		return addr, fmt.Errorf("define address %s: %v: %w", addr.ID, err, ErrPushFailed)
	}

	addr.RegistryID = registryID
	addr.HasRegistryAccepted = true
	addr.UpdatedAt = s.clock()
	if err := s.store.UpdateAddress(ctx, addr); err != nil {
		return nil, fmt.Errorf("record registry acceptance: %w", err)
	}
	return addr, nil
}

// UpdateAddress applies a local edit and pushes the replacement outward.
func (s *Service) UpdateAddress(ctx context.Context, addressID uuid.UUID, input AddressInput) (*models.NotificationAddress, error) {
	if !input.AddressType.IsValid() {
		return nil, fmt.Errorf("address type %q: %w", input.AddressType, sentinel.ErrInvalidState)
	}

	addr, err := s.store.FindAddress(ctx, addressID)
	if err != nil {
		return nil, fmt.Errorf("find address %s: %w", addressID, err)
	}

	now := s.clock()
	desired := s.buildAddress(addr.OrganizationID, input, now)
	addr.AddressType = desired.AddressType
	addr.Domain = desired.Domain
	addr.Address = desired.Address
	addr.FullAddress = desired.FullAddress
	addr.NotificationName = desired.NotificationName
	addr.UpdateSource = models.UpdateSourceSystem
	addr.HasRegistryAccepted = false
	addr.UpdatedAt = now

	err = s.run(ctx, func(ctx context.Context) error {
		if err := s.store.UpdateAddress(ctx, addr); err != nil {
			return fmt.Errorf("update address: %w", err)
		}
		return s.emit(ctx, audit.ActionAddressUpdate, addr.RegistryID, "stored")
	})
	if err != nil {
		return nil, err
	}

	if err := s.registry.Replace(ctx, addr.RegistryID, addr); err != nil {
		s.log.Warn("registry rejected address update",
			"address", addr.ID, "error", err)
		return addr, fmt.Errorf("replace address %s: %v: %w", addr.RegistryID, err, ErrPushFailed)
	}

	addr.HasRegistryAccepted = true
	addr.UpdatedAt = s.clock()
	if err := s.store.UpdateAddress(ctx, addr); err != nil {
		return nil, fmt.Errorf("record registry acceptance: %w", err)
	}
	return addr, nil
}

// DeleteAddress soft-deletes locally and pushes the logical delete outward.
func (s *Service) DeleteAddress(ctx context.Context, addressID uuid.UUID) error {
	addr, err := s.store.FindAddress(ctx, addressID)
	if err != nil {
		return fmt.Errorf("find address %s: %w", addressID, err)
	}

	now := s.clock()
	err = s.run(ctx, func(ctx context.Context) error {
		if err := s.store.SoftDeleteAddress(ctx, addressID, now); err != nil {
			return fmt.Errorf("soft delete address: %w", err)
		}
		return s.emit(ctx, audit.ActionAddressDelete, addr.RegistryID, "stored")
	})
	if err != nil {
		return err
	}

	if err := s.registry.Remove(ctx, addr.RegistryID); err != nil {
		s.log.Warn("registry rejected address delete",
			"address", addr.ID, "error", err)
		return fmt.Errorf("remove address %s: %v: %w", addr.RegistryID, err, ErrPushFailed)
	}
	return nil
}

func (s *Service) loadOrCreateOrg(ctx context.Context, orgNumber string, now time.Time) (*models.Organization, error) {
	org, err := s.store.FindByNumber(ctx, orgNumber)
	switch {
	case err == nil:
		return org, nil
	case errors.Is(err, sentinel.ErrNotFound):
		org = &models.Organization{
			ID:                 uuid.New(),
			OrganizationNumber: orgNumber,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if err := s.store.Create(ctx, org); err != nil {
			return nil, fmt.Errorf("create organization %s: %w", orgNumber, err)
		}
		return org, nil
	default:
		return nil, fmt.Errorf("find organization %s: %w", orgNumber, err)
	}
}

// buildAddress derives the full address the same way the inbound mapper does,
// so local and synced rows stay comparable.
func (s *Service) buildAddress(orgID uuid.UUID, input AddressInput, now time.Time) *models.NotificationAddress {
	domain := input.Domain
	full := input.Address + "@" + domain
	if input.AddressType == models.AddressTypeSms {
		domain = mapper.NormalizePhonePrefix(input.Domain)
		full = domain + input.Address
	}
	return &models.NotificationAddress{
		ID:                  uuid.New(),
		OrganizationID:      orgID,
		RegistryID:          uuid.NewString(),
		AddressType:         input.AddressType,
		Domain:              domain,
		Address:             input.Address,
		FullAddress:         full,
		NotificationName:    input.NotificationName,
		RegistryUpdatedAt:   now,
		UpdateSource:        models.UpdateSourceSystem,
		HasRegistryAccepted: false,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

func (s *Service) emit(ctx context.Context, action, subject, outcome string) error {
	if s.audit == nil {
		return nil
	}
	if err := s.audit.Emit(ctx, audit.Event{
		Action:  action,
		Subject: subject,
		Outcome: outcome,
	}); err != nil {
		return fmt.Errorf("emit audit event: %w", err)
	}
	return nil
}
