// Package engine reconciles mapped change-feed pages against local storage.
// One page is applied in one transaction; the checkpoint advances inside the
// same transaction and only when the page changed at least one row.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	orgmodels "profil/internal/organization/models"
	profilemodels "profil/internal/profile/models"
	"profil/internal/sync/mapper"
	syncmetrics "profil/internal/sync/metrics"
	"profil/internal/sync/models"
	"profil/pkg/platform/sentinel"
	txcontext "profil/pkg/platform/tx"
)

// OrganizationStore is the slice of the organization store the engine needs.
type OrganizationStore interface {
	FindByNumber(ctx context.Context, orgNumber string) (*orgmodels.Organization, error)
	FindAddressByRegistryID(ctx context.Context, orgID uuid.UUID, registryID string) (*orgmodels.NotificationAddress, error)
	Create(ctx context.Context, org *orgmodels.Organization) error
	InsertAddress(ctx context.Context, addr *orgmodels.NotificationAddress) error
	UpdateAddress(ctx context.Context, addr *orgmodels.NotificationAddress) error
	SoftDeleteAddress(ctx context.Context, id uuid.UUID, at time.Time) error
}

// PersonStore is the slice of the person contact store the engine needs.
type PersonStore interface {
	Upsert(ctx context.Context, rec *profilemodels.PersonContactRecord) (bool, error)
}

// CheckpointStore advances the per-source watermark. The engine calls it
// inside the page transaction so the advance commits with the writes.
type CheckpointStore interface {
	Advance(ctx context.Context, source models.SourceType, pos models.Position) error
}

// TxRunner wraps one page's apply step in a transaction boundary.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Changes counts the rows a page actually touched.
type Changes struct {
	Inserted int
	Updated  int
	Deleted  int
}

// Total is the number used to decide whether the checkpoint may advance.
func (c Changes) Total() int { return c.Inserted + c.Updated + c.Deleted }

// Engine applies mapped pages transactionally.
type Engine struct {
	orgs        OrganizationStore
	persons     PersonStore
	checkpoints CheckpointStore
	runInTx     TxRunner
	clock       func() time.Time
	log         *slog.Logger
	metrics     *syncmetrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithTxRunner overrides the transaction boundary; tests with in-memory
// stores pass a pass-through runner.
func WithTxRunner(r TxRunner) Option {
	return func(e *Engine) {
		if r != nil {
			e.runInTx = r
		}
	}
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithMetrics attaches sync metrics.
func WithMetrics(m *syncmetrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New constructs an Engine. A nil db requires WithTxRunner.
func New(db *sql.DB, orgs OrganizationStore, persons PersonStore, checkpoints CheckpointStore, opts ...Option) (*Engine, error) {
	if checkpoints == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	e := &Engine{
		orgs:        orgs,
		persons:     persons,
		checkpoints: checkpoints,
		clock:       time.Now,
		log:         slog.Default(),
	}
	if db != nil {
		e.runInTx = func(ctx context.Context, fn func(ctx context.Context) error) error {
			return txcontext.Within(ctx, db, fn)
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.runInTx == nil {
		return nil, fmt.Errorf("engine needs a database or an explicit tx runner")
	}
	return e, nil
}

// ApplyAddressPage reconciles one page of mapped organization-address changes.
// Returns the rows changed; on any error the whole page rolls back and the
// checkpoint stays put.
func (e *Engine) ApplyAddressPage(ctx context.Context, changes []*models.AddressChange, pos models.Position) (Changes, error) {
	if e.orgs == nil {
		return Changes{}, fmt.Errorf("organization store is not configured")
	}

	var counts Changes
	err := e.runInTx(ctx, func(ctx context.Context) error {
		counts = Changes{}

		// Load or create every parent aggregate referenced by the page,
		// keeping an index of its live addresses to diff against.
		type aggregate struct {
			org  *orgmodels.Organization
			live map[string]*orgmodels.NotificationAddress
		}
		aggregates := make(map[string]*aggregate)

		loadOrg := func(number string) (*aggregate, error) {
			if agg, ok := aggregates[number]; ok {
				return agg, nil
			}
			org, err := e.orgs.FindByNumber(ctx, number)
			if errors.Is(err, sentinel.ErrNotFound) {
				now := e.clock()
				org = &orgmodels.Organization{
					ID:                 uuid.New(),
					OrganizationNumber: number,
					CreatedAt:          now,
					UpdatedAt:          now,
				}
				if err := e.orgs.Create(ctx, org); err != nil {
					return nil, err
				}
				e.log.Info("created organization from feed", "organization_number", number)
			} else if err != nil {
				return nil, err
			}
			agg := &aggregate{org: org, live: make(map[string]*orgmodels.NotificationAddress, len(org.Addresses))}
			for _, addr := range org.Addresses {
				agg.live[addr.RegistryID] = addr
			}
			aggregates[number] = agg
			return agg, nil
		}

		for _, change := range changes {
			agg, err := loadOrg(change.OrganizationNumber)
			if err != nil {
				return err
			}
			existing := agg.live[change.RegistryID]

			if change.Tombstone {
				if existing == nil {
					// The id is not live; an already-tombstoned row means the
					// deletion was applied on an earlier run of this page.
					prior, err := e.orgs.FindAddressByRegistryID(ctx, agg.org.ID, change.RegistryID)
					if errors.Is(err, sentinel.ErrNotFound) {
						// A deletion for an id we never stored cannot be applied;
						// skipping it silently would be invisible forever once the
						// checkpoint advances, so the page fails instead.
						return fmt.Errorf("entry %s under organization %s: %w",
							change.RegistryID, change.OrganizationNumber, mapper.ErrUnrecognizedAddressType)
					}
					if err != nil {
						return err
					}
					if prior.SoftDeleted {
						continue
					}
					existing = prior
				}
				if err := e.orgs.SoftDeleteAddress(ctx, existing.ID, e.clock()); err != nil {
					return err
				}
				delete(agg.live, change.RegistryID)
				counts.Deleted++
				continue
			}

			desired := e.desiredAddress(agg.org.ID, change)
			if existing == nil {
				if err := e.orgs.InsertAddress(ctx, desired); err != nil {
					return err
				}
				agg.live[change.RegistryID] = desired
				counts.Inserted++
				continue
			}

			if existing.ContentEquals(desired) {
				continue
			}
			updated := *existing
			updated.AddressType = desired.AddressType
			updated.Domain = desired.Domain
			updated.Address = desired.Address
			updated.FullAddress = desired.FullAddress
			updated.NotificationName = desired.NotificationName
			updated.RegistryUpdatedAt = change.RegistryUpdatedAt
			updated.UpdateSource = orgmodels.UpdateSourceRegistry
			updated.HasRegistryAccepted = true
			updated.UpdatedAt = e.clock()
			if err := e.orgs.UpdateAddress(ctx, &updated); err != nil {
				return err
			}
			agg.live[change.RegistryID] = &updated
			counts.Updated++
		}

		if counts.Total() > 0 {
			if err := e.checkpoints.Advance(ctx, models.SourceOrgAddresses, pos); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Changes{}, err
	}

	source := string(models.SourceOrgAddresses)
	e.metrics.AddRows(source, "added", counts.Inserted)
	e.metrics.AddRows(source, "updated", counts.Updated)
	e.metrics.AddRows(source, "deleted", counts.Deleted)
	return counts, nil
}

// ApplyPersonPage reconciles one page of mapped person contact records.
func (e *Engine) ApplyPersonPage(ctx context.Context, recs []*profilemodels.PersonContactRecord, pos models.Position) (Changes, error) {
	if e.persons == nil {
		return Changes{}, fmt.Errorf("person store is not configured")
	}

	var counts Changes
	err := e.runInTx(ctx, func(ctx context.Context) error {
		counts = Changes{}
		for _, rec := range recs {
			changed, err := e.persons.Upsert(ctx, rec)
			if err != nil {
				return err
			}
			if changed {
				counts.Updated++
			}
		}
		if counts.Total() > 0 {
			if err := e.checkpoints.Advance(ctx, models.SourcePersonContacts, pos); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Changes{}, err
	}

	e.metrics.AddRows(string(models.SourcePersonContacts), "upserted", counts.Updated)
	return counts, nil
}

// desiredAddress builds the row a mapped change should result in.
func (e *Engine) desiredAddress(orgID uuid.UUID, change *models.AddressChange) *orgmodels.NotificationAddress {
	now := e.clock()
	return &orgmodels.NotificationAddress{
		ID:                  uuid.New(),
		OrganizationID:      orgID,
		RegistryID:          change.RegistryID,
		AddressType:         change.AddressType,
		Domain:              change.Domain,
		Address:             change.Address,
		FullAddress:         change.FullAddress,
		NotificationName:    change.NotificationName,
		RegistryUpdatedAt:   change.RegistryUpdatedAt,
		UpdateSource:        orgmodels.UpdateSourceRegistry,
		HasRegistryAccepted: true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}
