package organization

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"profil/internal/organization/models"
	"profil/pkg/platform/sentinel"
	txcontext "profil/pkg/platform/tx"
)

// PostgresStore persists organizations and notification addresses in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed organization store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer joins a transaction carried in the context, falling back to the pool.
func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const addressColumns = `id, organization_id, registry_id, address_type, domain, address,
	full_address, notification_name, registry_updated_at, update_source,
	has_registry_accepted, soft_deleted, created_at, updated_at`

// FindByNumber loads an organization and its live notification addresses.
func (s *PostgresStore) FindByNumber(ctx context.Context, orgNumber string) (*models.Organization, error) {
	ex := s.execer(ctx)

	var org models.Organization
	err := ex.QueryRowContext(ctx, `
		SELECT id, organization_number, created_at, updated_at
		FROM organizations
		WHERE organization_number = $1
	`, orgNumber).Scan(&org.ID, &org.OrganizationNumber, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find organization %s: %w", orgNumber, err)
	}

	addrs, err := s.ListCurrentAddresses(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	org.Addresses = addrs
	return &org, nil
}

// Create inserts a new organization row.
func (s *PostgresStore) Create(ctx context.Context, org *models.Organization) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO organizations (id, organization_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
	`, org.ID, org.OrganizationNumber, org.CreatedAt, org.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("organization %s: %w", org.OrganizationNumber, sentinel.ErrConflict)
		}
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// InsertAddress adds a live notification address.
func (s *PostgresStore) InsertAddress(ctx context.Context, addr *models.NotificationAddress) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO notification_addresses (`+addressColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, addr.ID, addr.OrganizationID, addr.RegistryID, string(addr.AddressType),
		addr.Domain, addr.Address, addr.FullAddress, addr.NotificationName,
		addr.RegistryUpdatedAt, string(addr.UpdateSource),
		addr.HasRegistryAccepted, addr.SoftDeleted, addr.CreatedAt, addr.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("address %s: %w", addr.RegistryID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert notification address: %w", err)
	}
	return nil
}

// UpdateAddress overwrites the mutable fields of an existing address.
func (s *PostgresStore) UpdateAddress(ctx context.Context, addr *models.NotificationAddress) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE notification_addresses
		SET registry_id = $2, address_type = $3, domain = $4, address = $5,
			full_address = $6, notification_name = $7, registry_updated_at = $8,
			update_source = $9, has_registry_accepted = $10, updated_at = $11
		WHERE id = $1
	`, addr.ID, addr.RegistryID, string(addr.AddressType), addr.Domain, addr.Address,
		addr.FullAddress, addr.NotificationName, addr.RegistryUpdatedAt,
		string(addr.UpdateSource), addr.HasRegistryAccepted, addr.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("address %s: %w", addr.RegistryID, sentinel.ErrConflict)
		}
		return fmt.Errorf("update notification address: %w", err)
	}
	return requireRow(res, "update notification address")
}

// SoftDeleteAddress marks the address deleted, keeping the row for audit.
func (s *PostgresStore) SoftDeleteAddress(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE notification_addresses
		SET soft_deleted = TRUE, updated_at = $2
		WHERE id = $1 AND NOT soft_deleted
	`, id, at)
	if err != nil {
		return fmt.Errorf("soft delete notification address: %w", err)
	}
	return requireRow(res, "soft delete notification address")
}

// FindAddress returns one address row by ID, soft-deleted rows included.
func (s *PostgresStore) FindAddress(ctx context.Context, id uuid.UUID) (*models.NotificationAddress, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+addressColumns+`
		FROM notification_addresses
		WHERE id = $1
	`, id)
	addr, err := scanAddress(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find notification address: %w", err)
	}
	return addr, nil
}

// FindAddressByRegistryID returns the row an organization holds for a
// registry id, soft-deleted rows included. A live row wins over tombstones;
// among tombstones the most recently updated one wins.
func (s *PostgresStore) FindAddressByRegistryID(ctx context.Context, orgID uuid.UUID, registryID string) (*models.NotificationAddress, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT `+addressColumns+`
		FROM notification_addresses
		WHERE organization_id = $1 AND registry_id = $2
		ORDER BY soft_deleted, updated_at DESC
		LIMIT 1
	`, orgID, registryID)
	addr, err := scanAddress(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find notification address by registry id: %w", err)
	}
	return addr, nil
}

// ListCurrentAddresses returns the live addresses of an organization in
// insertion order.
func (s *PostgresStore) ListCurrentAddresses(ctx context.Context, orgID uuid.UUID) ([]*models.NotificationAddress, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT `+addressColumns+`
		FROM notification_addresses
		WHERE organization_id = $1 AND NOT soft_deleted
		ORDER BY created_at
	`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list notification addresses: %w", err)
	}
	defer rows.Close()

	var out []*models.NotificationAddress
	for rows.Next() {
		addr, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification address: %w", err)
		}
		out = append(out, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notification addresses: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAddress(row rowScanner) (*models.NotificationAddress, error) {
	var (
		addr              models.NotificationAddress
		addressType       string
		updateSource      string
		registryUpdatedAt sql.NullTime
	)
	err := row.Scan(&addr.ID, &addr.OrganizationID, &addr.RegistryID, &addressType,
		&addr.Domain, &addr.Address, &addr.FullAddress, &addr.NotificationName,
		&registryUpdatedAt, &updateSource, &addr.HasRegistryAccepted,
		&addr.SoftDeleted, &addr.CreatedAt, &addr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	addr.AddressType = models.AddressType(addressType)
	addr.UpdateSource = models.UpdateSource(updateSource)
	if registryUpdatedAt.Valid {
		addr.RegistryUpdatedAt = registryUpdatedAt.Time
	}
	return &addr, nil
}

func requireRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
