package person

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"profil/internal/profile/models"
	"profil/pkg/platform/sentinel"
	txcontext "profil/pkg/platform/tx"
)

// PostgresStore persists person contact records in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed person contact store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Get returns the record for a national identity number.
func (s *PostgresStore) Get(ctx context.Context, nin string) (*models.PersonContactRecord, error) {
	var rec models.PersonContactRecord
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT national_identity_number, reserved, mobile_phone_number, mobile_verified_at,
			email_address, email_verified_at, language_code, updated_at
		FROM person_contacts
		WHERE national_identity_number = $1
	`, nin).Scan(&rec.NationalIdentityNumber, &rec.Reserved, &rec.MobilePhoneNumber,
		&rec.MobileVerifiedAt, &rec.EmailAddress, &rec.EmailVerifiedAt,
		&rec.LanguageCode, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get person contact: %w", err)
	}
	return &rec, nil
}

// Upsert writes the record and reports whether stored content actually
// changed. The conflict arm only fires when register content differs, so a
// replayed page counts zero changes.
func (s *PostgresStore) Upsert(ctx context.Context, rec *models.PersonContactRecord) (bool, error) {
	res, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO person_contacts (national_identity_number, reserved, mobile_phone_number,
			mobile_verified_at, email_address, email_verified_at, language_code, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (national_identity_number) DO UPDATE SET
			reserved = EXCLUDED.reserved,
			mobile_phone_number = EXCLUDED.mobile_phone_number,
			mobile_verified_at = EXCLUDED.mobile_verified_at,
			email_address = EXCLUDED.email_address,
			email_verified_at = EXCLUDED.email_verified_at,
			language_code = EXCLUDED.language_code,
			updated_at = EXCLUDED.updated_at
		WHERE (person_contacts.reserved, person_contacts.mobile_phone_number,
			person_contacts.mobile_verified_at, person_contacts.email_address,
			person_contacts.email_verified_at, person_contacts.language_code)
			IS DISTINCT FROM
			(EXCLUDED.reserved, EXCLUDED.mobile_phone_number, EXCLUDED.mobile_verified_at,
			EXCLUDED.email_address, EXCLUDED.email_verified_at, EXCLUDED.language_code)
	`, rec.NationalIdentityNumber, rec.Reserved, rec.MobilePhoneNumber,
		rec.MobileVerifiedAt, rec.EmailAddress, rec.EmailVerifiedAt,
		rec.LanguageCode, rec.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("upsert person contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert person contact: %w", err)
	}
	return n > 0, nil
}
