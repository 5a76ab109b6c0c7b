// Package checkpoint persists the last successfully processed change-feed
// position per data source.
package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"profil/internal/sync/models"
	"profil/pkg/platform/sentinel"
	txcontext "profil/pkg/platform/tx"
)

// PostgresStore persists sync checkpoints in PostgreSQL. Advance joins a
// transaction carried in the context, so the checkpoint commits atomically
// with the page it follows.
type PostgresStore struct {
	db    *sql.DB
	clock func() time.Time
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewPostgres constructs a PostgreSQL-backed checkpoint store.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
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

// GetLatest returns the checkpoint for a source, or sentinel.ErrNotFound when
// the source has never completed a sync.
func (s *PostgresStore) GetLatest(ctx context.Context, source models.SourceType) (*models.Checkpoint, error) {
	var cp models.Checkpoint
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT source, last_changed_id, last_changed_at, updated_at
		FROM sync_checkpoints
		WHERE source = $1
	`, string(source)).Scan(&cp.Source, &cp.LastChangedID, &cp.LastChangedAt, &cp.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get checkpoint %s: %w", source, err)
	}
	return &cp, nil
}

// Advance upserts the checkpoint to the given position.
func (s *PostgresStore) Advance(ctx context.Context, source models.SourceType, pos models.Position) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO sync_checkpoints (source, last_changed_id, last_changed_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source) DO UPDATE SET
			last_changed_id = EXCLUDED.last_changed_id,
			last_changed_at = EXCLUDED.last_changed_at,
			updated_at = EXCLUDED.updated_at
	`, string(source), pos.ChangeID, pos.ChangedAt, s.clock())
	if err != nil {
		return fmt.Errorf("advance checkpoint %s: %w", source, err)
	}
	return nil
}
