//go:build integration

package checkpoint_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"profil/internal/sync/checkpoint"
	"profil/internal/sync/models"
	"profil/pkg/platform/sentinel"
	txcontext "profil/pkg/platform/tx"
	"profil/pkg/testutil/containers"
)

type PostgresCheckpointSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *checkpoint.PostgresStore
}

func TestPostgresCheckpointSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresCheckpointSuite))
}

func (s *PostgresCheckpointSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = checkpoint.NewPostgres(s.postgres.DB)
}

func (s *PostgresCheckpointSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "sync_checkpoints"))
}

func (s *PostgresCheckpointSuite) TestAdvanceUpserts() {
	ctx := context.Background()
	at := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)

	_, err := s.store.GetLatest(ctx, models.SourceOrgAddresses)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Advance(ctx, models.SourceOrgAddresses, models.Position{ChangedAt: at}))

	cp, err := s.store.GetLatest(ctx, models.SourceOrgAddresses)
	s.Require().NoError(err)
	s.True(cp.LastChangedAt.Equal(at))

	later := at.Add(2 * time.Hour)
	s.Require().NoError(s.store.Advance(ctx, models.SourceOrgAddresses, models.Position{ChangedAt: later}))

	cp, err = s.store.GetLatest(ctx, models.SourceOrgAddresses)
	s.Require().NoError(err)
	s.True(cp.LastChangedAt.Equal(later))
}

func (s *PostgresCheckpointSuite) TestAdvanceRollsBackWithTransaction() {
	ctx := context.Background()

	sqlTx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	txCtx := txcontext.WithTx(ctx, sqlTx)

	pos := models.Position{ChangeID: "42", ChangedAt: time.Now().UTC()}
	s.Require().NoError(s.store.Advance(txCtx, models.SourcePersonContacts, pos))
	s.Require().NoError(sqlTx.Rollback())

	// A rolled-back page must leave the checkpoint untouched.
	_, err = s.store.GetLatest(ctx, models.SourcePersonContacts)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
