//go:build integration

package organization_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"profil/internal/organization/models"
	"profil/internal/organization/store/organization"
	"profil/pkg/platform/sentinel"
	txcontext "profil/pkg/platform/tx"
	"profil/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *organization.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = organization.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "notification_addresses", "organizations")
	s.Require().NoError(err)
}

func newTestOrg(number string) *models.Organization {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Organization{
		ID:                 uuid.New(),
		OrganizationNumber: number,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func newTestAddress(orgID uuid.UUID, registryID string) *models.NotificationAddress {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.NotificationAddress{
		ID:                uuid.New(),
		OrganizationID:    orgID,
		RegistryID:        registryID,
		AddressType:       models.AddressTypeSms,
		Domain:            "+47",
		Address:           "99887766",
		FullAddress:       "+4799887766",
		RegistryUpdatedAt: now,
		UpdateSource:      models.UpdateSourceRegistry,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (s *PostgresStoreSuite) TestOrganizationRoundTrip() {
	ctx := context.Background()
	org := newTestOrg("910012345")
	s.Require().NoError(s.store.Create(ctx, org))

	found, err := s.store.FindByNumber(ctx, "910012345")
	s.Require().NoError(err)
	s.Equal(org.ID, found.ID)
	s.Empty(found.Addresses)

	s.Require().ErrorIs(s.store.Create(ctx, newTestOrg("910012345")), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestLiveRegistryIDUniqueness() {
	ctx := context.Background()
	org := newTestOrg("910054321")
	s.Require().NoError(s.store.Create(ctx, org))

	first := newTestAddress(org.ID, "reg-7")
	s.Require().NoError(s.store.InsertAddress(ctx, first))

	dup := newTestAddress(org.ID, "reg-7")
	s.Require().ErrorIs(s.store.InsertAddress(ctx, dup), sentinel.ErrConflict)

	// Soft-deleted rows free the registry id for re-insertion.
	s.Require().NoError(s.store.SoftDeleteAddress(ctx, first.ID, time.Now().UTC()))
	s.Require().NoError(s.store.InsertAddress(ctx, newTestAddress(org.ID, "reg-7")))

	live, err := s.store.ListCurrentAddresses(ctx, org.ID)
	s.Require().NoError(err)
	s.Require().Len(live, 1)

	// The soft-deleted row is still readable directly.
	row, err := s.store.FindAddress(ctx, first.ID)
	s.Require().NoError(err)
	s.True(row.SoftDeleted)
}

func (s *PostgresStoreSuite) TestFindAddressByRegistryID() {
	ctx := context.Background()
	org := newTestOrg("910077665")
	s.Require().NoError(s.store.Create(ctx, org))

	_, err := s.store.FindAddressByRegistryID(ctx, org.ID, "reg-9")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	first := newTestAddress(org.ID, "reg-9")
	s.Require().NoError(s.store.InsertAddress(ctx, first))
	s.Require().NoError(s.store.SoftDeleteAddress(ctx, first.ID, time.Now().UTC()))

	found, err := s.store.FindAddressByRegistryID(ctx, org.ID, "reg-9")
	s.Require().NoError(err)
	s.Equal(first.ID, found.ID)
	s.True(found.SoftDeleted)

	// After the registry reuses the id, the live row is returned.
	reused := newTestAddress(org.ID, "reg-9")
	s.Require().NoError(s.store.InsertAddress(ctx, reused))

	found, err = s.store.FindAddressByRegistryID(ctx, org.ID, "reg-9")
	s.Require().NoError(err)
	s.Equal(reused.ID, found.ID)
	s.False(found.SoftDeleted)
}

func (s *PostgresStoreSuite) TestJoinsTransactionFromContext() {
	ctx := context.Background()
	org := newTestOrg("910099888")

	sqlTx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	txCtx := txcontext.WithTx(ctx, sqlTx)

	s.Require().NoError(s.store.Create(txCtx, org))
	s.Require().NoError(s.store.InsertAddress(txCtx, newTestAddress(org.ID, "reg-tx")))
	s.Require().NoError(sqlTx.Rollback())

	// Nothing from the rolled-back transaction is visible.
	_, err = s.store.FindByNumber(ctx, "910099888")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateAddress() {
	ctx := context.Background()
	org := newTestOrg("910077666")
	s.Require().NoError(s.store.Create(ctx, org))

	addr := newTestAddress(org.ID, "reg-9")
	s.Require().NoError(s.store.InsertAddress(ctx, addr))

	addr.Address = "11223344"
	addr.FullAddress = "+4711223344"
	addr.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	s.Require().NoError(s.store.UpdateAddress(ctx, addr))

	found, err := s.store.FindAddress(ctx, addr.ID)
	s.Require().NoError(err)
	s.Equal("+4711223344", found.FullAddress)

	missing := newTestAddress(org.ID, "reg-gone")
	s.Require().ErrorIs(s.store.UpdateAddress(ctx, missing), sentinel.ErrNotFound)
}
