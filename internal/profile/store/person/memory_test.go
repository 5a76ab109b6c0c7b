package person

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"profil/internal/profile/models"
	"profil/pkg/platform/sentinel"
)

type PersonStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func (s *PersonStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestPersonStoreSuite(t *testing.T) {
	suite.Run(t, new(PersonStoreSuite))
}

func newRecord(nin string) *models.PersonContactRecord {
	mobile := "+4799887766"
	lang := "nb"
	return &models.PersonContactRecord{
		NationalIdentityNumber: nin,
		MobilePhoneNumber:      &mobile,
		LanguageCode:           &lang,
		UpdatedAt:              time.Now(),
	}
}

func (s *PersonStoreSuite) TestUpsertAndGet() {
	s.Run("inserts new record", func() {
		changed, err := s.store.Upsert(s.ctx, newRecord("01018012345"))
		s.Require().NoError(err)
		s.True(changed)

		rec, err := s.store.Get(s.ctx, "01018012345")
		s.Require().NoError(err)
		s.Equal("+4799887766", *rec.MobilePhoneNumber)
	})

	s.Run("identical upsert is a no-op", func() {
		changed, err := s.store.Upsert(s.ctx, newRecord("01018012345"))
		s.Require().NoError(err)
		s.False(changed)
	})

	s.Run("different content counts as changed", func() {
		rec := newRecord("01018012345")
		email := "test@test.no"
		rec.EmailAddress = &email

		changed, err := s.store.Upsert(s.ctx, rec)
		s.Require().NoError(err)
		s.True(changed)
	})

	s.Run("timestamp-only difference is a no-op", func() {
		rec := newRecord("01018012345")
		email := "test@test.no"
		rec.EmailAddress = &email
		rec.UpdatedAt = rec.UpdatedAt.Add(time.Hour)

		changed, err := s.store.Upsert(s.ctx, rec)
		s.Require().NoError(err)
		s.False(changed)
	})
}

func (s *PersonStoreSuite) TestGetUnknown() {
	_, err := s.store.Get(s.ctx, "31129912345")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
