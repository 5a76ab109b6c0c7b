package mapper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orgmodels "profil/internal/organization/models"
	"profil/internal/sync/models"
)

func TestNormalizePhonePrefix(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare country code gets plus", "47", "+47"},
		{"double zero becomes plus", "0047", "+47"},
		{"already normalized passes through", "+47", "+47"},
		{"empty passes through", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizePhonePrefix(tc.raw))
		})
	}
}

func addressEntry(id string, content models.EntryContent) models.RawEntry {
	if content.Unit == nil {
		content.Unit = &models.UnitIdentifier{OrganizationNumber: "910012345"}
	}
	return models.RawEntry{
		ID:      id,
		Updated: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		Title:   "Hovedpostkasse",
		Content: content,
	}
}

func TestMapAddress_Email(t *testing.T) {
	entry := addressEntry("reg-1", models.EntryContent{
		Email: &models.EmailContactPoint{Username: "test", Domain: "test.no"},
	})

	change, err := MapAddress(entry)
	require.NoError(t, err)

	assert.Equal(t, orgmodels.AddressTypeEmail, change.AddressType)
	assert.Equal(t, "test", change.Address)
	assert.Equal(t, "test.no", change.Domain)
	assert.Equal(t, "test@test.no", change.FullAddress)
	assert.Equal(t, "Hovedpostkasse", change.NotificationName)
	assert.Equal(t, "910012345", change.OrganizationNumber)
	assert.Equal(t, entry.Updated, change.RegistryUpdatedAt)
	assert.False(t, change.Tombstone)
}

func TestMapAddress_Sms(t *testing.T) {
	entry := addressEntry("reg-2", models.EntryContent{
		Phone: &models.PhoneContactPoint{Prefix: "0047", NationalNumber: "99887766"},
	})

	change, err := MapAddress(entry)
	require.NoError(t, err)

	assert.Equal(t, orgmodels.AddressTypeSms, change.AddressType)
	assert.Equal(t, "+47", change.Domain)
	assert.Equal(t, "99887766", change.Address)
	// Prefix and national number concatenate without separator.
	assert.Equal(t, "+4799887766", change.FullAddress)
}

func TestMapAddress_EmailWinsOverPhone(t *testing.T) {
	entry := addressEntry("reg-3", models.EntryContent{
		Email: &models.EmailContactPoint{Username: "post", Domain: "example.no"},
		Phone: &models.PhoneContactPoint{Prefix: "47", NationalNumber: "11223344"},
	})

	change, err := MapAddress(entry)
	require.NoError(t, err)
	assert.Equal(t, orgmodels.AddressTypeEmail, change.AddressType)
}

func TestMapAddress_NoContactPointIsTombstone(t *testing.T) {
	entry := addressEntry("reg-4", models.EntryContent{})

	change, err := MapAddress(entry)
	require.NoError(t, err)
	assert.True(t, change.Tombstone)
	assert.Equal(t, "reg-4", change.RegistryID)
}

func TestMapAddress_MissingUnit(t *testing.T) {
	entry := models.RawEntry{ID: "reg-5", Content: models.EntryContent{
		Email: &models.EmailContactPoint{Username: "a", Domain: "b.no"},
	}}

	_, err := MapAddress(entry)
	require.ErrorIs(t, err, ErrMalformedEntry)
}

func TestMapAddressPage_LastEntryWinsWithinPage(t *testing.T) {
	entries := []models.RawEntry{
		addressEntry("reg-1", models.EntryContent{
			Email: &models.EmailContactPoint{Username: "first", Domain: "test.no"},
		}),
		addressEntry("reg-2", models.EntryContent{
			Phone: &models.PhoneContactPoint{Prefix: "47", NationalNumber: "99887766"},
		}),
		addressEntry("reg-1", models.EntryContent{
			Email: &models.EmailContactPoint{Username: "second", Domain: "test.no"},
		}),
	}

	changes, err := MapAddressPage(entries)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, "second@test.no", changes[0].FullAddress)
	assert.Equal(t, "reg-2", changes[1].RegistryID)
}

func TestMapAddressPage_BadEntryFailsWholePage(t *testing.T) {
	entries := []models.RawEntry{
		addressEntry("reg-1", models.EntryContent{
			Email: &models.EmailContactPoint{Username: "good", Domain: "test.no"},
		}),
		{ID: "reg-2"}, // no unit, no contact point
	}

	_, err := MapAddressPage(entries)
	require.ErrorIs(t, err, ErrMalformedEntry)
}

func TestMapPerson(t *testing.T) {
	reserved := false
	mobile := "+4740004000"
	lang := "nb"
	entry := models.RawEntry{
		ID:      "12000",
		Updated: time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC),
		Content: models.EntryContent{Person: &models.PersonContactInfo{
			NationalIdentityNumber: "01018012345",
			Reserved:               &reserved,
			MobilePhoneNumber:      &mobile,
			LanguageCode:           &lang,
		}},
	}

	rec, err := MapPerson(entry)
	require.NoError(t, err)
	assert.Equal(t, "01018012345", rec.NationalIdentityNumber)
	assert.Equal(t, "+4740004000", *rec.MobilePhoneNumber)
	assert.Equal(t, "nb", *rec.LanguageCode)
	assert.False(t, *rec.Reserved)
	assert.Equal(t, entry.Updated, rec.UpdatedAt)
}

func TestMapPerson_MissingPayload(t *testing.T) {
	_, err := MapPerson(models.RawEntry{ID: "12001"})
	require.ErrorIs(t, err, ErrMalformedEntry)
}
