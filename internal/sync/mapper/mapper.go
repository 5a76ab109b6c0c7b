// Package mapper turns raw feed entries into canonical local records. Pure
// functions, no I/O; any failure here aborts the whole page so the checkpoint
// cannot advance past a silently dropped record.
package mapper

import (
	"errors"
	"fmt"
	"strings"

	orgmodels "profil/internal/organization/models"
	profilemodels "profil/internal/profile/models"
	"profil/internal/sync/models"
)

// ErrUnrecognizedAddressType signals an entry whose payload is neither an
// email nor a phone contact point nor a deletion marker.
var ErrUnrecognizedAddressType = errors.New("unrecognized address type")

// ErrMalformedEntry signals an entry missing the fields needed to associate
// it with a local record.
var ErrMalformedEntry = errors.New("malformed feed entry")

// MapAddress maps one organization-address feed entry. An entry carrying unit
// metadata but no contact point is a deletion marker for its registry id.
func MapAddress(entry models.RawEntry) (*models.AddressChange, error) {
	unit := entry.Content.Unit
	if unit == nil || strings.TrimSpace(unit.OrganizationNumber) == "" {
		return nil, fmt.Errorf("entry %s has no organization number: %w", entry.ID, ErrMalformedEntry)
	}

	change := &models.AddressChange{
		OrganizationNumber: strings.TrimSpace(unit.OrganizationNumber),
		RegistryID:         entry.ID,
		NotificationName:   entry.Title,
		RegistryUpdatedAt:  entry.Updated,
	}

	switch {
	case entry.Content.Email != nil:
		email := entry.Content.Email
		change.AddressType = orgmodels.AddressTypeEmail
		change.Domain = email.Domain
		change.Address = email.Username
		change.FullAddress = email.Username + "@" + email.Domain
	case entry.Content.Phone != nil:
		phone := entry.Content.Phone
		prefix := NormalizePhonePrefix(phone.Prefix)
		change.AddressType = orgmodels.AddressTypeSms
		change.Domain = prefix
		change.Address = phone.NationalNumber
		change.FullAddress = prefix + phone.NationalNumber
	default:
		// Unit metadata without any contact point marks a deletion.
		change.Tombstone = true
	}

	return change, nil
}

// MapAddressPage maps a whole page in feed order, deduplicating repeated
// registry ids so the later entry wins.
func MapAddressPage(entries []models.RawEntry) ([]*models.AddressChange, error) {
	ordered := make([]*models.AddressChange, 0, len(entries))
	index := make(map[string]int, len(entries))

	for _, entry := range entries {
		change, err := MapAddress(entry)
		if err != nil {
			return nil, err
		}
		key := change.OrganizationNumber + "/" + change.RegistryID
		if pos, seen := index[key]; seen {
			ordered[pos] = change
			continue
		}
		index[key] = len(ordered)
		ordered = append(ordered, change)
	}
	return ordered, nil
}

// MapPerson maps one person-register feed entry.
func MapPerson(entry models.RawEntry) (*profilemodels.PersonContactRecord, error) {
	p := entry.Content.Person
	if p == nil || strings.TrimSpace(p.NationalIdentityNumber) == "" {
		return nil, fmt.Errorf("entry %s has no person payload: %w", entry.ID, ErrMalformedEntry)
	}
	return &profilemodels.PersonContactRecord{
		NationalIdentityNumber: strings.TrimSpace(p.NationalIdentityNumber),
		Reserved:               p.Reserved,
		MobilePhoneNumber:      p.MobilePhoneNumber,
		MobileVerifiedAt:       p.MobileVerifiedAt,
		EmailAddress:           p.EmailAddress,
		EmailVerifiedAt:        p.EmailVerifiedAt,
		LanguageCode:           p.LanguageCode,
		UpdatedAt:              entry.Updated,
	}, nil
}

// NormalizePhonePrefix rewrites a raw international prefix to "+"-form.
// Empty input and prefixes already starting with "+" pass through; a leading
// "00" is replaced by "+"; anything else gets "+" prepended.
func NormalizePhonePrefix(raw string) string {
	switch {
	case raw == "":
		return raw
	case strings.HasPrefix(raw, "+"):
		return raw
	case strings.HasPrefix(raw, "00"):
		return "+" + raw[2:]
	default:
		return "+" + raw
	}
}
