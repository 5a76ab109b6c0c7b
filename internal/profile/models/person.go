package models

import "time"

// PersonContactRecord mirrors the national contact register's view of one
// person. All fields besides the identity number are optional; the register
// omits what the person has not supplied.
type PersonContactRecord struct {
	NationalIdentityNumber string
	// Reserved marks persons who opted out of digital notification.
	Reserved          *bool
	MobilePhoneNumber *string
	MobileVerifiedAt  *time.Time
	EmailAddress      *string
	EmailVerifiedAt   *time.Time
	LanguageCode      *string
	UpdatedAt         time.Time
}

// ContentEquals reports whether two records carry the same register content.
// UpdatedAt is excluded so a feed entry that only bumps the timestamp counts
// as a no-op during reconciliation.
func (r *PersonContactRecord) ContentEquals(other *PersonContactRecord) bool {
	return r.NationalIdentityNumber == other.NationalIdentityNumber &&
		eqBool(r.Reserved, other.Reserved) &&
		eqString(r.MobilePhoneNumber, other.MobilePhoneNumber) &&
		eqTime(r.MobileVerifiedAt, other.MobileVerifiedAt) &&
		eqString(r.EmailAddress, other.EmailAddress) &&
		eqTime(r.EmailVerifiedAt, other.EmailVerifiedAt) &&
		eqString(r.LanguageCode, other.LanguageCode)
}

func eqBool(a, b *bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
