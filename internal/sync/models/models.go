// Package models holds the change-feed wire types and checkpoint state shared
// by the sync components.
package models

import (
	"fmt"
	"strconv"
	"time"

	orgmodels "profil/internal/organization/models"
)

// SourceType discriminates checkpoint rows per external data source.
type SourceType string

const (
	SourcePersonContacts SourceType = "person-contacts"
	SourceOrgAddresses   SourceType = "org-addresses"
)

// Position is one point in a source's change history. Timestamp feeds fill
// ChangedAt; sequence feeds carry the numeric position in ChangeID.
type Position struct {
	ChangeID  string
	ChangedAt time.Time
}

// Sequence parses the numeric change position of sequence-based feeds.
func (p Position) Sequence() (int64, error) {
	n, err := strconv.ParseInt(p.ChangeID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse change sequence %q: %w", p.ChangeID, err)
	}
	return n, nil
}

// Checkpoint is the last fully applied position for one source. One row per
// source; created on first successful sync, mutated in place, never deleted.
type Checkpoint struct {
	Source        SourceType
	LastChangedID string
	LastChangedAt time.Time
	UpdatedAt     time.Time
}

// Position returns the checkpoint as a feed position.
func (c *Checkpoint) Position() Position {
	return Position{ChangeID: c.LastChangedID, ChangedAt: c.LastChangedAt}
}

// ChangeFeedPage is one page of the registry change feed. Not persisted;
// consumed once by the sync job.
type ChangeFeedPage struct {
	Entries  []RawEntry `json:"entries"`
	NextPage string     `json:"nextPage"`
	Updated  time.Time  `json:"updated"`
}

// MaxUpdated returns the latest entry timestamp on the page, falling back to
// the page-level timestamp when entries carry none.
func (p *ChangeFeedPage) MaxUpdated() time.Time {
	max := p.Updated
	for _, e := range p.Entries {
		if e.Updated.After(max) {
			max = e.Updated
		}
	}
	return max
}

// RawEntry is one change entry as delivered by the feed. ID is the opaque
// external registry key, unique within the source.
type RawEntry struct {
	ID      string       `json:"id"`
	Updated time.Time    `json:"updated"`
	Title   string       `json:"title"`
	Content EntryContent `json:"content"`
}

// EntryContent is the loosely-typed nested payload of a feed entry. Exactly
// one contact-point shape is expected; the mapper decides which. An entry with
// unit metadata but no contact point is a deletion marker.
type EntryContent struct {
	Unit   *UnitIdentifier    `json:"unit,omitempty"`
	Email  *EmailContactPoint `json:"email,omitempty"`
	Phone  *PhoneContactPoint `json:"phone,omitempty"`
	Person *PersonContactInfo `json:"person,omitempty"`
}

// UnitIdentifier ties an entry to its owning organization.
type UnitIdentifier struct {
	OrganizationNumber string `json:"organizationNumber"`
}

// EmailContactPoint is the email shape of the feed payload.
type EmailContactPoint struct {
	Username string `json:"username"`
	Domain   string `json:"domain"`
}

// PhoneContactPoint is the SMS shape of the feed payload. Prefix is the raw
// international prefix as the registry stores it, in any of its historical
// spellings ("47", "0047", "+47").
type PhoneContactPoint struct {
	Prefix         string `json:"prefix"`
	NationalNumber string `json:"nationalNumber"`
}

// PersonContactInfo is the person-register shape of the feed payload.
type PersonContactInfo struct {
	NationalIdentityNumber string     `json:"nationalIdentityNumber"`
	Reserved               *bool      `json:"reserved,omitempty"`
	MobilePhoneNumber      *string    `json:"mobilePhoneNumber,omitempty"`
	MobileVerifiedAt       *time.Time `json:"mobilePhoneNumberVerified,omitempty"`
	EmailAddress           *string    `json:"emailAddress,omitempty"`
	EmailVerifiedAt        *time.Time `json:"emailAddressVerified,omitempty"`
	LanguageCode           *string    `json:"languageCode,omitempty"`
}

// AddressChange is a mapped organization-address entry ready for
// reconciliation. Tombstone marks a deletion signaled by the feed.
type AddressChange struct {
	OrganizationNumber string
	RegistryID         string
	Tombstone          bool

	AddressType       orgmodels.AddressType
	Domain            string
	Address           string
	FullAddress       string
	NotificationName  string
	RegistryUpdatedAt time.Time
}
