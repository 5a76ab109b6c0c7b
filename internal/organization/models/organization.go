package models

import (
	"time"

	"github.com/google/uuid"
)

// AddressType distinguishes notification channels.
type AddressType string

const (
	AddressTypeEmail AddressType = "email"
	AddressTypeSms   AddressType = "sms"
)

// IsValid reports whether the address type is a known channel.
func (t AddressType) IsValid() bool {
	return t == AddressTypeEmail || t == AddressTypeSms
}

// UpdateSource records where the last write to an address came from.
type UpdateSource string

const (
	// UpdateSourceSystem marks locally-originated edits (API, admin).
	UpdateSourceSystem UpdateSource = "system"
	// UpdateSourceRegistry marks rows written by the registry sync job.
	UpdateSourceRegistry UpdateSource = "registry"
)

// Organization is the parent aggregate owning notification addresses.
// OrganizationNumber is the 9-digit business key used by the registry feed.
type Organization struct {
	ID                 uuid.UUID
	OrganizationNumber string
	CreatedAt          time.Time
	UpdatedAt          time.Time

	// Addresses holds the organization's live (not soft-deleted) notification
	// addresses when loaded through FindByNumber.
	Addresses []*NotificationAddress
}

// NotificationAddress is one email or SMS notification endpoint owned by an
// organization. RegistryID is the external registry key, unique among the live
// addresses of one organization.
type NotificationAddress struct {
	ID                  uuid.UUID
	OrganizationID      uuid.UUID
	RegistryID          string
	AddressType         AddressType
	Domain              string
	Address             string
	FullAddress         string
	NotificationName    string
	RegistryUpdatedAt   time.Time
	UpdateSource        UpdateSource
	HasRegistryAccepted bool
	SoftDeleted         bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// ContentEquals reports whether two addresses carry the same registry-visible
// content. RegistryUpdatedAt and bookkeeping fields are deliberately excluded;
// a feed entry that only bumps the timestamp is a no-op.
func (a *NotificationAddress) ContentEquals(other *NotificationAddress) bool {
	return a.AddressType == other.AddressType &&
		a.Domain == other.Domain &&
		a.Address == other.Address &&
		a.FullAddress == other.FullAddress &&
		a.NotificationName == other.NotificationName
}
