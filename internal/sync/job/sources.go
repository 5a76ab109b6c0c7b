package job

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	profilemodels "profil/internal/profile/models"
	"profil/internal/sync/engine"
	"profil/internal/sync/feed"
	"profil/internal/sync/mapper"
	"profil/internal/sync/models"
)

// AddressSource syncs organization notification addresses from the registry's
// timestamp-ordered feed.
type AddressSource struct {
	feed     *feed.Client
	engine   *engine.Engine
	endpoint string
	pageSize int
}

// NewAddressSource builds the notification-address feed source.
func NewAddressSource(fc *feed.Client, eng *engine.Engine, endpoint string, pageSize int) *AddressSource {
	return &AddressSource{feed: fc, engine: eng, endpoint: endpoint, pageSize: pageSize}
}

func (s *AddressSource) SourceType() models.SourceType { return models.SourceOrgAddresses }

func (s *AddressSource) StartURL(cp *models.Checkpoint) (string, error) {
	if s.endpoint == "" {
		return "", errors.New("address feed endpoint is not configured")
	}
	var since time.Time
	if cp != nil {
		since = cp.LastChangedAt
	}
	return feed.SinceURL(s.endpoint, s.pageSize, since)
}

func (s *AddressSource) Fetch(ctx context.Context, pageURL string) (*models.ChangeFeedPage, error) {
	return s.feed.FetchPage(ctx, pageURL)
}

func (s *AddressSource) Apply(ctx context.Context, page *models.ChangeFeedPage) (engine.Changes, error) {
	changes, err := mapper.MapAddressPage(page.Entries)
	if err != nil {
		return engine.Changes{}, err
	}
	pos := models.Position{ChangedAt: page.MaxUpdated()}
	return s.engine.ApplyAddressPage(ctx, changes, pos)
}

// PersonSource syncs person contact details from the register's numeric
// sequence feed.
type PersonSource struct {
	feed     *feed.Client
	engine   *engine.Engine
	endpoint string
	pageSize int
}

// NewPersonSource builds the person contact-detail feed source.
func NewPersonSource(fc *feed.Client, eng *engine.Engine, endpoint string, pageSize int) *PersonSource {
	return &PersonSource{feed: fc, engine: eng, endpoint: endpoint, pageSize: pageSize}
}

func (s *PersonSource) SourceType() models.SourceType { return models.SourcePersonContacts }

func (s *PersonSource) StartURL(cp *models.Checkpoint) (string, error) {
	if s.endpoint == "" {
		return "", errors.New("person feed endpoint is not configured")
	}
	from := int64(-1)
	if cp != nil {
		n, err := cp.Position().Sequence()
		if err != nil {
			return "", err
		}
		from = n
	}
	return feed.SequenceURL(s.endpoint, s.pageSize, from)
}

func (s *PersonSource) Fetch(ctx context.Context, pageURL string) (*models.ChangeFeedPage, error) {
	return s.feed.FetchPage(ctx, pageURL)
}

func (s *PersonSource) Apply(ctx context.Context, page *models.ChangeFeedPage) (engine.Changes, error) {
	recs := make([]*profilemodels.PersonContactRecord, 0, len(page.Entries))
	maxSeq := int64(-1)
	for _, entry := range page.Entries {
		rec, err := mapper.MapPerson(entry)
		if err != nil {
			return engine.Changes{}, err
		}
		recs = append(recs, rec)

		seq, err := strconv.ParseInt(entry.ID, 10, 64)
		if err != nil {
			return engine.Changes{}, fmt.Errorf("entry %q has no numeric sequence: %w", entry.ID, mapper.ErrMalformedEntry)
		}
		if seq > maxSeq {
			maxSeq = seq
		}
	}

	pos := models.Position{
		ChangeID:  strconv.FormatInt(maxSeq, 10),
		ChangedAt: page.MaxUpdated(),
	}
	return s.engine.ApplyPersonPage(ctx, recs, pos)
}
