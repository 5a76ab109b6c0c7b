package job

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	orgstore "profil/internal/organization/store/organization"
	personstore "profil/internal/profile/store/person"
	"profil/internal/sync/checkpoint"
	"profil/internal/sync/engine"
	"profil/internal/sync/models"
)

func newTestEngine(t *testing.T, checkpoints *checkpoint.InMemory) *engine.Engine {
	t.Helper()
	eng, err := engine.New(nil, orgstore.NewInMemory(), personstore.NewInMemory(), checkpoints,
		engine.WithTxRunner(func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		}),
	)
	require.NoError(t, err)
	return eng
}

func TestAddressSourceStartURL(t *testing.T) {
	src := NewAddressSource(nil, nil, "https://registry.example/feed", 250)

	t.Run("cold start omits since", func(t *testing.T) {
		u, err := src.StartURL(nil)
		require.NoError(t, err)
		require.NotContains(t, u, "since=")
		require.Contains(t, u, "pageSize=250")
	})

	t.Run("warm start carries checkpoint timestamp", func(t *testing.T) {
		at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
		u, err := src.StartURL(&models.Checkpoint{LastChangedAt: at})
		require.NoError(t, err)
		require.Contains(t, u, "since=")
		require.Contains(t, u, "2026-03-14")
	})
}

func TestPersonSourceStartURL(t *testing.T) {
	src := NewPersonSource(nil, nil, "https://register.example/changes", 100)

	t.Run("cold start omits sequence", func(t *testing.T) {
		u, err := src.StartURL(nil)
		require.NoError(t, err)
		require.NotContains(t, u, "fromChangeId=")
	})

	t.Run("warm start resumes from sequence", func(t *testing.T) {
		u, err := src.StartURL(&models.Checkpoint{LastChangedID: "1200"})
		require.NoError(t, err)
		require.Contains(t, u, "fromChangeId=1200")
	})

	t.Run("corrupt checkpoint sequence fails", func(t *testing.T) {
		_, err := src.StartURL(&models.Checkpoint{LastChangedID: "not-a-number"})
		require.Error(t, err)
	})
}

func TestPersonSourceApplyAdvancesToMaxSequence(t *testing.T) {
	checkpoints := checkpoint.NewInMemory()
	eng := newTestEngine(t, checkpoints)
	src := NewPersonSource(nil, eng, "https://register.example/changes", 100)

	email := "kari@example.no"
	page := &models.ChangeFeedPage{
		Updated: time.Now(),
		Entries: []models.RawEntry{
			{ID: "1201", Content: models.EntryContent{Person: &models.PersonContactInfo{
				NationalIdentityNumber: "01018012345",
				EmailAddress:           &email,
			}}},
			{ID: "1199", Content: models.EntryContent{Person: &models.PersonContactInfo{
				NationalIdentityNumber: "02028012345",
			}}},
		},
	}

	counts, err := src.Apply(context.Background(), page)
	require.NoError(t, err)
	require.Equal(t, 2, counts.Total())

	cp, err := checkpoints.GetLatest(context.Background(), models.SourcePersonContacts)
	require.NoError(t, err)
	require.Equal(t, "1201", cp.LastChangedID)
}

func TestPersonSourceApplyRejectsNonNumericID(t *testing.T) {
	eng := newTestEngine(t, checkpoint.NewInMemory())
	src := NewPersonSource(nil, eng, "https://register.example/changes", 100)

	page := &models.ChangeFeedPage{
		Updated: time.Now(),
		Entries: []models.RawEntry{
			{ID: "urn:opaque", Content: models.EntryContent{Person: &models.PersonContactInfo{
				NationalIdentityNumber: "01018012345",
			}}},
		},
	}

	_, err := src.Apply(context.Background(), page)
	require.Error(t, err)
}
