package checkpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profil/internal/sync/models"
	"profil/pkg/platform/sentinel"
)

func TestInMemory_GetLatestUnknownSource(t *testing.T) {
	store := NewInMemory()

	_, err := store.GetLatest(context.Background(), models.SourceOrgAddresses)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemory_AdvanceUpserts(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	first := models.Position{ChangeID: "100", ChangedAt: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	require.NoError(t, store.Advance(ctx, models.SourcePersonContacts, first))

	cp, err := store.GetLatest(ctx, models.SourcePersonContacts)
	require.NoError(t, err)
	assert.Equal(t, "100", cp.LastChangedID)

	seq, err := cp.Position().Sequence()
	require.NoError(t, err)
	assert.EqualValues(t, 100, seq)

	second := models.Position{ChangeID: "250", ChangedAt: first.ChangedAt.Add(time.Hour)}
	require.NoError(t, store.Advance(ctx, models.SourcePersonContacts, second))

	cp, err = store.GetLatest(ctx, models.SourcePersonContacts)
	require.NoError(t, err)
	assert.Equal(t, "250", cp.LastChangedID)
	assert.True(t, cp.LastChangedAt.After(first.ChangedAt))
}

func TestInMemory_SourcesAreIndependent(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	pos := models.Position{ChangedAt: time.Now()}
	require.NoError(t, store.Advance(ctx, models.SourceOrgAddresses, pos))

	_, err := store.GetLatest(ctx, models.SourcePersonContacts)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
