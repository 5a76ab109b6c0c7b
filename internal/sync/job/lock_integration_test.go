//go:build integration

package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"profil/internal/sync/job"
	"profil/pkg/testutil/containers"
)

func TestRedisLocker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	ctx := context.Background()
	redis := containers.GetManager().GetRedis(t)

	locker := job.NewRedisLocker(redis.Client, time.Minute)

	release, ok, err := locker.Acquire(ctx, "org-addresses")
	require.NoError(t, err)
	require.True(t, ok)

	// A second acquire while held is refused, not an error.
	_, ok, err = locker.Acquire(ctx, "org-addresses")
	require.NoError(t, err)
	require.False(t, ok)

	// Another source is independent.
	otherRelease, ok, err := locker.Acquire(ctx, "person-contacts")
	require.NoError(t, err)
	require.True(t, ok)
	otherRelease()

	release()
	release2, ok, err := locker.Acquire(ctx, "org-addresses")
	require.NoError(t, err)
	require.True(t, ok, "released lock can be reacquired")
	release2()
}
