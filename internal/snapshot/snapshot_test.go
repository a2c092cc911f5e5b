package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfuse/skyfuse/internal/weather"
)

func newSnapshot(location string, temp float64, at time.Time) *Snapshot {
	return &Snapshot{
		ID:       uuid.NewString(),
		Location: location,
		Weather: weather.Weather{
			Temperature: temp,
			Provider:    "Combo",
			Timestamp:   at.Unix(),
		},
		CreatedAt: at,
	}
}

func TestLatestReturnsNewest(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Save(ctx, newSnapshot("London", 18.0, now.Add(-2*time.Hour))))
	require.NoError(t, repo.Save(ctx, newSnapshot("London", 21.0, now)))
	require.NoError(t, repo.Save(ctx, newSnapshot("Berlin", 25.0, now)))

	snap, err := repo.Latest(ctx, "London")
	require.NoError(t, err)
	assert.Equal(t, 21.0, snap.Weather.Temperature)
}

func TestLatestNotFound(t *testing.T) {
	repo := NewInMemoryRepository()

	_, err := repo.Latest(context.Background(), "Nowhere")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestListSinceFiltersAndSorts(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Save(ctx, newSnapshot("London", 15.0, now.Add(-3*time.Hour))))
	require.NoError(t, repo.Save(ctx, newSnapshot("London", 17.0, now.Add(-time.Hour))))
	require.NoError(t, repo.Save(ctx, newSnapshot("London", 19.0, now)))

	snaps, err := repo.ListSince(ctx, "London", now.Add(-90*time.Minute))
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, 19.0, snaps[0].Weather.Temperature)
	assert.Equal(t, 17.0, snaps[1].Weather.Temperature)
}
