package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfuse/skyfuse/internal/snapshot"
	"github.com/skyfuse/skyfuse/internal/weather"
)

// fakeProvider counts calls and optionally fails specific locations.
type fakeProvider struct {
	currentCalls  atomic.Int64
	forecastCalls atomic.Int64
	alertCalls    atomic.Int64
	failLocations map[string]bool
}

func (f *fakeProvider) GetCurrentWeather(_ context.Context, location string) (*weather.Weather, error) {
	f.currentCalls.Add(1)
	if f.failLocations[location] {
		return nil, errors.New("provider is down")
	}
	return &weather.Weather{
		Temperature: 20.0,
		Provider:    "Combo",
		Location:    weather.Location{Name: location},
		Timestamp:   time.Now().Unix(),
	}, nil
}

func (f *fakeProvider) GetForecast(_ context.Context, _ string, _ int) (*weather.Forecast, error) {
	f.forecastCalls.Add(1)
	return &weather.Forecast{Provider: "Combo"}, nil
}

func (f *fakeProvider) GetAlerts(_ context.Context, _ string) ([]weather.Alert, error) {
	f.alertCalls.Add(1)
	return []weather.Alert{}, nil
}

func (f *fakeProvider) GetHistorical(_ context.Context, _, _ string) (*weather.HistoricalData, error) {
	return nil, weather.ErrNotFound
}

func (f *fakeProvider) Name() string                           { return "Combo" }
func (f *fakeProvider) SupportsFeature(_ weather.Feature) bool { return true }

func TestRunRefreshesAllLocations(t *testing.T) {
	provider := &fakeProvider{}
	repo := snapshot.NewInMemoryRepository()

	job := NewRefreshJob(RefreshJobConfig{
		Config: RefreshConfig{
			Locations:       []string{"London", "Berlin"},
			ForecastDays:    5,
			Concurrency:     2,
			Timeout:         5 * time.Second,
			RefreshForecast: true,
			RefreshAlerts:   true,
		},
		Logger:    zerolog.Nop(),
		Provider:  provider,
		Snapshots: repo,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 2, result.TotalLocations)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, int64(2), provider.currentCalls.Load())
	assert.Equal(t, int64(2), provider.forecastCalls.Load())
	assert.Equal(t, int64(2), provider.alertCalls.Load())

	snap, err := repo.Latest(context.Background(), "London")
	require.NoError(t, err)
	assert.Equal(t, 20.0, snap.Weather.Temperature)
	assert.Equal(t, "London", snap.Location)

	metrics := job.GetMetrics()
	assert.Equal(t, int64(1), metrics.TotalRuns)
	assert.Equal(t, int64(2), metrics.SnapshotsSaved)
}

func TestRunCountsFailedLocations(t *testing.T) {
	provider := &fakeProvider{failLocations: map[string]bool{"Berlin": true}}
	repo := snapshot.NewInMemoryRepository()

	job := NewRefreshJob(RefreshJobConfig{
		Config: RefreshConfig{
			Locations:   []string{"London", "Berlin"},
			Concurrency: 1,
			Timeout:     5 * time.Second,
		},
		Logger:    zerolog.Nop(),
		Provider:  provider,
		Snapshots: repo,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "Berlin", result.Errors[0].Location)
	assert.Equal(t, "current", result.Errors[0].Operation)

	// No snapshot stored for the failed location.
	_, err := repo.Latest(context.Background(), "Berlin")
	assert.ErrorIs(t, err, snapshot.ErrSnapshotNotFound)
}

func TestRunSkipsWarmingWhenDisabled(t *testing.T) {
	provider := &fakeProvider{}

	job := NewRefreshJob(RefreshJobConfig{
		Config: RefreshConfig{
			Locations:       []string{"London"},
			Concurrency:     1,
			Timeout:         5 * time.Second,
			RefreshForecast: false,
			RefreshAlerts:   false,
		},
		Logger:   zerolog.Nop(),
		Provider: provider,
	})

	result := job.Run(context.Background())

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, int64(0), provider.forecastCalls.Load())
	assert.Equal(t, int64(0), provider.alertCalls.Load())
}

func TestRefreshConfigDefaults(t *testing.T) {
	job := NewRefreshJob(RefreshJobConfig{
		Logger:   zerolog.Nop(),
		Provider: &fakeProvider{},
	})

	assert.Equal(t, DefaultRefreshLocations(), job.config.Locations)
	assert.Equal(t, 3, job.config.Concurrency)
	assert.Equal(t, 30*time.Second, job.config.Timeout)
}
