package homebrew

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfuse/skyfuse/internal/weather"
)

func fp(v float64) *float64 { return &v }

func newTestProvider(t *testing.T, reports ...Report) *Provider {
	t.Helper()
	repo := NewInMemoryRepository()
	for i := range reports {
		if reports[i].ID == "" {
			reports[i].ID = uuid.NewString()
		}
		require.NoError(t, repo.Insert(context.Background(), &reports[i]))
	}
	return NewProvider(repo, zerolog.Nop())
}

func TestGetCurrentWeatherAveragesRecentReports(t *testing.T) {
	now := time.Now().Unix()
	p := newTestProvider(t,
		Report{DeviceType: "outdoor", Temperature: fp(20), Humidity: fp(60), Timestamp: now - 60},
		Report{DeviceType: "indoor", Temperature: fp(24), Humidity: fp(40), CO2: fp(800), Timestamp: now - 120},
	)

	obs, err := p.GetCurrentWeather(context.Background(), "default")
	require.NoError(t, err)

	assert.Equal(t, 22.0, obs.Temperature)
	require.NotNil(t, obs.Humidity)
	assert.Equal(t, 50.0, *obs.Humidity)
	assert.Equal(t, ProviderName, obs.Provider)
	assert.Contains(t, obs.Description, "2 sensors reporting")
	assert.Contains(t, obs.Description, "CO2: 800 ppm")
}

func TestGetCurrentWeatherIgnoresStaleReports(t *testing.T) {
	now := time.Now().Unix()
	p := newTestProvider(t,
		Report{DeviceType: "outdoor", Temperature: fp(20), Timestamp: now - 300},
		// Two hours old, outside the recency window.
		Report{DeviceType: "outdoor", Temperature: fp(-40), Timestamp: now - 7200},
	)

	obs, err := p.GetCurrentWeather(context.Background(), "default")
	require.NoError(t, err)
	assert.Equal(t, 20.0, obs.Temperature)
}

func TestGetCurrentWeatherNoData(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.GetCurrentWeather(context.Background(), "default")
	assert.ErrorIs(t, err, weather.ErrNotFound)
}

func TestGetCurrentWeatherUnknownLocationUsesDefault(t *testing.T) {
	now := time.Now().Unix()
	p := newTestProvider(t,
		Report{DeviceType: "outdoor", Temperature: fp(15), Timestamp: now - 30},
	)

	obs, err := p.GetCurrentWeather(context.Background(), "somewhere-else")
	require.NoError(t, err)
	assert.Equal(t, "Default Location", obs.Location.Name)
}

func TestGetAlertsThresholds(t *testing.T) {
	now := time.Now().Unix()

	tests := []struct {
		name     string
		report   Report
		title    string
		severity weather.AlertSeverity
	}{
		{
			name:     "moderate pm25",
			report:   Report{DeviceType: "outdoor", PM25: fp(40), Timestamp: now},
			title:    "Poor Air Quality (PM2.5)",
			severity: weather.SeverityModerate,
		},
		{
			name:     "severe pm25",
			report:   Report{DeviceType: "outdoor", PM25: fp(60), Timestamp: now},
			title:    "Poor Air Quality (PM2.5)",
			severity: weather.SeveritySevere,
		},
		{
			name:     "moderate co2",
			report:   Report{DeviceType: "indoor", CO2: fp(1200), Timestamp: now},
			title:    "High CO2 Levels",
			severity: weather.SeverityModerate,
		},
		{
			name:     "severe co2",
			report:   Report{DeviceType: "indoor", CO2: fp(2500), Timestamp: now},
			title:    "High CO2 Levels",
			severity: weather.SeveritySevere,
		},
		{
			name:     "severe tvoc",
			report:   Report{DeviceType: "indoor", TVOC: fp(1500), Timestamp: now},
			title:    "High TVOC Levels",
			severity: weather.SeveritySevere,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, tt.report)

			alerts, err := p.GetAlerts(context.Background(), "default")
			require.NoError(t, err)
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.title, alerts[0].Title)
			assert.Equal(t, tt.severity, alerts[0].Severity)
		})
	}
}

func TestGetAlertsBelowThresholdsIsEmpty(t *testing.T) {
	now := time.Now().Unix()
	p := newTestProvider(t,
		Report{DeviceType: "outdoor", PM25: fp(10), Timestamp: now},
		Report{DeviceType: "indoor", CO2: fp(600), TVOC: fp(100), Timestamp: now},
	)

	alerts, err := p.GetAlerts(context.Background(), "default")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestGetAlertsNoDataIsEmptyNotError(t *testing.T) {
	p := newTestProvider(t)

	alerts, err := p.GetAlerts(context.Background(), "default")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestGetHistoricalAggregatesDay(t *testing.T) {
	day, err := time.Parse("2006-01-02", "2026-08-20")
	require.NoError(t, err)
	base := day.Unix()

	p := newTestProvider(t,
		Report{DeviceType: "outdoor", Temperature: fp(12), Humidity: fp(80), Precipitation: fp(1.5), Timestamp: base + 3600},
		Report{DeviceType: "outdoor", Temperature: fp(22), Humidity: fp(60), Precipitation: fp(0.5), Timestamp: base + 43200},
		// Next day, must not contribute.
		Report{DeviceType: "outdoor", Temperature: fp(99), Timestamp: base + 90000},
	)

	hist, err := p.GetHistorical(context.Background(), "default", "2026-08-20")
	require.NoError(t, err)

	assert.Equal(t, 12.0, hist.TemperatureMin)
	assert.Equal(t, 22.0, hist.TemperatureMax)
	assert.Equal(t, 17.0, hist.TemperatureAvg)
	require.NotNil(t, hist.HumidityAvg)
	assert.Equal(t, 70.0, *hist.HumidityAvg)
	require.NotNil(t, hist.PrecipTotal)
	assert.Equal(t, 2.0, *hist.PrecipTotal)
}

func TestGetHistoricalNoData(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.GetHistorical(context.Background(), "default", "2026-08-20")
	assert.ErrorIs(t, err, weather.ErrNotFound)
}

func TestGetHistoricalBadDate(t *testing.T) {
	p := newTestProvider(t)

	_, err := p.GetHistorical(context.Background(), "default", "not-a-date")
	assert.ErrorIs(t, err, weather.ErrParse)
}

func TestSupportsFeature(t *testing.T) {
	p := newTestProvider(t)

	assert.True(t, p.SupportsFeature(weather.FeatureCurrentWeather))
	assert.True(t, p.SupportsFeature(weather.FeatureAlerts))
	assert.True(t, p.SupportsFeature(weather.FeatureHistoricalData))
	assert.True(t, p.SupportsFeature(weather.FeatureAirQuality))
	assert.False(t, p.SupportsFeature(weather.FeatureForecast))
	assert.False(t, p.SupportsFeature(weather.FeatureHourlyForecast))
}
