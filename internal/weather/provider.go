package weather

import (
	"context"
	"fmt"
)

// Feature identifies an optional provider capability. Orchestration code
// must check SupportsFeature before invoking a feature-specific method where
// partial support is expected (alerts, historical data, hourly forecasts).
type Feature int

// Provider capabilities.
const (
	FeatureCurrentWeather Feature = iota
	FeatureForecast
	FeatureAlerts
	FeatureHistoricalData
	FeatureHourlyForecast
	FeatureUVIndex
	FeatureAirQuality
)

// Provider is the polymorphic contract every weather backend satisfies.
// Implementations normalize their upstream wire format into the canonical
// shapes defined in this package.
type Provider interface {
	// GetCurrentWeather fetches the current observation for a location.
	// The location is a free-text city name, zip code, or provider key.
	GetCurrentWeather(ctx context.Context, location string) (*Weather, error)

	// GetForecast fetches up to days calendar days of forecast.
	GetForecast(ctx context.Context, location string, days int) (*Forecast, error)

	// GetAlerts fetches active weather alerts for a location.
	GetAlerts(ctx context.Context, location string) ([]Alert, error)

	// GetHistorical fetches a summary of one past day. Providers that do
	// not support historical data return ErrNotFound.
	GetHistorical(ctx context.Context, location, date string) (*HistoricalData, error)

	// Name returns a stable, human-readable source identifier used as a
	// weight-map key and log tag.
	Name() string

	// SupportsFeature reports whether the provider implements a capability.
	SupportsFeature(feature Feature) bool
}

// ErrHistoricalUnsupported builds the canonical error for providers without
// historical data support.
func ErrHistoricalUnsupported(provider string) error {
	return fmt.Errorf("%w: historical data not supported by %s", ErrNotFound, provider)
}
