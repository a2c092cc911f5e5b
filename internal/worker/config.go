// Package worker provides background job processing for SkyFuse.
package worker

import (
	"os"
	"strings"
	"time"
)

// RefreshConfig holds configuration for the snapshot refresh job.
type RefreshConfig struct {
	// Locations are the location query strings to refresh.
	// If empty, uses DefaultRefreshLocations.
	Locations []string

	// ForecastDays is how many days of forecast to warm per location.
	// Default: 5
	ForecastDays int

	// Concurrency is the number of concurrent refresh operations.
	// Default: 3
	Concurrency int

	// Timeout is the timeout for each location refresh.
	// Default: 30 seconds
	Timeout time.Duration

	// RefreshForecast enables forecast cache warming.
	// Default: true
	RefreshForecast bool

	// RefreshAlerts enables alert cache warming.
	// Default: true
	RefreshAlerts bool
}

// DefaultRefreshConfig returns the default refresh configuration.
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Locations:       DefaultRefreshLocations(),
		ForecastDays:    5,
		Concurrency:     3,
		Timeout:         30 * time.Second,
		RefreshForecast: true,
		RefreshAlerts:   true,
	}
}

// DefaultRefreshLocations returns the default set of locations to keep warm.
func DefaultRefreshLocations() []string {
	return []string{
		"London",
		"Berlin",
		"Amsterdam",
		"Paris",
		"New York",
	}
}

// RefreshConfigFromEnv builds a RefreshConfig from environment variables,
// falling back to defaults. REFRESH_LOCATIONS is a comma-separated list.
func RefreshConfigFromEnv() RefreshConfig {
	cfg := DefaultRefreshConfig()

	if raw := os.Getenv("REFRESH_LOCATIONS"); raw != "" {
		var locations []string
		for _, loc := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(loc); trimmed != "" {
				locations = append(locations, trimmed)
			}
		}
		if len(locations) > 0 {
			cfg.Locations = locations
		}
	}

	if raw := os.Getenv("REFRESH_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.Timeout = d
		}
	}

	return cfg
}
