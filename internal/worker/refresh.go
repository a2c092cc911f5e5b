package worker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skyfuse/skyfuse/internal/api/middleware"
	"github.com/skyfuse/skyfuse/internal/snapshot"
	"github.com/skyfuse/skyfuse/internal/weather"
)

// RefreshJob keeps combined weather data warm: it fetches every configured
// location through the combined provider (populating its cache) and persists
// the resulting observation as a snapshot.
type RefreshJob struct {
	config    RefreshConfig
	logger    zerolog.Logger
	provider  weather.Provider
	snapshots snapshot.Repository
	metrics   *RefreshMetrics

	// providerMetrics is optional; nil disables otel instrumentation.
	providerMetrics *middleware.ProviderMetrics
}

// RefreshMetrics tracks refresh job statistics.
type RefreshMetrics struct {
	mu sync.RWMutex

	TotalRuns           int64
	SuccessfulLocations int64
	FailedLocations     int64
	SnapshotsSaved      int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// RefreshJobConfig holds configuration for creating a RefreshJob.
type RefreshJobConfig struct {
	Config          RefreshConfig
	Logger          zerolog.Logger
	Provider        weather.Provider
	Snapshots       snapshot.Repository
	ProviderMetrics *middleware.ProviderMetrics
}

// NewRefreshJob creates a new refresh job processor.
func NewRefreshJob(cfg RefreshJobConfig) *RefreshJob {
	config := cfg.Config
	if len(config.Locations) == 0 {
		config = DefaultRefreshConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}

	return &RefreshJob{
		config:          config,
		logger:          cfg.Logger,
		provider:        cfg.Provider,
		snapshots:       cfg.Snapshots,
		metrics:         &RefreshMetrics{},
		providerMetrics: cfg.ProviderMetrics,
	}
}

// RefreshResult contains the result of a refresh run.
type RefreshResult struct {
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	TotalLocations int
	Successful     int
	Failed         int
	Errors         []RefreshError
}

// RefreshError represents an error during refresh.
type RefreshError struct {
	Location  string
	Operation string
	Error     string
}

// Run executes the refresh job for all configured locations.
func (j *RefreshJob) Run(ctx context.Context) *RefreshResult {
	startTime := time.Now()
	result := &RefreshResult{
		StartTime:      startTime,
		TotalLocations: len(j.config.Locations),
	}

	j.logger.Info().
		Int("locations", result.TotalLocations).
		Int("concurrency", j.config.Concurrency).
		Msg("starting snapshot refresh job")

	locations := make(chan string, len(j.config.Locations))
	results := make(chan locationResult, len(j.config.Locations))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.refreshWorker(ctx, locations, results)
		}()
	}

	for _, loc := range j.config.Locations {
		locations <- loc
	}
	close(locations)

	go func() {
		wg.Wait()
		close(results)
	}()

	for lr := range results {
		if lr.success {
			result.Successful++
		} else {
			result.Failed++
		}
		result.Errors = append(result.Errors, lr.errors...)
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(startTime)

	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("snapshot refresh job completed")

	return result
}

type locationResult struct {
	location string
	success  bool
	errors   []RefreshError
}

func (j *RefreshJob) refreshWorker(ctx context.Context, locations <-chan string, results chan<- locationResult) {
	for location := range locations {
		select {
		case <-ctx.Done():
			return
		default:
			results <- j.refreshLocation(ctx, location)
		}
	}
}

func (j *RefreshJob) refreshLocation(ctx context.Context, location string) locationResult {
	result := locationResult{location: location, success: true}

	locCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	// Current weather is the snapshot source; a failure here fails the
	// whole location.
	start := time.Now()
	obs, err := j.provider.GetCurrentWeather(locCtx, location)
	j.recordProviderCall("current", time.Since(start), err)
	if err != nil {
		result.success = false
		result.errors = append(result.errors, RefreshError{
			Location: location, Operation: "current", Error: err.Error(),
		})
		return result
	}

	if j.snapshots != nil {
		snap := &snapshot.Snapshot{
			ID:        uuid.NewString(),
			Location:  location,
			Weather:   *obs,
			CreatedAt: time.Now(),
		}
		if err := j.snapshots.Save(locCtx, snap); err != nil {
			result.errors = append(result.errors, RefreshError{
				Location: location, Operation: "snapshot", Error: err.Error(),
			})
			result.success = false
		} else {
			j.metrics.mu.Lock()
			j.metrics.SnapshotsSaved++
			j.metrics.mu.Unlock()
		}
	}

	// Forecast and alert warming is best effort.
	if j.config.RefreshForecast {
		start = time.Now()
		_, err := j.provider.GetForecast(locCtx, location, j.config.ForecastDays)
		j.recordProviderCall("forecast", time.Since(start), err)
		if err != nil {
			result.errors = append(result.errors, RefreshError{
				Location: location, Operation: "forecast", Error: err.Error(),
			})
		}
	}

	if j.config.RefreshAlerts {
		start = time.Now()
		_, err := j.provider.GetAlerts(locCtx, location)
		j.recordProviderCall("alerts", time.Since(start), err)
		if err != nil {
			result.errors = append(result.errors, RefreshError{
				Location: location, Operation: "alerts", Error: err.Error(),
			})
		}
	}

	return result
}

func (j *RefreshJob) recordProviderCall(operation string, duration time.Duration, err error) {
	if j.providerMetrics == nil {
		return
	}
	j.providerMetrics.RecordRequest(j.provider.Name(), operation, duration, err)
}

func (j *RefreshJob) updateMetrics(result *RefreshResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulLocations += int64(result.Successful)
	j.metrics.FailedLocations += int64(result.Failed)
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *RefreshJob) GetMetrics() RefreshMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return RefreshMetrics{
		TotalRuns:           j.metrics.TotalRuns,
		SuccessfulLocations: j.metrics.SuccessfulLocations,
		FailedLocations:     j.metrics.FailedLocations,
		SnapshotsSaved:      j.metrics.SnapshotsSaved,
		LastRunAt:           j.metrics.LastRunAt,
		LastRunDuration:     j.metrics.LastRunDuration,
		TotalDuration:       j.metrics.TotalDuration,
	}
}
