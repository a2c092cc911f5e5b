// Package main provides the entrypoint for the SkyFuse API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyfuse/skyfuse/internal/api"
	"github.com/skyfuse/skyfuse/internal/api/middleware"
	"github.com/skyfuse/skyfuse/internal/api/models"
	"github.com/skyfuse/skyfuse/internal/database"
	"github.com/skyfuse/skyfuse/internal/provider/resilience"
	"github.com/skyfuse/skyfuse/internal/snapshot"
	"github.com/skyfuse/skyfuse/internal/telemetry"
	"github.com/skyfuse/skyfuse/internal/weather"
	"github.com/skyfuse/skyfuse/internal/weather/accuweather"
	"github.com/skyfuse/skyfuse/internal/weather/homebrew"
	"github.com/skyfuse/skyfuse/internal/weather/openweather"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "skyfuse-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SkyFuse API")

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version)

	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryCfg.Enabled {
		log.Info().
			Str("otlp_endpoint", telemetryCfg.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Build the combined weather provider from configured upstreams
	combo := weather.NewCombo().SetLogger(log)

	if ttl := os.Getenv("COMBO_CACHE_TTL"); ttl != "" {
		if d, parseErr := time.ParseDuration(ttl); parseErr == nil {
			combo.SetCacheDuration(d)
		} else {
			log.Warn().Str("value", ttl).Msg("invalid COMBO_CACHE_TTL, using default")
		}
	}
	combo.SetFallbackEnabled(os.Getenv("COMBO_FALLBACK") != "false")

	// Track resilient clients so /ops/status can report circuit state
	circuits := map[string]*resilience.Client{}

	if key := os.Getenv("ACCUWEATHER_API_KEY"); key != "" {
		client := resilience.NewClient(resilience.DefaultClientConfig("accuweather"))
		circuits[accuweather.ProviderName] = client
		combo.AddProvider(accuweather.NewClient(accuweather.ClientConfig{
			APIKey:     key,
			HTTPClient: client,
			Logger:     log,
		}), envWeight("ACCUWEATHER_WEIGHT", log))
		log.Info().Msg("AccuWeather provider enabled")
	}

	if key := os.Getenv("OPENWEATHER_API_KEY"); key != "" {
		client := resilience.NewClient(resilience.DefaultClientConfig("openweather"))
		circuits[openweather.ProviderName] = client
		combo.AddProvider(openweather.NewClient(openweather.ClientConfig{
			APIKey:     key,
			HTTPClient: client,
			Logger:     log,
		}), envWeight("OPENWEATHER_WEIGHT", log))
		log.Info().Msg("OpenWeather provider enabled")
	}

	// Homebrew sensor network is backed by the shared database
	reportRepo := homebrew.NewPostgresRepository(pool)
	combo.AddProvider(homebrew.NewProvider(reportRepo, log), envWeight("HOMEBREW_WEIGHT", log))
	log.Info().Msg("homebrew provider enabled")

	snapshotRepo := snapshot.NewPostgresRepository(pool)

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Provider:    combo,
		Snapshots:   snapshotRepo,
		Reports:     reportRepo,
		APIKeys:     apiKeysFromEnv(log),
		ProviderStatus: func() []models.ProviderStatus {
			statuses := make([]models.ProviderStatus, 0, len(circuits))
			for name, client := range circuits {
				statuses = append(statuses, models.ProviderStatus{
					Provider:     name,
					CircuitState: client.State().String(),
				})
			}
			return statuses
		},
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}

// envWeight reads a provider weight from the environment, defaulting to 1.0.
func envWeight(key string, log zerolog.Logger) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return 1.0
	}
	weight, err := strconv.ParseFloat(raw, 64)
	if err != nil || weight <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Msg("invalid provider weight, using 1.0")
		return 1.0
	}
	return weight
}

// apiKeysFromEnv parses API_KEYS as comma-separated name:secret pairs.
// An empty value leaves the API open (local development).
func apiKeysFromEnv(log zerolog.Logger) map[string]string {
	raw := os.Getenv("API_KEYS")
	if raw == "" {
		log.Warn().Msg("API_KEYS not set - weather and report routes are public")
		return nil
	}

	keys := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		name, secret, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || name == "" || secret == "" {
			log.Warn().Str("pair", pair).Msg("skipping malformed API_KEYS entry")
			continue
		}
		keys[name] = secret
	}
	return keys
}
