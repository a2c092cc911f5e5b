// Package main provides the entrypoint for the SkyFuse snapshot worker.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyfuse/skyfuse/internal/api/middleware"
	"github.com/skyfuse/skyfuse/internal/database"
	"github.com/skyfuse/skyfuse/internal/provider/resilience"
	"github.com/skyfuse/skyfuse/internal/snapshot"
	"github.com/skyfuse/skyfuse/internal/telemetry"
	"github.com/skyfuse/skyfuse/internal/weather"
	"github.com/skyfuse/skyfuse/internal/weather/accuweather"
	"github.com/skyfuse/skyfuse/internal/weather/homebrew"
	"github.com/skyfuse/skyfuse/internal/weather/openweather"
	"github.com/skyfuse/skyfuse/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "skyfuse-worker"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting SkyFuse worker")

	// Worker also exposes a health endpoint for Cloud Run
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry
	telemetryCfg := telemetry.ConfigFromEnv(serviceName, Version)
	tp, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Build the combined weather provider from configured upstreams
	combo := weather.NewCombo().SetLogger(log)

	if key := os.Getenv("ACCUWEATHER_API_KEY"); key != "" {
		combo.AddProvider(accuweather.NewClient(accuweather.ClientConfig{
			APIKey:     key,
			HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("accuweather")),
			Logger:     log,
		}), 1.0)
		log.Info().Msg("AccuWeather provider enabled")
	}

	if key := os.Getenv("OPENWEATHER_API_KEY"); key != "" {
		combo.AddProvider(openweather.NewClient(openweather.ClientConfig{
			APIKey:     key,
			HTTPClient: resilience.NewClient(resilience.DefaultClientConfig("openweather")),
			Logger:     log,
		}), 1.0)
		log.Info().Msg("OpenWeather provider enabled")
	}

	combo.AddProvider(homebrew.NewProvider(homebrew.NewPostgresRepository(pool), log), 1.0)
	log.Info().Msg("homebrew provider enabled")

	providerMetrics, err := middleware.NewProviderMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize provider metrics")
		providerMetrics = nil
	}

	refreshJob := worker.NewRefreshJob(worker.RefreshJobConfig{
		Config:          worker.RefreshConfigFromEnv(),
		Logger:          log,
		Provider:        combo,
		Snapshots:       snapshot.NewPostgresRepository(pool),
		ProviderMetrics: providerMetrics,
	})

	// Prefer Pub/Sub triggered refreshes; fall back to a local ticker
	// when no subscription is configured.
	projectID := os.Getenv("PUBSUB_PROJECT_ID")
	subscriptionName := os.Getenv("PUBSUB_SUBSCRIPTION")

	if projectID != "" && subscriptionName != "" {
		handler, handlerErr := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        projectID,
			SubscriptionName: subscriptionName,
			RefreshJob:       refreshJob,
			Logger:           log,
		})
		if handlerErr != nil {
			log.Fatal().Err(handlerErr).Msg("failed to create pubsub handler")
		}
		defer func() {
			if closeErr := handler.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close pubsub client")
			}
		}()

		go func() {
			if receiveErr := handler.Start(ctx); receiveErr != nil && ctx.Err() == nil {
				log.Fatal().Err(receiveErr).Msg("pubsub receive failed")
			}
		}()
	} else {
		interval := 15 * time.Minute
		if raw := os.Getenv("REFRESH_INTERVAL"); raw != "" {
			if d, parseErr := time.ParseDuration(raw); parseErr == nil {
				interval = d
			} else {
				log.Warn().Str("value", raw).Msg("invalid REFRESH_INTERVAL, using default")
			}
		}
		log.Info().Dur("interval", interval).Msg("pubsub not configured, running on local ticker")

		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			// Run once at startup so snapshots exist before the first tick
			refreshJob.Run(ctx)

			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					refreshJob.Run(ctx)
				}
			}
		}()
	}

	// Health check server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","version":"%s"}`, Version)
	})

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if serveErr := server.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
			log.Fatal().Err(serveErr).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
