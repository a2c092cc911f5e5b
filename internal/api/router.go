// Package api provides the HTTP API for SkyFuse.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/skyfuse/skyfuse/internal/api/handler"
	"github.com/skyfuse/skyfuse/internal/api/middleware"
	"github.com/skyfuse/skyfuse/internal/api/models"
	"github.com/skyfuse/skyfuse/internal/snapshot"
	"github.com/skyfuse/skyfuse/internal/weather"
	"github.com/skyfuse/skyfuse/internal/weather/homebrew"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Provider is the combined weather provider serving the weather routes.
	Provider weather.Provider

	// Snapshots serves persisted combined observations. Optional.
	Snapshots snapshot.Repository

	// Reports stores sensor station readings. Optional; report routes are
	// omitted when nil.
	Reports homebrew.Repository

	// APIKeys maps key names to secrets for station/client auth. When
	// empty, all routes are public.
	APIKeys map[string]string

	// ProviderStatus reports circuit state per provider for /ops/status.
	ProviderStatus func() []models.ProviderStatus
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "skyfuse-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.ProviderStatus)
	weatherHandler := handler.NewWeatherHandler(cfg.Provider, cfg.Snapshots)

	weatherRateLimit := middleware.RateLimitByAPIKey(middleware.WeatherRateLimit)
	reportRateLimit := middleware.RateLimitByAPIKey(middleware.ReportRateLimit)
	standardRateLimit := middleware.RateLimitByAPIKey(middleware.StandardRateLimit)

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		// Weather endpoints - fan out to providers, strict rate limiting
		r.Route("/weather", func(r chi.Router) {
			if len(cfg.APIKeys) > 0 {
				r.Use(middleware.APIKeyAuth(cfg.APIKeys))
			}
			r.With(weatherRateLimit).Get("/current", weatherHandler.GetCurrent)
			r.With(weatherRateLimit).Get("/forecast", weatherHandler.GetForecast)
			r.With(weatherRateLimit).Get("/alerts", weatherHandler.GetAlerts)
			r.With(weatherRateLimit).Get("/historical", weatherHandler.GetHistorical)

			// Snapshot reads are cheap, standard rate limiting
			r.With(standardRateLimit).Get("/snapshots", weatherHandler.ListSnapshots)
			r.With(standardRateLimit).Get("/snapshots/latest", weatherHandler.GetLatestSnapshot)
		})

		// Sensor report endpoints
		if cfg.Reports != nil {
			reportHandler := handler.NewReportHandler(cfg.Reports)
			r.Route("/reports", func(r chi.Router) {
				if len(cfg.APIKeys) > 0 {
					r.Use(middleware.APIKeyAuth(cfg.APIKeys))
				}
				r.Use(middleware.RequireJSON)
				r.With(reportRateLimit).Post("/", reportHandler.Create)
				r.With(standardRateLimit).Get("/latest", reportHandler.Latest)
			})
		}
	})

	return r
}
