// Package handler provides HTTP handlers for the SkyFuse API.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/skyfuse/skyfuse/internal/api/models"
	"github.com/skyfuse/skyfuse/internal/api/response"
	"github.com/skyfuse/skyfuse/internal/snapshot"
	"github.com/skyfuse/skyfuse/internal/weather"
)

const (
	defaultForecastDays = 5
	maxForecastDays     = 14
)

// WeatherHandler serves combined weather data.
type WeatherHandler struct {
	provider  weather.Provider
	snapshots snapshot.Repository
}

// NewWeatherHandler creates a new WeatherHandler. The snapshot repository is
// optional; snapshot endpoints return 404 when it is nil.
func NewWeatherHandler(provider weather.Provider, snapshots snapshot.Repository) *WeatherHandler {
	return &WeatherHandler{provider: provider, snapshots: snapshots}
}

// locationParam extracts and validates the required location query parameter.
func locationParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	location := r.URL.Query().Get("location")
	if location == "" {
		response.BadRequest(w, r, "missing required query parameter", []models.FieldError{
			{Field: "location", Message: "location is required", Code: "required"},
		})
		return "", false
	}
	return location, true
}

// writeWeatherError maps provider errors to problem responses.
func writeWeatherError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, weather.ErrNotFound):
		response.NotFound(w, r, err.Error())
	case errors.Is(err, weather.ErrRateLimited):
		response.TooManyRequests(w, r, "upstream rate limit exceeded")
	case errors.Is(err, weather.ErrInvalidAPIKey):
		// A provider key misconfiguration is our fault, not the caller's.
		response.InternalError(w, r, "provider configuration error")
	case errors.Is(err, weather.ErrNetwork), errors.Is(err, weather.ErrParse):
		response.UpstreamUnavailable(w, r, err.Error())
	default:
		response.InternalError(w, r, err.Error())
	}
}

// GetCurrent handles GET /v1/weather/current?location=...
func (h *WeatherHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	location, ok := locationParam(w, r)
	if !ok {
		return
	}

	obs, err := h.provider.GetCurrentWeather(r.Context(), location)
	if err != nil {
		writeWeatherError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, obs)
}

// GetForecast handles GET /v1/weather/forecast?location=...&days=N
func (h *WeatherHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	location, ok := locationParam(w, r)
	if !ok {
		return
	}

	days := defaultForecastDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxForecastDays {
			response.BadRequest(w, r, "invalid query parameter", []models.FieldError{
				{Field: "days", Message: "days must be an integer between 1 and 14", Code: "invalid"},
			})
			return
		}
		days = parsed
	}

	forecast, err := h.provider.GetForecast(r.Context(), location, days)
	if err != nil {
		writeWeatherError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, forecast)
}

// GetAlerts handles GET /v1/weather/alerts?location=...
func (h *WeatherHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	location, ok := locationParam(w, r)
	if !ok {
		return
	}

	alerts, err := h.provider.GetAlerts(r.Context(), location)
	if err != nil {
		writeWeatherError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, alerts)
}

// GetHistorical handles GET /v1/weather/historical?location=...&date=YYYY-MM-DD
func (h *WeatherHandler) GetHistorical(w http.ResponseWriter, r *http.Request) {
	location, ok := locationParam(w, r)
	if !ok {
		return
	}

	date := r.URL.Query().Get("date")
	if _, err := time.Parse("2006-01-02", date); err != nil {
		response.BadRequest(w, r, "invalid query parameter", []models.FieldError{
			{Field: "date", Message: "date must be in YYYY-MM-DD format", Code: "invalid"},
		})
		return
	}

	hist, err := h.provider.GetHistorical(r.Context(), location, date)
	if err != nil {
		writeWeatherError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, hist)
}

// GetLatestSnapshot handles GET /v1/weather/snapshots/latest?location=...
func (h *WeatherHandler) GetLatestSnapshot(w http.ResponseWriter, r *http.Request) {
	location, ok := locationParam(w, r)
	if !ok {
		return
	}
	if h.snapshots == nil {
		response.NotFound(w, r, "snapshot storage is not configured")
		return
	}

	snap, err := h.snapshots.Latest(r.Context(), location)
	if err != nil {
		if errors.Is(err, snapshot.ErrSnapshotNotFound) {
			response.NotFound(w, r, "no snapshots for location")
			return
		}
		response.InternalError(w, r, err.Error())
		return
	}
	response.JSON(w, r, http.StatusOK, snap)
}

// ListSnapshots handles GET /v1/weather/snapshots?location=...&since=RFC3339
func (h *WeatherHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	location, ok := locationParam(w, r)
	if !ok {
		return
	}
	if h.snapshots == nil {
		response.NotFound(w, r, "snapshot storage is not configured")
		return
	}

	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.BadRequest(w, r, "invalid query parameter", []models.FieldError{
				{Field: "since", Message: "since must be an RFC3339 timestamp", Code: "invalid"},
			})
			return
		}
		since = parsed
	}

	snaps, err := h.snapshots.ListSince(r.Context(), location, since)
	if err != nil {
		response.InternalError(w, r, err.Error())
		return
	}
	if snaps == nil {
		snaps = []snapshot.Snapshot{}
	}
	response.JSON(w, r, http.StatusOK, snaps)
}
