package accuweather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfuse/skyfuse/internal/weather"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func testLocationJSON() string {
	return `[{"Key":"328328","LocalizedName":"London","Country":{"ID":"GB","LocalizedName":"United Kingdom"},"AdministrativeArea":{"LocalizedName":"London"},"GeoPosition":{"Latitude":51.52,"Longitude":-0.11}}]`
}

func TestGetCurrentWeather(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/locations/v1/cities/search":
			assert.Equal(t, "London", r.URL.Query().Get("q"))
			w.Write([]byte(testLocationJSON()))
		case "/currentconditions/v1/328328":
			assert.Equal(t, "true", r.URL.Query().Get("details"))
			w.Write([]byte(`[{"WeatherText":"Partly cloudy","WeatherIcon":3,"Temperature":{"Metric":{"Value":18.5,"Unit":"C"}},"RealFeelTemperature":{"Metric":{"Value":17.0,"Unit":"C"}},"RelativeHumidity":65,"Wind":{"Direction":{"Degrees":270},"Speed":{"Metric":{"Value":14.8,"Unit":"km/h"}}},"UVIndex":4}]`))
		case "/locations/v1/328328":
			w.Write([]byte(`{"Key":"328328","LocalizedName":"London","Country":{"ID":"GB","LocalizedName":"United Kingdom"},"AdministrativeArea":{"LocalizedName":"London"},"GeoPosition":{"Latitude":51.52,"Longitude":-0.11}}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	obs, err := client.GetCurrentWeather(context.Background(), "London")
	require.NoError(t, err)

	assert.Equal(t, 18.5, obs.Temperature)
	require.NotNil(t, obs.FeelsLike)
	assert.Equal(t, 17.0, *obs.FeelsLike)
	require.NotNil(t, obs.Humidity)
	assert.Equal(t, 65.0, *obs.Humidity)
	require.NotNil(t, obs.WindSpeed)
	assert.Equal(t, 14.8, *obs.WindSpeed)
	assert.Equal(t, "Partly cloudy", obs.Description)
	require.NotNil(t, obs.Icon)
	assert.Equal(t, "3", *obs.Icon)
	assert.Equal(t, ProviderName, obs.Provider)
	assert.Equal(t, "London", obs.Location.Name)
	assert.Equal(t, 51.52, obs.Location.Latitude)
}

func TestLocationKeyPostalCode(t *testing.T) {
	var postalSearched bool
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/locations/v1/postalcodes/search" {
			postalSearched = true
			w.Write([]byte(testLocationJSON()))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	key, err := client.locationKey(context.Background(), "10001")
	require.NoError(t, err)
	assert.True(t, postalSearched)
	assert.Equal(t, "328328", key)
}

func TestLocationKeyNotFound(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	_, err := client.GetCurrentWeather(context.Background(), "Nowhereville")
	require.Error(t, err)
	assert.ErrorIs(t, err, weather.ErrNotFound)
}

func TestInvalidAPIKey(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := NewClient(ClientConfig{APIKey: "bad-key", BaseURL: srv.URL})

	_, err := client.GetCurrentWeather(context.Background(), "London")
	assert.ErrorIs(t, err, weather.ErrInvalidAPIKey)
}

func TestGetAlertsNoContent(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/locations/v1/cities/search" {
			w.Write([]byte(testLocationJSON()))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	alerts, err := client.GetAlerts(context.Background(), "London")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestGetAlerts(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/locations/v1/cities/search":
			w.Write([]byte(testLocationJSON()))
		case "/alerts/v1/328328":
			w.Write([]byte(`[{"Description":{"Localized":"Wind Warning","English":"Strong winds expected"},"Severity":7,"EffectiveTimeLocal":"2026-08-27T08:00:00+01:00","Area":[{"Name":"Greater London"}]}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	alerts, err := client.GetAlerts(context.Background(), "London")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Wind Warning", alerts[0].Title)
	assert.Equal(t, weather.SeveritySevere, alerts[0].Severity)
	assert.Equal(t, []string{"Greater London"}, alerts[0].Regions)
}

func TestGetForecast(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/locations/v1/cities/search":
			w.Write([]byte(testLocationJSON()))
		case "/locations/v1/328328":
			w.Write([]byte(`{"Key":"328328","LocalizedName":"London","Country":{"ID":"GB","LocalizedName":"United Kingdom"},"GeoPosition":{"Latitude":51.52,"Longitude":-0.11}}`))
		case "/forecasts/v1/daily/5day/328328":
			resp := accuForecastResponse{DailyForecasts: []accuDailyForecast{
				{Date: "2026-08-27T07:00:00+01:00", Temperature: accuTempRange{Minimum: accuUnit{Value: 12}, Maximum: accuUnit{Value: 22}}, Day: accuDayNight{Icon: 1, IconPhrase: "Sunny"}},
				{Date: "2026-08-28T07:00:00+01:00", Temperature: accuTempRange{Minimum: accuUnit{Value: 13}, Maximum: accuUnit{Value: 21}}, Day: accuDayNight{Icon: 6, IconPhrase: "Mostly cloudy"}},
				{Date: "2026-08-29T07:00:00+01:00", Temperature: accuTempRange{Minimum: accuUnit{Value: 11}, Maximum: accuUnit{Value: 19}}, Day: accuDayNight{Icon: 12, IconPhrase: "Showers"}},
			}}
			json.NewEncoder(w).Encode(resp)
		case "/forecasts/v1/hourly/12hour/328328":
			w.Write([]byte(`[{"DateTime":"2026-08-27T10:00:00+01:00","WeatherIcon":1,"IconPhrase":"Sunny","Temperature":{"Value":17.0,"Unit":"C"},"PrecipitationProbability":10}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	forecast, err := client.GetForecast(context.Background(), "London", 2)
	require.NoError(t, err)

	// days caps the daily list even when upstream returns more.
	require.Len(t, forecast.Daily, 2)
	assert.Equal(t, 12.0, forecast.Daily[0].TemperatureMin)
	assert.Equal(t, 22.0, forecast.Daily[0].TemperatureMax)
	assert.Equal(t, "Sunny", forecast.Daily[0].Description)

	require.Len(t, forecast.Hourly, 1)
	assert.Equal(t, 17.0, forecast.Hourly[0].Temperature)
	require.NotNil(t, forecast.Hourly[0].PrecipProbability)
	assert.Equal(t, 10.0, *forecast.Hourly[0].PrecipProbability)
}

func TestRateLimited(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testLocationJSON()))
	})

	client := NewClient(ClientConfig{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		RateLimiter: weather.NewRateLimiter(1, time.Hour),
	})

	_, err := client.locationKey(context.Background(), "London")
	require.NoError(t, err)

	_, err = client.locationKey(context.Background(), "London")
	assert.ErrorIs(t, err, weather.ErrRateLimited)
}

func TestHistoricalUnsupported(t *testing.T) {
	client := NewClient(ClientConfig{APIKey: "test-key"})

	_, err := client.GetHistorical(context.Background(), "London", "2026-08-20")
	require.Error(t, err)
	assert.False(t, client.SupportsFeature(weather.FeatureHistoricalData))
	assert.True(t, client.SupportsFeature(weather.FeatureCurrentWeather))
}

func TestMapSeverity(t *testing.T) {
	assert.Equal(t, weather.SeverityMinor, mapSeverity(2))
	assert.Equal(t, weather.SeverityModerate, mapSeverity(5))
	assert.Equal(t, weather.SeveritySevere, mapSeverity(8))
	assert.Equal(t, weather.SeverityExtreme, mapSeverity(10))
}
