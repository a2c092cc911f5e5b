package openweather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyfuse/skyfuse/internal/provider/resilience"
	"github.com/skyfuse/skyfuse/internal/weather"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

const geoDirectJSON = `[{"lat":52.52,"lon":13.405,"name":"Berlin"}]`

func TestGetCurrentWeather(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/geo/1.0/direct":
			assert.Equal(t, "Berlin", r.URL.Query().Get("q"))
			w.Write([]byte(geoDirectJSON))
		case "/data/2.5/weather":
			assert.Equal(t, "metric", r.URL.Query().Get("units"))
			w.Write([]byte(`{"main":{"temp":19.3,"feels_like":18.7,"humidity":62,"pressure":1014},"wind":{"speed":4.1,"deg":220},"weather":[{"description":"scattered clouds","icon":"03d"}],"visibility":10000,"sys":{"country":"DE"},"dt":1756300000}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	obs, err := client.GetCurrentWeather(context.Background(), "Berlin")
	require.NoError(t, err)

	assert.Equal(t, 19.3, obs.Temperature)
	require.NotNil(t, obs.FeelsLike)
	assert.Equal(t, 18.7, *obs.FeelsLike)
	require.NotNil(t, obs.Humidity)
	assert.Equal(t, 62.0, *obs.Humidity)
	require.NotNil(t, obs.WindDirection)
	assert.Equal(t, 220.0, *obs.WindDirection)
	assert.Equal(t, "scattered clouds", obs.Description)
	require.NotNil(t, obs.Visibility)
	assert.Equal(t, 10000.0, *obs.Visibility)
	assert.Nil(t, obs.Precipitation)
	assert.Equal(t, ProviderName, obs.Provider)
	assert.Equal(t, int64(1756300000), obs.Timestamp)
	require.NotNil(t, obs.Location.Country)
	assert.Equal(t, "DE", *obs.Location.Country)
}

func TestGeocodeZip(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.Equal(t, "/geo/1.0/zip", r.URL.Path)
		assert.Equal(t, "10115", r.URL.Query().Get("zip"))
		w.Write([]byte(`{"lat":52.53,"lon":13.38,"name":"Berlin Mitte"}`))
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	lat, lon, name, err := client.geocode(context.Background(), "10115")
	require.NoError(t, err)
	assert.Equal(t, 52.53, lat)
	assert.Equal(t, 13.38, lon)
	assert.Equal(t, "Berlin Mitte", name)
}

func TestGeocodeNotFound(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	_, err := client.GetCurrentWeather(context.Background(), "Atlantis")
	assert.ErrorIs(t, err, weather.ErrNotFound)
}

func TestInvalidAPIKey(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	client := NewClient(ClientConfig{APIKey: "bad-key", BaseURL: srv.URL})

	_, err := client.GetCurrentWeather(context.Background(), "Berlin")
	assert.ErrorIs(t, err, weather.ErrInvalidAPIKey)
}

func TestServerErrorIsNotDecoded(t *testing.T) {
	// An error payload must never decode into a zero-valued observation.
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/geo/1.0/direct" {
			w.Write([]byte(geoDirectJSON))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"cod":500,"message":"Internal error"}`))
	})

	client := NewClient(ClientConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: resilience.NewClient(resilience.ClientConfig{Name: "test", MaxRetries: 1, InitialInterval: time.Millisecond}),
	})

	obs, err := client.GetCurrentWeather(context.Background(), "Berlin")
	assert.ErrorIs(t, err, weather.ErrNetwork)
	assert.Nil(t, obs)
}

func TestNotFoundStatusIsNotDecoded(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/geo/1.0/direct" {
			w.Write([]byte(geoDirectJSON))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"cod":"404","message":"city not found"}`))
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	obs, err := client.GetCurrentWeather(context.Background(), "Berlin")
	assert.ErrorIs(t, err, weather.ErrNetwork)
	assert.Nil(t, obs)
}

func TestGetForecastOneCall(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/geo/1.0/direct":
			w.Write([]byte(geoDirectJSON))
		case "/data/3.0/onecall":
			w.Write([]byte(`{"daily":[{"dt":1756281600,"sunrise":1756268000,"sunset":1756318000,"temp":{"min":12.1,"max":23.4},"humidity":55,"pop":0.4,"rain":1.2,"wind_speed":3.5,"wind_deg":180,"weather":[{"description":"light rain","icon":"10d"}]}],"hourly":[{"dt":1756285200,"temp":20.0,"feels_like":19.5,"humidity":58,"pop":0.2,"wind_speed":3.0,"wind_deg":190,"weather":[{"description":"few clouds","icon":"02d"}]}]}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	forecast, err := client.GetForecast(context.Background(), "Berlin", 3)
	require.NoError(t, err)

	require.Len(t, forecast.Daily, 1)
	day := forecast.Daily[0]
	assert.Equal(t, 12.1, day.TemperatureMin)
	assert.Equal(t, 23.4, day.TemperatureMax)
	require.NotNil(t, day.PrecipProbability)
	assert.InDelta(t, 40.0, *day.PrecipProbability, 1e-9)
	require.NotNil(t, day.PrecipAmount)
	assert.Equal(t, 1.2, *day.PrecipAmount)
	require.NotNil(t, day.Sunrise)

	require.Len(t, forecast.Hourly, 1)
	assert.Equal(t, 20.0, forecast.Hourly[0].Temperature)
}

func TestGetForecastFallsBackToFiveDay(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/geo/1.0/direct":
			w.Write([]byte(geoDirectJSON))
		case "/data/3.0/onecall":
			w.WriteHeader(http.StatusForbidden)
		case "/data/2.5/forecast":
			// Two entries on the same day, one the next day.
			w.Write([]byte(`{"list":[
				{"dt":1756281600,"main":{"temp":15.0,"feels_like":14.0,"humidity":60,"pressure":1010},"wind":{"speed":2.0,"deg":100},"pop":0.1,"weather":[{"description":"clear sky","icon":"01d"}]},
				{"dt":1756292400,"main":{"temp":21.0,"feels_like":20.5,"humidity":50,"pressure":1011},"wind":{"speed":4.0,"deg":120},"pop":0.3,"rain":{"3h":0.5},"weather":[{"description":"light rain","icon":"10d"}]},
				{"dt":1756368000,"main":{"temp":18.0,"feels_like":17.5,"humidity":70,"pressure":1009},"wind":{"speed":3.0,"deg":140},"pop":0.0,"weather":[{"description":"overcast","icon":"04d"}]}
			]}`))
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	forecast, err := client.GetForecast(context.Background(), "Berlin", 5)
	require.NoError(t, err)

	require.Len(t, forecast.Daily, 2)
	first := forecast.Daily[0]
	assert.Equal(t, 15.0, first.TemperatureMin)
	assert.Equal(t, 21.0, first.TemperatureMax)
	require.NotNil(t, first.Humidity)
	assert.Equal(t, 55.0, *first.Humidity)
	require.NotNil(t, first.PrecipProbability)
	assert.InDelta(t, 30.0, *first.PrecipProbability, 1e-9)
	require.NotNil(t, first.PrecipAmount)
	assert.Equal(t, 0.5, *first.PrecipAmount)
	assert.True(t, forecast.Daily[0].Date < forecast.Daily[1].Date)

	assert.Len(t, forecast.Hourly, 3)
}

func TestGetAlerts(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/geo/1.0/direct":
			w.Write([]byte(geoDirectJSON))
		case "/data/3.0/onecall":
			w.Write([]byte(`{"alerts":[{"event":"Thunderstorm Warning","description":"Severe thunderstorms expected","start":1756290000,"end":1756300000,"tags":["Thunderstorm"]}]}`))
		}
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	alerts, err := client.GetAlerts(context.Background(), "Berlin")
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Thunderstorm Warning", alerts[0].Title)
	assert.Equal(t, weather.SeverityModerate, alerts[0].Severity)
	require.NotNil(t, alerts[0].End)
	assert.Equal(t, []string{"Thunderstorm"}, alerts[0].Regions)
}

func TestGetAlertsForbiddenIsEmpty(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/geo/1.0/direct" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(geoDirectJSON))
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	alerts, err := client.GetAlerts(context.Background(), "Berlin")
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestGetHistorical(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/geo/1.0/direct":
			w.Write([]byte(geoDirectJSON))
		case "/data/3.0/onecall/timemachine":
			w.Write([]byte(`{"data":[{"temp":10.0,"humidity":80,"wind_speed":2.0},{"temp":20.0,"humidity":60,"wind_speed":4.0}]}`))
		}
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	hist, err := client.GetHistorical(context.Background(), "Berlin", "2026-08-20")
	require.NoError(t, err)
	assert.Equal(t, 10.0, hist.TemperatureMin)
	assert.Equal(t, 20.0, hist.TemperatureMax)
	assert.Equal(t, 15.0, hist.TemperatureAvg)
	require.NotNil(t, hist.HumidityAvg)
	assert.Equal(t, 70.0, *hist.HumidityAvg)
	assert.Equal(t, "2026-08-20", hist.Date)
}

func TestGetHistoricalBadDate(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(geoDirectJSON))
	})

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL})

	_, err := client.GetHistorical(context.Background(), "Berlin", "20/08/2026")
	assert.ErrorIs(t, err, weather.ErrParse)
}

func TestRateLimited(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(geoDirectJSON))
	})

	client := NewClient(ClientConfig{
		APIKey:      "test-key",
		BaseURL:     srv.URL,
		RateLimiter: weather.NewRateLimiter(1, time.Hour),
	})

	_, _, _, err := client.geocode(context.Background(), "Berlin")
	require.NoError(t, err)

	_, _, _, err = client.geocode(context.Background(), "Berlin")
	assert.ErrorIs(t, err, weather.ErrRateLimited)
}
