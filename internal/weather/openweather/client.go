// Package openweather implements the weather.Provider contract against the
// OpenWeather API, using One Call v3 where the subscription allows and
// falling back to the v2.5 endpoints where it does not.
package openweather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyfuse/skyfuse/internal/provider/resilience"
	"github.com/skyfuse/skyfuse/internal/weather"
)

const (
	// ProviderName identifies this provider in weight maps and logs.
	ProviderName = "OpenWeather"

	// DefaultBaseURL is the OpenWeather API base URL.
	DefaultBaseURL = "https://api.openweathermap.org"

	// Free-tier quota: 60 requests per minute.
	rateLimitRequests = 60
	rateLimitWindow   = time.Minute
)

// ClientConfig holds configuration for the OpenWeather client.
type ClientConfig struct {
	// APIKey is the OpenWeather API key (required).
	APIKey string

	// BaseURL overrides the API base URL (used in tests).
	BaseURL string

	// HTTPClient is the HTTP client to use. If nil, a resilient client
	// with defaults is created.
	HTTPClient *resilience.Client

	// RateLimiter overrides the default free-tier limiter.
	RateLimiter *weather.RateLimiter

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an OpenWeather API client satisfying weather.Provider.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *resilience.Client
	rateLimiter *weather.RateLimiter
	logger      zerolog.Logger
}

// NewClient creates a new OpenWeather client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig("openweather"))
	}

	limiter := cfg.RateLimiter
	if limiter == nil {
		limiter = weather.NewRateLimiter(rateLimitRequests, rateLimitWindow)
	}

	return &Client{
		apiKey:      cfg.APIKey,
		baseURL:     baseURL,
		httpClient:  httpClient,
		rateLimiter: limiter,
		logger:      cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SupportsFeature reports OpenWeather's capabilities.
func (c *Client) SupportsFeature(_ weather.Feature) bool {
	return true
}

// get runs one rate-limited GET and returns the response. The caller owns
// the body.
func (c *Client) get(ctx context.Context, rawURL string) (*http.Response, error) {
	if !c.rateLimiter.Allow() {
		return nil, weather.ErrRateLimited
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", weather.ErrNetwork, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrNetwork, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, weather.ErrInvalidAPIKey
	}
	return resp, nil
}

// decodeJSON consumes and closes the response body. Any status other than
// 200 reaching this point is a failure; OpenWeather error payloads would
// otherwise decode into zero-valued structs.
func decodeJSON(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", weather.ErrNetwork, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", weather.ErrParse, err)
	}
	return nil
}

// geocode resolves a free-text location to coordinates. All-digit input is
// treated as a postal code.
func (c *Client) geocode(ctx context.Context, location string) (lat, lon float64, name string, err error) {
	if isDigits(location) {
		u := fmt.Sprintf("%s/geo/1.0/zip?zip=%s&appid=%s", c.baseURL, url.QueryEscape(location), c.apiKey)
		resp, err := c.get(ctx, u)
		if err != nil {
			return 0, 0, "", err
		}
		var geo owZipGeo
		if err := decodeJSON(resp, &geo); err != nil {
			return 0, 0, "", err
		}
		return geo.Lat, geo.Lon, geo.Name, nil
	}

	u := fmt.Sprintf("%s/geo/1.0/direct?q=%s&limit=1&appid=%s", c.baseURL, url.QueryEscape(location), c.apiKey)
	resp, err := c.get(ctx, u)
	if err != nil {
		return 0, 0, "", err
	}
	var geos []owGeo
	if err := decodeJSON(resp, &geos); err != nil {
		return 0, 0, "", err
	}
	if len(geos) == 0 {
		return 0, 0, "", fmt.Errorf("%w: location not found: %s", weather.ErrNotFound, location)
	}
	return geos[0].Lat, geos[0].Lon, geos[0].Name, nil
}

// GetCurrentWeather fetches current conditions for a location.
func (c *Client) GetCurrentWeather(ctx context.Context, location string) (*weather.Weather, error) {
	lat, lon, name, err := c.geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/data/2.5/weather?lat=%g&lon=%g&appid=%s&units=metric", c.baseURL, lat, lon, c.apiKey)
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	var current owCurrent
	if err := decodeJSON(resp, &current); err != nil {
		return nil, err
	}

	obs := &weather.Weather{
		Temperature:   current.Main.Temp,
		FeelsLike:     &current.Main.FeelsLike,
		Humidity:      &current.Main.Humidity,
		Pressure:      &current.Main.Pressure,
		WindSpeed:     &current.Wind.Speed,
		WindDirection: current.Wind.Deg,
		Provider:      ProviderName,
		Location: weather.Location{
			Latitude:  lat,
			Longitude: lon,
			Name:      name,
			Country:   &current.Sys.Country,
		},
		Timestamp: current.Dt,
	}
	if len(current.Weather) > 0 {
		obs.Description = current.Weather[0].Description
		obs.Icon = &current.Weather[0].Icon
	}
	if p := precipFromBuckets(current.Rain, current.Snow, "1h"); p != nil {
		obs.Precipitation = p
	}
	if current.Visibility != nil {
		v := float64(*current.Visibility)
		obs.Visibility = &v
	}
	return obs, nil
}

// GetForecast fetches the One Call forecast, falling back to the 5-day API
// when the subscription does not include One Call (403).
func (c *Client) GetForecast(ctx context.Context, location string, days int) (*weather.Forecast, error) {
	lat, lon, name, err := c.geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/data/3.0/onecall?lat=%g&lon=%g&exclude=minutely,alerts&appid=%s&units=metric",
		c.baseURL, lat, lon, c.apiKey)
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return c.fiveDayForecast(ctx, lat, lon, name, days)
	}

	var oneCall owOneCall
	if err := decodeJSON(resp, &oneCall); err != nil {
		return nil, err
	}

	forecast := &weather.Forecast{
		Location: weather.Location{Latitude: lat, Longitude: lon, Name: name},
		Provider: ProviderName,
		Daily:    make([]weather.DailyForecast, 0, days),
	}

	for i, d := range oneCall.Daily {
		if i >= days {
			break
		}
		pop := d.Pop * 100
		sunrise := formatTimestamp(d.Sunrise)
		sunset := formatTimestamp(d.Sunset)
		day := weather.DailyForecast{
			Date:              formatTimestamp(d.Dt),
			TemperatureMin:    d.Temp.Min,
			TemperatureMax:    d.Temp.Max,
			Humidity:          &d.Humidity,
			PrecipProbability: &pop,
			WindSpeed:         &d.WindSpeed,
			WindDirection:     &d.WindDeg,
			Sunrise:           &sunrise,
			Sunset:            &sunset,
		}
		if d.Rain != nil {
			day.PrecipAmount = d.Rain
		} else if d.Snow != nil {
			day.PrecipAmount = d.Snow
		}
		if len(d.Weather) > 0 {
			day.Description = d.Weather[0].Description
			day.Icon = &d.Weather[0].Icon
		}
		forecast.Daily = append(forecast.Daily, day)
	}

	for i, h := range oneCall.Hourly {
		if i >= 48 {
			break
		}
		pop := h.Pop * 100
		hour := weather.HourlyForecast{
			Datetime:          formatTimestamp(h.Dt),
			Temperature:       h.Temp,
			FeelsLike:         &h.FeelsLike,
			Humidity:          &h.Humidity,
			PrecipProbability: &pop,
			PrecipAmount:      precipFromBuckets(h.Rain, h.Snow, "1h"),
			WindSpeed:         &h.WindSpeed,
			WindDirection:     &h.WindDeg,
		}
		if len(h.Weather) > 0 {
			hour.Description = h.Weather[0].Description
			hour.Icon = &h.Weather[0].Icon
		}
		forecast.Hourly = append(forecast.Hourly, hour)
	}

	return forecast, nil
}

// fiveDayForecast builds a daily forecast from the 3-hourly v2.5 endpoint by
// bucketing entries per calendar day.
func (c *Client) fiveDayForecast(ctx context.Context, lat, lon float64, name string, days int) (*weather.Forecast, error) {
	u := fmt.Sprintf("%s/data/2.5/forecast?lat=%g&lon=%g&appid=%s&units=metric", c.baseURL, lat, lon, c.apiKey)
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	var fiveDay owFiveDay
	if err := decodeJSON(resp, &fiveDay); err != nil {
		return nil, err
	}

	type bucket struct {
		temps, humidity, pop, rain, windSpeed, windDeg []float64
		description                                    string
		icon                                           *string
	}
	buckets := make(map[string]*bucket)

	for _, item := range fiveDay.List {
		date := formatDate(item.Dt)
		b, ok := buckets[date]
		if !ok {
			b = &bucket{}
			buckets[date] = b
		}
		b.temps = append(b.temps, item.Main.Temp)
		b.humidity = append(b.humidity, item.Main.Humidity)
		b.pop = append(b.pop, item.Pop*100)
		if item.Rain != nil && item.Rain.ThreeH != nil {
			b.rain = append(b.rain, *item.Rain.ThreeH)
		}
		b.windSpeed = append(b.windSpeed, item.Wind.Speed)
		if item.Wind.Deg != nil {
			b.windDeg = append(b.windDeg, *item.Wind.Deg)
		}
		if b.description == "" && len(item.Weather) > 0 {
			b.description = item.Weather[0].Description
			b.icon = &item.Weather[0].Icon
		}
	}

	daily := make([]weather.DailyForecast, 0, len(buckets))
	for date, b := range buckets {
		day := weather.DailyForecast{
			Date:           date,
			TemperatureMin: minOf(b.temps),
			TemperatureMax: maxOf(b.temps),
			Description:    b.description,
			Icon:           b.icon,
		}
		if h := meanOf(b.humidity); h != nil {
			day.Humidity = h
		}
		if len(b.pop) > 0 {
			p := maxOf(b.pop)
			day.PrecipProbability = &p
		}
		if len(b.rain) > 0 {
			total := 0.0
			for _, r := range b.rain {
				total += r
			}
			day.PrecipAmount = &total
		}
		day.WindSpeed = meanOf(b.windSpeed)
		day.WindDirection = meanOf(b.windDeg)
		daily = append(daily, day)
	}

	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })
	if len(daily) > days {
		daily = daily[:days]
	}

	hourly := make([]weather.HourlyForecast, 0, len(fiveDay.List))
	for i, item := range fiveDay.List {
		if i >= 40 {
			break
		}
		pop := item.Pop * 100
		hour := weather.HourlyForecast{
			Datetime:          formatTimestamp(item.Dt),
			Temperature:       item.Main.Temp,
			FeelsLike:         &item.Main.FeelsLike,
			Humidity:          &item.Main.Humidity,
			PrecipProbability: &pop,
			WindSpeed:         &item.Wind.Speed,
			WindDirection:     item.Wind.Deg,
		}
		if item.Rain != nil && item.Rain.ThreeH != nil {
			hour.PrecipAmount = item.Rain.ThreeH
		} else if item.Snow != nil && item.Snow.ThreeH != nil {
			hour.PrecipAmount = item.Snow.ThreeH
		}
		if len(item.Weather) > 0 {
			hour.Description = item.Weather[0].Description
			hour.Icon = &item.Weather[0].Icon
		}
		hourly = append(hourly, hour)
	}

	return &weather.Forecast{
		Location: weather.Location{Latitude: lat, Longitude: lon, Name: name},
		Provider: ProviderName,
		Daily:    daily,
		Hourly:   hourly,
	}, nil
}

// GetAlerts fetches active alerts via One Call. A 403 means the subscription
// has no alert access; that is reported as no alerts, not an error.
func (c *Client) GetAlerts(ctx context.Context, location string) ([]weather.Alert, error) {
	lat, lon, _, err := c.geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/data/3.0/onecall?lat=%g&lon=%g&exclude=current,minutely,hourly,daily&appid=%s",
		c.baseURL, lat, lon, c.apiKey)
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return []weather.Alert{}, nil
	}

	var payload owAlertsResponse
	if err := decodeJSON(resp, &payload); err != nil {
		return nil, err
	}

	alerts := make([]weather.Alert, 0, len(payload.Alerts))
	for _, a := range payload.Alerts {
		alert := weather.Alert{
			Title:       a.Event,
			Description: a.Description,
			// One Call alerts carry no severity scale.
			Severity: weather.SeverityModerate,
			Start:    formatTimestamp(a.Start),
			Regions:  a.Tags,
		}
		if a.End != nil {
			end := formatTimestamp(*a.End)
			alert.End = &end
		}
		alerts = append(alerts, alert)
	}
	return alerts, nil
}

// GetHistorical fetches one past day via the One Call timemachine endpoint.
func (c *Client) GetHistorical(ctx context.Context, location, date string) (*weather.HistoricalData, error) {
	lat, lon, name, err := c.geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date format: %s", weather.ErrParse, date)
	}

	u := fmt.Sprintf("%s/data/3.0/onecall/timemachine?lat=%g&lon=%g&dt=%d&appid=%s&units=metric",
		c.baseURL, lat, lon, day.Unix(), c.apiKey)
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: historical data requires subscription", weather.ErrNotFound)
	}

	var payload owHistorical
	if err := decodeJSON(resp, &payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("%w: no historical data for %s", weather.ErrNotFound, date)
	}

	var temps, humidities, windSpeeds []float64
	for _, h := range payload.Data {
		temps = append(temps, h.Temp)
		humidities = append(humidities, h.Humidity)
		windSpeeds = append(windSpeeds, h.WindSpeed)
	}

	tempAvg := 0.0
	for _, t := range temps {
		tempAvg += t
	}
	tempAvg /= float64(len(temps))

	return &weather.HistoricalData{
		Location:       weather.Location{Latitude: lat, Longitude: lon, Name: name},
		Provider:       ProviderName,
		Date:           date,
		TemperatureMin: minOf(temps),
		TemperatureMax: maxOf(temps),
		TemperatureAvg: tempAvg,
		HumidityAvg:    meanOf(humidities),
		WindSpeedAvg:   meanOf(windSpeeds),
	}, nil
}

func formatTimestamp(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
}

func formatDate(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func meanOf(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	return &mean
}

// precipFromBuckets picks rain over snow for the given accumulation window,
// defaulting a present-but-empty bucket to zero.
func precipFromBuckets(rain, snow *owPrecip, window string) *float64 {
	pick := func(b *owPrecip) *float64 {
		if b == nil {
			return nil
		}
		var v float64
		switch window {
		case "1h":
			if b.OneH != nil {
				v = *b.OneH
			}
		case "3h":
			if b.ThreeH != nil {
				v = *b.ThreeH
			}
		}
		return &v
	}
	if p := pick(rain); p != nil {
		return p
	}
	return pick(snow)
}

// OpenWeather API response structures.

type owGeo struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name"`
}

type owZipGeo struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name"`
}

type owWeatherCondition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owMain struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	Humidity  float64 `json:"humidity"`
	Pressure  float64 `json:"pressure"`
}

type owWind struct {
	Speed float64  `json:"speed"`
	Deg   *float64 `json:"deg"`
}

type owPrecip struct {
	OneH   *float64 `json:"1h"`
	ThreeH *float64 `json:"3h"`
}

type owSys struct {
	Country string `json:"country"`
}

type owCurrent struct {
	Main       owMain               `json:"main"`
	Wind       owWind               `json:"wind"`
	Weather    []owWeatherCondition `json:"weather"`
	Rain       *owPrecip            `json:"rain"`
	Snow       *owPrecip            `json:"snow"`
	Visibility *int                 `json:"visibility"`
	Sys        owSys                `json:"sys"`
	Dt         int64                `json:"dt"`
}

type owOneCall struct {
	Daily  []owOneCallDaily  `json:"daily"`
	Hourly []owOneCallHourly `json:"hourly"`
}

type owOneCallDaily struct {
	Dt       int64                `json:"dt"`
	Sunrise  int64                `json:"sunrise"`
	Sunset   int64                `json:"sunset"`
	Temp     owOneCallTemp        `json:"temp"`
	Humidity float64              `json:"humidity"`
	Pop      float64              `json:"pop"`
	Rain     *float64             `json:"rain"`
	Snow     *float64             `json:"snow"`
	WindSpeed float64             `json:"wind_speed"`
	WindDeg  float64              `json:"wind_deg"`
	Weather  []owWeatherCondition `json:"weather"`
}

type owOneCallTemp struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type owOneCallHourly struct {
	Dt        int64                `json:"dt"`
	Temp      float64              `json:"temp"`
	FeelsLike float64              `json:"feels_like"`
	Humidity  float64              `json:"humidity"`
	Pop       float64              `json:"pop"`
	Rain      *owPrecip            `json:"rain"`
	Snow      *owPrecip            `json:"snow"`
	WindSpeed float64              `json:"wind_speed"`
	WindDeg   float64              `json:"wind_deg"`
	Weather   []owWeatherCondition `json:"weather"`
}

type owFiveDay struct {
	List []owFiveDayItem `json:"list"`
}

type owFiveDayItem struct {
	Dt      int64                `json:"dt"`
	Main    owMain               `json:"main"`
	Wind    owWind               `json:"wind"`
	Pop     float64              `json:"pop"`
	Rain    *owPrecip            `json:"rain"`
	Snow    *owPrecip            `json:"snow"`
	Weather []owWeatherCondition `json:"weather"`
}

type owAlertsResponse struct {
	Alerts []owAlert `json:"alerts"`
}

type owAlert struct {
	Event       string   `json:"event"`
	Description string   `json:"description"`
	Start       int64    `json:"start"`
	End         *int64   `json:"end"`
	Tags        []string `json:"tags"`
}

type owHistorical struct {
	Data []owHistoricalHour `json:"data"`
}

type owHistoricalHour struct {
	Temp      float64 `json:"temp"`
	Humidity  float64 `json:"humidity"`
	WindSpeed float64 `json:"wind_speed"`
}
