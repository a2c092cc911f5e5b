// Package accuweather implements the weather.Provider contract against the
// AccuWeather REST API.
package accuweather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyfuse/skyfuse/internal/provider/resilience"
	"github.com/skyfuse/skyfuse/internal/weather"
)

const (
	// ProviderName identifies this provider in weight maps and logs.
	ProviderName = "AccuWeather"

	// DefaultBaseURL is the AccuWeather data service base URL.
	DefaultBaseURL = "http://dataservice.accuweather.com"

	// Free-tier quota: 50 requests per hour.
	rateLimitRequests = 50
	rateLimitWindow   = time.Hour
)

// ClientConfig holds configuration for the AccuWeather client.
type ClientConfig struct {
	// APIKey is the AccuWeather API key (required).
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

// Client is an AccuWeather API client satisfying weather.Provider.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *resilience.Client
	rateLimiter *weather.RateLimiter
	logger      zerolog.Logger
}

// NewClient creates a new AccuWeather client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig("accuweather"))
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

// SupportsFeature reports AccuWeather's capabilities. Historical data is not
// available on this API tier.
func (c *Client) SupportsFeature(feature weather.Feature) bool {
	return feature != weather.FeatureHistoricalData
}

// getJSON runs one rate-limited GET and decodes the body into out.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	if !c.rateLimiter.Allow() {
		return weather.ErrRateLimited
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: creating request: %v", weather.ErrNetwork, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", weather.ErrNetwork, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return weather.ErrInvalidAPIKey
	case resp.StatusCode == http.StatusNoContent:
		// Callers that can see 204 pass a pointer to a slice; leave it empty.
		return nil
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: unexpected status %d", weather.ErrNetwork, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", weather.ErrParse, err)
	}
	return nil
}

// locationKey resolves a free-text location to an AccuWeather location key.
// All-digit input is treated as a postal code.
func (c *Client) locationKey(ctx context.Context, location string) (string, error) {
	endpoint := "cities"
	if isDigits(location) {
		endpoint = "postalcodes"
	}
	u := fmt.Sprintf("%s/locations/v1/%s/search?apikey=%s&q=%s",
		c.baseURL, endpoint, c.apiKey, url.QueryEscape(location))

	var locations []accuLocation
	if err := c.getJSON(ctx, u, &locations); err != nil {
		return "", err
	}
	if len(locations) == 0 {
		return "", fmt.Errorf("%w: location not found: %s", weather.ErrNotFound, location)
	}
	return locations[0].Key, nil
}

func (c *Client) locationDetails(ctx context.Context, key string) (*accuLocation, error) {
	u := fmt.Sprintf("%s/locations/v1/%s?apikey=%s", c.baseURL, key, c.apiKey)

	var loc accuLocation
	if err := c.getJSON(ctx, u, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

// GetCurrentWeather fetches current conditions for a location.
func (c *Client) GetCurrentWeather(ctx context.Context, location string) (*weather.Weather, error) {
	key, err := c.locationKey(ctx, location)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/currentconditions/v1/%s?apikey=%s&details=true", c.baseURL, key, c.apiKey)

	var conditions []accuCurrentCondition
	if err := c.getJSON(ctx, u, &conditions); err != nil {
		return nil, err
	}
	if len(conditions) == 0 {
		return nil, fmt.Errorf("%w: no current conditions available", weather.ErrNotFound)
	}
	cond := conditions[0]

	details, err := c.locationDetails(ctx, key)
	if err != nil {
		return nil, err
	}

	icon := strconv.Itoa(cond.WeatherIcon)
	obs := &weather.Weather{
		Temperature: cond.Temperature.Metric.Value,
		Humidity:    cond.RelativeHumidity,
		Description: cond.WeatherText,
		Icon:        &icon,
		UVIndex:     cond.UVIndex,
		Provider:    ProviderName,
		Location:    details.toLocation(),
		Timestamp:   time.Now().Unix(),
	}
	if cond.RealFeelTemperature != nil {
		obs.FeelsLike = &cond.RealFeelTemperature.Metric.Value
	}
	if cond.Pressure != nil {
		obs.Pressure = &cond.Pressure.Metric.Value
	}
	if cond.Wind != nil {
		obs.WindSpeed = &cond.Wind.Speed.Metric.Value
		obs.WindDirection = &cond.Wind.Direction.Degrees
	}
	if cond.Visibility != nil {
		obs.Visibility = &cond.Visibility.Metric.Value
	}
	if cond.PrecipitationSummary != nil && cond.PrecipitationSummary.Precipitation != nil {
		obs.Precipitation = &cond.PrecipitationSummary.Precipitation.Metric.Value
	}

	return obs, nil
}

// GetForecast fetches the 5-day daily forecast plus 12-hour hourly data.
func (c *Client) GetForecast(ctx context.Context, location string, days int) (*weather.Forecast, error) {
	key, err := c.locationKey(ctx, location)
	if err != nil {
		return nil, err
	}

	details, err := c.locationDetails(ctx, key)
	if err != nil {
		return nil, err
	}

	dailyURL := fmt.Sprintf("%s/forecasts/v1/daily/5day/%s?apikey=%s&metric=true", c.baseURL, key, c.apiKey)
	var dailyResp accuForecastResponse
	if err := c.getJSON(ctx, dailyURL, &dailyResp); err != nil {
		return nil, err
	}

	hourlyURL := fmt.Sprintf("%s/forecasts/v1/hourly/12hour/%s?apikey=%s&metric=true", c.baseURL, key, c.apiKey)
	var hourlyResp []accuHourlyForecast
	if err := c.getJSON(ctx, hourlyURL, &hourlyResp); err != nil {
		return nil, err
	}

	forecast := &weather.Forecast{
		Location: details.toLocation(),
		Provider: ProviderName,
		Daily:    make([]weather.DailyForecast, 0, days),
		Hourly:   make([]weather.HourlyForecast, 0, len(hourlyResp)),
	}

	for i, d := range dailyResp.DailyForecasts {
		if i >= days {
			break
		}
		icon := strconv.Itoa(d.Day.Icon)
		day := weather.DailyForecast{
			Date:              d.Date,
			TemperatureMin:    d.Temperature.Minimum.Value,
			TemperatureMax:    d.Temperature.Maximum.Value,
			PrecipProbability: d.Day.PrecipitationProbability,
			Description:       d.Day.IconPhrase,
			Icon:              &icon,
		}
		if d.Day.TotalLiquid != nil {
			day.PrecipAmount = &d.Day.TotalLiquid.Value
		}
		if d.Day.Wind != nil {
			day.WindSpeed = &d.Day.Wind.Speed.Value
			day.WindDirection = &d.Day.Wind.Direction.Degrees
		}
		if d.Sun != nil {
			day.Sunrise = &d.Sun.Rise
			day.Sunset = &d.Sun.Set
		}
		forecast.Daily = append(forecast.Daily, day)
	}

	for _, h := range hourlyResp {
		icon := strconv.Itoa(h.WeatherIcon)
		prob := float64(h.PrecipitationProbability)
		hour := weather.HourlyForecast{
			Datetime:          h.DateTime,
			Temperature:       h.Temperature.Value,
			Humidity:          h.RelativeHumidity,
			PrecipProbability: &prob,
			Description:       h.IconPhrase,
			Icon:              &icon,
		}
		if h.RealFeelTemperature != nil {
			hour.FeelsLike = &h.RealFeelTemperature.Value
		}
		if h.TotalLiquid != nil {
			hour.PrecipAmount = &h.TotalLiquid.Value
		}
		if h.Wind != nil {
			hour.WindSpeed = &h.Wind.Speed.Value
			hour.WindDirection = &h.Wind.Direction.Degrees
		}
		forecast.Hourly = append(forecast.Hourly, hour)
	}

	return forecast, nil
}

// GetAlerts fetches active alerts; a 204 from upstream means none.
func (c *Client) GetAlerts(ctx context.Context, location string) ([]weather.Alert, error) {
	key, err := c.locationKey(ctx, location)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/alerts/v1/%s?apikey=%s", c.baseURL, key, c.apiKey)

	var accuAlerts []accuAlert
	if err := c.getJSON(ctx, u, &accuAlerts); err != nil {
		return nil, err
	}

	alerts := make([]weather.Alert, 0, len(accuAlerts))
	for _, a := range accuAlerts {
		regions := make([]string, 0, len(a.Area))
		for _, area := range a.Area {
			regions = append(regions, area.Name)
		}
		alerts = append(alerts, weather.Alert{
			Title:       a.Description.Localized,
			Description: a.Description.English,
			Severity:    mapSeverity(a.Severity),
			Start:       a.EffectiveTimeLocal,
			End:         a.ExpiresTimeLocal,
			Regions:     regions,
		})
	}
	return alerts, nil
}

// GetHistorical is not supported by this API tier.
func (c *Client) GetHistorical(_ context.Context, _, _ string) (*weather.HistoricalData, error) {
	return nil, weather.ErrHistoricalUnsupported(ProviderName)
}

// mapSeverity buckets AccuWeather's 1-10 severity scale.
func mapSeverity(severity int) weather.AlertSeverity {
	switch {
	case severity <= 3:
		return weather.SeverityMinor
	case severity <= 6:
		return weather.SeverityModerate
	case severity <= 9:
		return weather.SeveritySevere
	default:
		return weather.SeverityExtreme
	}
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

// AccuWeather API response structures.

type accuLocation struct {
	Key                string          `json:"Key"`
	LocalizedName      string          `json:"LocalizedName"`
	Country            accuCountry     `json:"Country"`
	AdministrativeArea *accuAdminArea  `json:"AdministrativeArea"`
	GeoPosition        accuGeoPosition `json:"GeoPosition"`
	PrimaryPostalCode  *string         `json:"PrimaryPostalCode"`
}

func (l *accuLocation) toLocation() weather.Location {
	loc := weather.Location{
		Latitude:   l.GeoPosition.Latitude,
		Longitude:  l.GeoPosition.Longitude,
		Name:       l.LocalizedName,
		Country:    &l.Country.LocalizedName,
		PostalCode: l.PrimaryPostalCode,
	}
	if l.AdministrativeArea != nil {
		loc.Region = &l.AdministrativeArea.LocalizedName
	}
	return loc
}

type accuCountry struct {
	ID            string `json:"ID"`
	LocalizedName string `json:"LocalizedName"`
}

type accuAdminArea struct {
	LocalizedName string `json:"LocalizedName"`
}

type accuGeoPosition struct {
	Latitude  float64 `json:"Latitude"`
	Longitude float64 `json:"Longitude"`
}

type accuCurrentCondition struct {
	WeatherText          string                    `json:"WeatherText"`
	WeatherIcon          int                       `json:"WeatherIcon"`
	Temperature          accuTemperature           `json:"Temperature"`
	RealFeelTemperature  *accuTemperature          `json:"RealFeelTemperature"`
	RelativeHumidity     *float64                  `json:"RelativeHumidity"`
	Wind                 *accuWind                 `json:"Wind"`
	UVIndex              *float64                  `json:"UVIndex"`
	Visibility           *accuMeasurement          `json:"Visibility"`
	Pressure             *accuMeasurement          `json:"Pressure"`
	PrecipitationSummary *accuPrecipitationSummary `json:"PrecipitationSummary"`
}

type accuTemperature struct {
	Metric accuUnit `json:"Metric"`
}

type accuUnit struct {
	Value float64 `json:"Value"`
	Unit  string  `json:"Unit"`
}

type accuWind struct {
	Direction accuWindDirection `json:"Direction"`
	Speed     accuMeasurement   `json:"Speed"`
}

type accuWindDirection struct {
	Degrees float64 `json:"Degrees"`
}

type accuMeasurement struct {
	Metric accuUnit `json:"Metric"`
}

type accuPrecipitationSummary struct {
	Precipitation *accuMeasurement `json:"Precipitation"`
}

type accuForecastResponse struct {
	DailyForecasts []accuDailyForecast `json:"DailyForecasts"`
}

type accuDailyForecast struct {
	Date        string        `json:"Date"`
	Temperature accuTempRange `json:"Temperature"`
	Day         accuDayNight  `json:"Day"`
	Sun         *accuSun      `json:"Sun"`
}

type accuTempRange struct {
	Minimum accuUnit `json:"Minimum"`
	Maximum accuUnit `json:"Maximum"`
}

type accuDayNight struct {
	Icon                     int               `json:"Icon"`
	IconPhrase               string            `json:"IconPhrase"`
	PrecipitationProbability *float64          `json:"PrecipitationProbability"`
	TotalLiquid              *accuUnit         `json:"TotalLiquid"`
	Wind                     *accuWindForecast `json:"Wind"`
}

type accuWindForecast struct {
	Speed     accuUnit          `json:"Speed"`
	Direction accuWindDirection `json:"Direction"`
}

type accuSun struct {
	Rise string `json:"Rise"`
	Set  string `json:"Set"`
}

type accuHourlyForecast struct {
	DateTime                 string            `json:"DateTime"`
	WeatherIcon              int               `json:"WeatherIcon"`
	IconPhrase               string            `json:"IconPhrase"`
	Temperature              accuUnit          `json:"Temperature"`
	RealFeelTemperature      *accuUnit         `json:"RealFeelTemperature"`
	RelativeHumidity         *float64          `json:"RelativeHumidity"`
	PrecipitationProbability int               `json:"PrecipitationProbability"`
	TotalLiquid              *accuUnit         `json:"TotalLiquid"`
	Wind                     *accuWindForecast `json:"Wind"`
}

type accuAlert struct {
	Description        accuAlertDescription `json:"Description"`
	Severity           int                  `json:"Severity"`
	EffectiveTimeLocal string               `json:"EffectiveTimeLocal"`
	ExpiresTimeLocal   *string              `json:"ExpiresTimeLocal"`
	Area               []accuAlertArea      `json:"Area"`
}

type accuAlertDescription struct {
	Localized string `json:"Localized"`
	English   string `json:"English"`
}

type accuAlertArea struct {
	Name string `json:"Name"`
}
