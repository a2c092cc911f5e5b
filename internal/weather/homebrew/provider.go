package homebrew

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/skyfuse/skyfuse/internal/weather"
)

const (
	// ProviderName identifies this provider in weight maps and logs.
	ProviderName = "Homebrew"

	// Readings older than this are ignored when building an observation.
	recencyWindow = time.Hour

	// Air quality alert thresholds.
	pm25ModerateThreshold = 35.0
	pm25SevereThreshold   = 55.0
	co2ModerateThreshold  = 1000.0
	co2SevereThreshold    = 2000.0
	tvocModerateThreshold = 500.0
	tvocSevereThreshold   = 1000.0
)

// LocationInfo maps a location query string to station metadata.
type LocationInfo struct {
	Latitude    float64
	Longitude   float64
	Name        string
	DeviceTypes []string
}

// Provider aggregates sensor station reports into the weather.Provider
// contract. Observations average all readings from the last hour across the
// location's device types.
type Provider struct {
	repo      Repository
	locations map[string]LocationInfo
	logger    zerolog.Logger
	now       func() time.Time
}

// NewProvider creates a sensor provider backed by the given repository.
// Unknown locations fall back to the "default" mapping.
func NewProvider(repo Repository, logger zerolog.Logger) *Provider {
	return &Provider{
		repo: repo,
		locations: map[string]LocationInfo{
			"default": {
				Name:        "Default Location",
				DeviceTypes: []string{"indoor", "outdoor"},
			},
		},
		logger: logger,
		now:    time.Now,
	}
}

// AddLocation registers a location mapping.
func (p *Provider) AddLocation(key string, info LocationInfo) {
	p.locations[key] = info
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return ProviderName
}

// SupportsFeature reports sensor capabilities. Stations measure but do not
// predict, so forecasts are unsupported.
func (p *Provider) SupportsFeature(feature weather.Feature) bool {
	switch feature {
	case weather.FeatureCurrentWeather, weather.FeatureAlerts,
		weather.FeatureHistoricalData, weather.FeatureAirQuality:
		return true
	default:
		return false
	}
}

func (p *Provider) locationInfo(location string) (LocationInfo, error) {
	if info, ok := p.locations[location]; ok {
		return info, nil
	}
	if info, ok := p.locations["default"]; ok {
		return info, nil
	}
	return LocationInfo{}, fmt.Errorf("%w: location not configured: %s", weather.ErrNotFound, location)
}

// aggregate holds per-channel means over a set of recent reports.
type aggregate struct {
	temperature   *float64
	humidity      *float64
	precipitation *float64
	pm25          *float64
	pm10          *float64
	co2           *float64
	tvoc          *float64
	count         int
}

// recentAggregate averages readings from the last hour for the given device
// types. Precipitation is summed, everything else is averaged.
func (p *Provider) recentAggregate(ctx context.Context, deviceTypes []string) (*aggregate, error) {
	cutoff := p.now().Add(-recencyWindow).Unix()

	var recent []Report
	for _, deviceType := range deviceTypes {
		reports, err := p.repo.ListSince(ctx, deviceType, cutoff, 10)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", weather.ErrDatabase, err)
		}
		recent = append(recent, reports...)
	}

	if len(recent) == 0 {
		return nil, fmt.Errorf("%w: no recent sensor data available", weather.ErrNotFound)
	}

	var temps, humidities, precips, pm25s, pm10s, co2s, tvocs []float64
	for _, r := range recent {
		appendIf(&temps, r.Temperature)
		appendIf(&humidities, r.Humidity)
		appendIf(&precips, r.Precipitation)
		appendIf(&pm25s, r.PM25)
		appendIf(&pm10s, r.PM10)
		appendIf(&co2s, r.CO2)
		appendIf(&tvocs, r.TVOC)
	}

	agg := &aggregate{
		temperature: meanOf(temps),
		humidity:    meanOf(humidities),
		pm25:        meanOf(pm25s),
		pm10:        meanOf(pm10s),
		co2:         meanOf(co2s),
		tvoc:        meanOf(tvocs),
		count:       len(recent),
	}
	if len(precips) > 0 {
		total := 0.0
		for _, v := range precips {
			total += v
		}
		agg.precipitation = &total
	}
	return agg, nil
}

// GetCurrentWeather builds an observation from recent sensor readings.
func (p *Provider) GetCurrentWeather(ctx context.Context, location string) (*weather.Weather, error) {
	info, err := p.locationInfo(location)
	if err != nil {
		return nil, err
	}

	agg, err := p.recentAggregate(ctx, info.DeviceTypes)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Homebrew Weather Station - %d sensors reporting", agg.count)
	var extra []string
	if agg.pm25 != nil {
		extra = append(extra, fmt.Sprintf("PM2.5: %.1f µg/m³", *agg.pm25))
	}
	if agg.pm10 != nil {
		extra = append(extra, fmt.Sprintf("PM10: %.1f µg/m³", *agg.pm10))
	}
	if agg.co2 != nil {
		extra = append(extra, fmt.Sprintf("CO2: %.0f ppm", *agg.co2))
	}
	if agg.tvoc != nil {
		extra = append(extra, fmt.Sprintf("TVOC: %.0f ppb", *agg.tvoc))
	}
	if len(extra) > 0 {
		description = description + " | " + strings.Join(extra, ", ")
	}

	obs := &weather.Weather{
		Humidity:      agg.humidity,
		Precipitation: agg.precipitation,
		Description:   description,
		Provider:      ProviderName,
		Location: weather.Location{
			Latitude:  info.Latitude,
			Longitude: info.Longitude,
			Name:      info.Name,
		},
		Timestamp: p.now().Unix(),
	}
	if agg.temperature != nil {
		obs.Temperature = *agg.temperature
	}
	return obs, nil
}

// GetForecast is unsupported; stations only measure.
func (p *Provider) GetForecast(_ context.Context, _ string, _ int) (*weather.Forecast, error) {
	return nil, fmt.Errorf("%w: %s does not provide forecasts", weather.ErrNotFound, ProviderName)
}

// GetAlerts derives air quality alerts from recent readings. PM2.5 is
// checked outdoors, CO2 and TVOC indoors.
func (p *Provider) GetAlerts(ctx context.Context, _ string) ([]weather.Alert, error) {
	now := formatTimestamp(p.now().Unix())
	alerts := []weather.Alert{}

	if outdoor, err := p.recentAggregate(ctx, []string{"outdoor"}); err == nil {
		if outdoor.pm25 != nil && *outdoor.pm25 > pm25ModerateThreshold {
			severity := weather.SeverityModerate
			if *outdoor.pm25 > pm25SevereThreshold {
				severity = weather.SeveritySevere
			}
			alerts = append(alerts, weather.Alert{
				Title:       "Poor Air Quality (PM2.5)",
				Description: fmt.Sprintf("PM2.5 levels are elevated at %.1f µg/m³", *outdoor.pm25),
				Severity:    severity,
				Start:       now,
				Regions:     []string{"Outdoor"},
			})
		}
	}

	indoor, err := p.recentAggregate(ctx, []string{"indoor"})
	if err != nil {
		return alerts, nil
	}

	if indoor.co2 != nil && *indoor.co2 > co2ModerateThreshold {
		severity := weather.SeverityModerate
		if *indoor.co2 > co2SevereThreshold {
			severity = weather.SeveritySevere
		}
		alerts = append(alerts, weather.Alert{
			Title:       "High CO2 Levels",
			Description: fmt.Sprintf("Indoor CO2 levels are elevated at %.0f ppm", *indoor.co2),
			Severity:    severity,
			Start:       now,
			Regions:     []string{"Indoor"},
		})
	}

	if indoor.tvoc != nil && *indoor.tvoc > tvocModerateThreshold {
		severity := weather.SeverityModerate
		if *indoor.tvoc > tvocSevereThreshold {
			severity = weather.SeveritySevere
		}
		alerts = append(alerts, weather.Alert{
			Title:       "High TVOC Levels",
			Description: fmt.Sprintf("Indoor TVOC levels are elevated at %.0f ppb", *indoor.tvoc),
			Severity:    severity,
			Start:       now,
			Regions:     []string{"Indoor"},
		})
	}

	return alerts, nil
}

// GetHistorical summarizes all readings recorded on the given calendar day.
func (p *Provider) GetHistorical(ctx context.Context, location, date string) (*weather.HistoricalData, error) {
	info, err := p.locationInfo(location)
	if err != nil {
		return nil, err
	}

	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date format: %s", weather.ErrParse, date)
	}
	start := day.Unix()
	end := start + 86400

	var temps, humidities, precips []float64
	for _, deviceType := range info.DeviceTypes {
		reports, err := p.repo.ListSince(ctx, deviceType, start, 1000)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", weather.ErrDatabase, err)
		}
		for _, r := range reports {
			if r.Timestamp >= end {
				continue
			}
			appendIf(&temps, r.Temperature)
			appendIf(&humidities, r.Humidity)
			appendIf(&precips, r.Precipitation)
		}
	}

	if len(temps) == 0 {
		return nil, fmt.Errorf("%w: no data available for date: %s", weather.ErrNotFound, date)
	}

	sort.Float64s(temps)
	avg := 0.0
	for _, t := range temps {
		avg += t
	}
	avg /= float64(len(temps))

	hist := &weather.HistoricalData{
		Location: weather.Location{
			Latitude:  info.Latitude,
			Longitude: info.Longitude,
			Name:      info.Name,
		},
		Provider:       ProviderName,
		Date:           date,
		TemperatureMin: temps[0],
		TemperatureMax: temps[len(temps)-1],
		TemperatureAvg: avg,
		HumidityAvg:    meanOf(humidities),
	}
	if len(precips) > 0 {
		total := 0.0
		for _, v := range precips {
			total += v
		}
		hist.PrecipTotal = &total
	}
	return hist, nil
}

func appendIf(dst *[]float64, v *float64) {
	if v != nil {
		*dst = append(*dst, *v)
	}
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

func formatTimestamp(ts int64) string {
	return time.Unix(ts, 0).UTC().Format("2006-01-02 15:04:05")
}

// Ensure Provider implements the weather provider contract.
var _ weather.Provider = (*Provider)(nil)
