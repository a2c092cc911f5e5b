// Package weather defines the canonical weather data model and the
// provider-combination engine that aggregates results from multiple
// configured providers.
package weather

// Weather is a point-in-time observation normalized across providers.
// Temperature is the only numeric field every provider must report; all
// other numeric fields are nil when the provider did not report them and
// must never be coerced to zero.
type Weather struct {
	Temperature   float64  `json:"temperature"`
	FeelsLike     *float64 `json:"feels_like"`
	Humidity      *float64 `json:"humidity"`
	Pressure      *float64 `json:"pressure"`
	WindSpeed     *float64 `json:"wind_speed"`
	WindDirection *float64 `json:"wind_direction"`
	Description   string   `json:"description"`
	Icon          *string  `json:"icon"`
	Precipitation *float64 `json:"precipitation"`
	Visibility    *float64 `json:"visibility"`
	UVIndex       *float64 `json:"uv_index"`
	Provider      string   `json:"provider"`
	Location      Location `json:"location"`
	Timestamp     int64    `json:"timestamp"`
}

// Location describes where an observation was made. Identity is the
// caller-supplied location query string, not these coordinates; providers
// resolving the same query may return slightly different Location values.
type Location struct {
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Name       string  `json:"name"`
	Country    *string `json:"country"`
	Region     *string `json:"region"`
	PostalCode *string `json:"postal_code"`
}

// Forecast holds per-day predictions, optionally with hourly resolution.
type Forecast struct {
	Location Location         `json:"location"`
	Provider string           `json:"provider"`
	Daily    []DailyForecast  `json:"daily"`
	Hourly   []HourlyForecast `json:"hourly,omitempty"`
}

// DailyForecast is one calendar day of a forecast, keyed by date string.
type DailyForecast struct {
	Date              string   `json:"date"`
	TemperatureMin    float64  `json:"temperature_min"`
	TemperatureMax    float64  `json:"temperature_max"`
	Humidity          *float64 `json:"humidity"`
	PrecipProbability *float64 `json:"precipitation_probability"`
	PrecipAmount      *float64 `json:"precipitation_amount"`
	WindSpeed         *float64 `json:"wind_speed"`
	WindDirection     *float64 `json:"wind_direction"`
	Description       string   `json:"description"`
	Icon              *string  `json:"icon"`
	Sunrise           *string  `json:"sunrise"`
	Sunset            *string  `json:"sunset"`
}

// HourlyForecast is one hour of a forecast, keyed by datetime string.
type HourlyForecast struct {
	Datetime          string   `json:"datetime"`
	Temperature       float64  `json:"temperature"`
	FeelsLike         *float64 `json:"feels_like"`
	Humidity          *float64 `json:"humidity"`
	PrecipProbability *float64 `json:"precipitation_probability"`
	PrecipAmount      *float64 `json:"precipitation_amount"`
	WindSpeed         *float64 `json:"wind_speed"`
	WindDirection     *float64 `json:"wind_direction"`
	Description       string   `json:"description"`
	Icon              *string  `json:"icon"`
}

// Alert is a weather warning. The dedup identity of an alert is the
// (Title, Start) pair before any provider prefix is applied to the title.
type Alert struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Severity    AlertSeverity `json:"severity"`
	Start       string        `json:"start"`
	End         *string       `json:"end"`
	Regions     []string      `json:"regions"`
}

// AlertSeverity orders alert severities from Minor to Extreme.
type AlertSeverity int

// Alert severity levels, ascending.
const (
	SeverityMinor AlertSeverity = iota
	SeverityModerate
	SeveritySevere
	SeverityExtreme
)

func (s AlertSeverity) String() string {
	switch s {
	case SeverityMinor:
		return "Minor"
	case SeverityModerate:
		return "Moderate"
	case SeveritySevere:
		return "Severe"
	case SeverityExtreme:
		return "Extreme"
	default:
		return "Unknown"
	}
}

// HistoricalData summarizes one past day for a location.
type HistoricalData struct {
	Location       Location `json:"location"`
	Provider       string   `json:"provider"`
	Date           string   `json:"date"`
	TemperatureMin float64  `json:"temperature_min"`
	TemperatureMax float64  `json:"temperature_max"`
	TemperatureAvg float64  `json:"temperature_avg"`
	HumidityAvg    *float64 `json:"humidity_avg"`
	PrecipTotal    *float64 `json:"precipitation_total"`
	WindSpeedAvg   *float64 `json:"wind_speed_avg"`
}
