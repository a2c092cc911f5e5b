// Package homebrew exposes self-hosted sensor stations as a weather
// provider. Stations post reports into Postgres and the provider aggregates
// them into observations, air quality alerts, and historical summaries.
package homebrew

// Report is a single sensor reading from a station. Every measurement is
// optional; a station reports only the channels it has hardware for.
type Report struct {
	ID            string   `json:"oid"`
	DeviceType    string   `json:"device_type"`
	Temperature   *float64 `json:"temperature"`
	Humidity      *float64 `json:"humidity"`
	Precipitation *float64 `json:"precipitation"`
	PM10          *float64 `json:"pm10"`
	PM25          *float64 `json:"pm25"`
	CO2           *float64 `json:"co2"`
	TVOC          *float64 `json:"tvoc"`
	Timestamp     int64    `json:"timestamp"`
}
