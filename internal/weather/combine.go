package weather

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// weightedMean accumulates a weighted average for one field. Each optional
// field gets its own accumulator so providers that did not report the field
// do not dilute its denominator.
type weightedMean struct {
	sum    float64
	weight float64
}

func (m *weightedMean) add(v, w float64) {
	m.sum += v * w
	m.weight += w
}

func (m *weightedMean) addOptional(v *float64, w float64) {
	if v != nil {
		m.add(*v, w)
	}
}

// value returns the mean, or nil when no provider contributed the field.
func (m *weightedMean) value() *float64 {
	if m.weight <= 0 {
		return nil
	}
	v := m.sum / m.weight
	return &v
}

// averageWeather combines per-provider observations into one Weather.
//
// total weight is the sum of the weights of providers that produced a
// result, so failed providers do not dilute the average. Temperature is
// mandatory on every Weather and always divides by the full total weight;
// every optional field divides by the summed weight of exactly the providers
// that reported it.
func (c *Combo) averageWeather(results []providerResult[*Weather]) (*Weather, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no weather data available from any provider", ErrNotFound)
	}

	var totalWeight float64
	for _, r := range results {
		totalWeight += c.weight(r.name)
	}

	var (
		tempSum       float64
		feelsLike     weightedMean
		humidity      weightedMean
		pressure      weightedMean
		windSpeed     weightedMean
		windDirection weightedMean
		precipitation weightedMean
		visibility    weightedMean
		uvIndex       weightedMean
	)

	descriptions := make([]string, 0, len(results))
	location := results[0].data.Location

	for _, r := range results {
		w := c.weight(r.name)
		obs := r.data

		tempSum += obs.Temperature * w
		feelsLike.addOptional(obs.FeelsLike, w)
		humidity.addOptional(obs.Humidity, w)
		pressure.addOptional(obs.Pressure, w)
		windSpeed.addOptional(obs.WindSpeed, w)
		windDirection.addOptional(obs.WindDirection, w)
		precipitation.addOptional(obs.Precipitation, w)
		visibility.addOptional(obs.Visibility, w)
		uvIndex.addOptional(obs.UVIndex, w)

		descriptions = append(descriptions, fmt.Sprintf("%s: %s", r.name, obs.Description))
	}

	return &Weather{
		Temperature:   tempSum / totalWeight,
		FeelsLike:     feelsLike.value(),
		Humidity:      humidity.value(),
		Pressure:      pressure.value(),
		WindSpeed:     windSpeed.value(),
		WindDirection: windDirection.value(),
		Description:   "Combined: " + strings.Join(descriptions, " | "),
		Icon:          nil, // no icon-combination rule exists
		Precipitation: precipitation.value(),
		Visibility:    visibility.value(),
		UVIndex:       uvIndex.value(),
		Provider:      ComboName,
		Location:      location,
		Timestamp:     time.Now().Unix(),
	}, nil
}

// combineForecasts merges forecasts by bucketing daily entries on their date
// string and hourly entries on their datetime string, then weighted-averaging
// each bucket. Only temperature is averaged in the hourly path; the other
// hourly fields are not combined.
func (c *Combo) combineForecasts(results []providerResult[*Forecast]) (*Forecast, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no forecast data available from any provider", ErrNotFound)
	}

	dailyBuckets := make(map[string][]providerResult[DailyForecast])
	hourlyBuckets := make(map[string][]providerResult[HourlyForecast])
	location := results[0].data.Location

	for _, r := range results {
		for _, day := range r.data.Daily {
			dailyBuckets[day.Date] = append(dailyBuckets[day.Date],
				providerResult[DailyForecast]{name: r.name, data: day})
		}
		for _, hour := range r.data.Hourly {
			hourlyBuckets[hour.Datetime] = append(hourlyBuckets[hour.Datetime],
				providerResult[HourlyForecast]{name: r.name, data: hour})
		}
	}

	daily := make([]DailyForecast, 0, len(dailyBuckets))
	for date, bucket := range dailyBuckets {
		daily = append(daily, c.combineDaily(date, bucket))
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	var hourly []HourlyForecast
	if len(hourlyBuckets) > 0 {
		hourly = make([]HourlyForecast, 0, len(hourlyBuckets))
		for datetime, bucket := range hourlyBuckets {
			hourly = append(hourly, c.combineHourly(datetime, bucket))
		}
		sort.Slice(hourly, func(i, j int) bool { return hourly[i].Datetime < hourly[j].Datetime })
	}

	return &Forecast{
		Location: location,
		Provider: ComboName,
		Daily:    daily,
		Hourly:   hourly,
	}, nil
}

// combineDaily averages one date bucket. Min/max temperature are mandatory
// fields and divide by the bucket's full weight; sunrise and sunset are
// strings, so the first non-nil value in bucket order wins.
func (c *Combo) combineDaily(date string, bucket []providerResult[DailyForecast]) DailyForecast {
	var totalWeight float64
	for _, r := range bucket {
		totalWeight += c.weight(r.name)
	}

	combined := DailyForecast{Date: date, Description: "Combined forecast"}

	var (
		minSum, maxSum float64
		humidity       weightedMean
		precipProb     weightedMean
		precipAmount   weightedMean
		windSpeed      weightedMean
		windDirection  weightedMean
	)

	for _, r := range bucket {
		w := c.weight(r.name)
		day := r.data

		minSum += day.TemperatureMin * w
		maxSum += day.TemperatureMax * w
		humidity.addOptional(day.Humidity, w)
		precipProb.addOptional(day.PrecipProbability, w)
		precipAmount.addOptional(day.PrecipAmount, w)
		windSpeed.addOptional(day.WindSpeed, w)
		windDirection.addOptional(day.WindDirection, w)

		if combined.Sunrise == nil {
			combined.Sunrise = day.Sunrise
		}
		if combined.Sunset == nil {
			combined.Sunset = day.Sunset
		}
	}

	combined.TemperatureMin = minSum / totalWeight
	combined.TemperatureMax = maxSum / totalWeight
	combined.Humidity = humidity.value()
	combined.PrecipProbability = precipProb.value()
	combined.PrecipAmount = precipAmount.value()
	combined.WindSpeed = windSpeed.value()
	combined.WindDirection = windDirection.value()

	return combined
}

func (c *Combo) combineHourly(datetime string, bucket []providerResult[HourlyForecast]) HourlyForecast {
	var totalWeight, tempSum float64
	for _, r := range bucket {
		w := c.weight(r.name)
		totalWeight += w
		tempSum += r.data.Temperature * w
	}

	return HourlyForecast{
		Datetime:    datetime,
		Temperature: tempSum / totalWeight,
		Description: "Combined",
	}
}

// mergeAlerts deduplicates alerts on their (title, start) pair, keeping the
// first-encountered provider's copy with its title prefixed by that
// provider's name, and sorts the result by severity descending.
func mergeAlerts(results []providerResult[[]Alert]) []Alert {
	merged := []Alert{}
	seen := make(map[string]struct{})

	for _, r := range results {
		for _, alert := range r.data {
			key := fmt.Sprintf("%s-%s", alert.Title, alert.Start)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			alert.Title = fmt.Sprintf("[%s] %s", r.name, alert.Title)
			merged = append(merged, alert)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Severity > merged[j].Severity
	})
	return merged
}
