package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ComboName is the provider name reported by a Combo.
const ComboName = "Combo"

// DefaultCacheDuration is the cache TTL used when none is configured.
const DefaultCacheDuration = 300 * time.Second

// Combo fans out to a weighted list of providers, combines their results,
// and caches the combined output. It satisfies Provider itself so combos can
// be consumed anywhere a single backend can.
//
// The provider list and weight map are immutable after construction and safe
// to share across concurrent callers; the cache is the only mutable shared
// state. Fan-out within one call is strictly sequential in insertion order,
// which keeps the weighted-average bookkeeping race-free at the cost of
// aggregation latency being the sum of per-provider latency.
type Combo struct {
	providers       []Provider
	weights         map[string]float64
	cache           *Cache
	cacheDuration   time.Duration
	fallbackEnabled bool
	logger          zerolog.Logger
}

// NewCombo creates a combo with no providers, a 300 second cache TTL, and
// fallback enabled.
func NewCombo() *Combo {
	return &Combo{
		weights:         make(map[string]float64),
		cache:           NewCache(),
		cacheDuration:   DefaultCacheDuration,
		fallbackEnabled: true,
		logger:          zerolog.Nop(),
	}
}

// AddProvider appends a provider and records its weight under the provider's
// name. If two providers report the same name the second weight silently
// overwrites the first; this is a known sharp edge kept for compatibility.
func (c *Combo) AddProvider(p Provider, weight float64) *Combo {
	c.providers = append(c.providers, p)
	c.weights[p.Name()] = weight
	return c
}

// SetCacheDuration sets the TTL applied to cache reads.
func (c *Combo) SetCacheDuration(d time.Duration) *Combo {
	c.cacheDuration = d
	return c
}

// SetFallbackEnabled controls whether fan-out continues past the first
// successful provider. With fallback disabled the combo degenerates to
// "first provider that answers" and weights only matter when earlier
// providers fail.
func (c *Combo) SetFallbackEnabled(enabled bool) *Combo {
	c.fallbackEnabled = enabled
	return c
}

// SetLogger sets the logger used for absorbed provider failures.
func (c *Combo) SetLogger(logger zerolog.Logger) *Combo {
	c.logger = logger
	return c
}

// weight returns the configured weight for a provider name, defaulting to 1.
func (c *Combo) weight(name string) float64 {
	if w, ok := c.weights[name]; ok {
		return w
	}
	return 1.0
}

func (c *Combo) cachedInto(key string, out any) bool {
	raw, ok := c.cache.Get(key, c.cacheDuration)
	if !ok {
		return false
	}
	// A value that no longer deserializes is treated as a miss.
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn().Str("key", key).Err(err).Msg("discarding undecodable cache entry")
		return false
	}
	return true
}

// storeInCache serializes and stores best-effort; failures are absorbed.
func (c *Combo) storeInCache(key string, value any) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn().Str("key", key).Err(err).Msg("skipping cache write")
		return
	}
	c.cache.Set(key, raw)
}

// GetCurrentWeather returns the weighted combination of every provider's
// current observation, served from cache within the TTL window. Individual
// provider failures are logged and absorbed; the caller sees ErrNotFound
// only when no provider produced a result.
func (c *Combo) GetCurrentWeather(ctx context.Context, location string) (*Weather, error) {
	cacheKey := fmt.Sprintf("current:%s", location)

	var cached Weather
	if c.cachedInto(cacheKey, &cached) {
		return &cached, nil
	}

	var results []providerResult[*Weather]
	for _, p := range c.providers {
		name := p.Name()
		data, err := p.GetCurrentWeather(ctx, location)
		if err != nil {
			c.logger.Error().Str("provider", name).Str("location", location).Err(err).
				Msg("provider failed")
			continue
		}
		results = append(results, providerResult[*Weather]{name: name, data: data})
		if !c.fallbackEnabled {
			break
		}
	}

	combined, err := c.averageWeather(results)
	if err != nil {
		return nil, err
	}

	c.storeInCache(cacheKey, combined)
	return combined, nil
}

// GetForecast returns the date-bucketed combination of every forecast-capable
// provider's forecast.
func (c *Combo) GetForecast(ctx context.Context, location string, days int) (*Forecast, error) {
	cacheKey := fmt.Sprintf("forecast:%s:%d", location, days)

	var cached Forecast
	if c.cachedInto(cacheKey, &cached) {
		return &cached, nil
	}

	var results []providerResult[*Forecast]
	for _, p := range c.providers {
		if !p.SupportsFeature(FeatureForecast) {
			continue
		}
		name := p.Name()
		data, err := p.GetForecast(ctx, location, days)
		if err != nil {
			c.logger.Error().Str("provider", name).Str("location", location).Err(err).
				Msg("provider failed")
			continue
		}
		results = append(results, providerResult[*Forecast]{name: name, data: data})
		if !c.fallbackEnabled {
			break
		}
	}

	combined, err := c.combineForecasts(results)
	if err != nil {
		return nil, err
	}

	c.storeInCache(cacheKey, combined)
	return combined, nil
}

// GetAlerts merges alerts from every alert-capable provider. All capable
// providers are always queried; the fallback flag is not consulted here
// because alerts from different sources are complementary, not redundant.
// An empty result is not an error.
func (c *Combo) GetAlerts(ctx context.Context, location string) ([]Alert, error) {
	cacheKey := fmt.Sprintf("alerts:%s", location)

	var cached []Alert
	if c.cachedInto(cacheKey, &cached) {
		return cached, nil
	}

	var results []providerResult[[]Alert]
	for _, p := range c.providers {
		if !p.SupportsFeature(FeatureAlerts) {
			continue
		}
		name := p.Name()
		data, err := p.GetAlerts(ctx, location)
		if err != nil {
			c.logger.Error().Str("provider", name).Str("location", location).Err(err).
				Msg("provider failed")
			continue
		}
		results = append(results, providerResult[[]Alert]{name: name, data: data})
	}

	alerts := mergeAlerts(results)

	c.storeInCache(cacheKey, alerts)
	return alerts, nil
}

// GetHistorical returns the first successful historical result verbatim; no
// combination is applied and nothing is cached.
func (c *Combo) GetHistorical(ctx context.Context, location, date string) (*HistoricalData, error) {
	var results []providerResult[*HistoricalData]
	for _, p := range c.providers {
		if !p.SupportsFeature(FeatureHistoricalData) {
			continue
		}
		name := p.Name()
		data, err := p.GetHistorical(ctx, location, date)
		if err != nil {
			c.logger.Error().Str("provider", name).Str("location", location).Str("date", date).
				Err(err).Msg("provider failed")
			continue
		}
		results = append(results, providerResult[*HistoricalData]{name: name, data: data})
		if !c.fallbackEnabled {
			break
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no historical data available", ErrNotFound)
	}
	return results[0].data, nil
}

// Name returns "Combo".
func (c *Combo) Name() string {
	return ComboName
}

// SupportsFeature reports true iff any configured provider supports it.
func (c *Combo) SupportsFeature(feature Feature) bool {
	for _, p := range c.providers {
		if p.SupportsFeature(feature) {
			return true
		}
	}
	return false
}

// providerResult pairs one provider's name with its successful result.
type providerResult[T any] struct {
	name string
	data T
}
