package weather

import "errors"

// Weather errors. Adapters map transport and deserialization failures onto
// these sentinels (wrapped with detail via fmt.Errorf and %w) so callers can
// branch with errors.Is regardless of which backend produced the failure.
var (
	ErrNetwork       = errors.New("weather provider network error")
	ErrParse         = errors.New("weather provider response parse error")
	ErrNotFound      = errors.New("weather data not found")
	ErrRateLimited   = errors.New("weather provider rate limit exceeded")
	ErrInvalidAPIKey = errors.New("invalid weather provider API key")
	ErrConfiguration = errors.New("weather provider configuration error")
	ErrDatabase      = errors.New("weather provider database error")
)
