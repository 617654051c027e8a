package weather

import "errors"

var (
	ErrNotConfigured = errors.New("weather provider is not configured")
	ErrTimeout       = errors.New("weather provider request timed out")
	ErrUnauthorized  = errors.New("weather provider rejected the API key")
	ErrCityNotFound  = errors.New("city not found")
	ErrRateLimited   = errors.New("weather provider rate limit exceeded")
	ErrUpstream      = errors.New("weather provider request failed")
	ErrBadPayload    = errors.New("weather provider returned invalid data")
)
