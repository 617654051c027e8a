package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/weatherhub/weather-updates-api/internal/models"
)

const redactedKey = "REDACTED"

// ClientWeatherAPI fetches current conditions from weatherapi.com.
type ClientWeatherAPI struct {
	apiKey string
	apiURL string
	client HTTPClient
	log    zerolog.Logger
}

func NewClientWeatherAPI(apiKey, apiURL string, httpClient HTTPClient, logger zerolog.Logger) *ClientWeatherAPI {
	logger = logger.With().Str("component", "ClientWeatherAPI").Logger()
	return &ClientWeatherAPI{apiKey: apiKey, apiURL: apiURL, client: httpClient, log: logger}
}

func (s *ClientWeatherAPI) Fetch(ctx context.Context, city string) (models.WeatherData, error) {
	if s.apiKey == "" || s.apiURL == "" {
		return models.WeatherData{}, ErrNotConfigured
	}

	query := url.Values{}
	query.Set("key", s.apiKey)
	query.Set("q", city)
	query.Set("aqi", "no")
	reqURL := s.apiURL + "/current.json?" + query.Encode()

	// The API key travels in the query string; never log the raw URL.
	s.log.Info().Ctx(ctx).
		Str("url", s.redact(reqURL)).
		Str("city", city).
		Msg("requesting current weather")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return models.WeatherData{}, fmt.Errorf("%w: %s", ErrUpstream, s.redact(err.Error()))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			s.log.Error().Ctx(ctx).Str("city", city).Msg("weather request timed out")
			return models.WeatherData{}, ErrTimeout
		}
		s.log.Error().Ctx(ctx).Str("city", city).Str("cause", s.redact(err.Error())).
			Msg("weather request failed")
		return models.WeatherData{}, fmt.Errorf("%w: %s", ErrUpstream, s.redact(err.Error()))
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			s.log.Error().Err(err).Msg("failed to close response body")
		}
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		s.log.Error().Ctx(ctx).
			Int("status", resp.StatusCode).
			Str("url", s.redact(reqURL)).
			Msg("weather provider returned an error status")
		return models.WeatherData{}, s.mapStatus(resp.StatusCode)
	}

	var raw struct {
		Current *struct {
			TempC     float64 `json:"temp_c"`
			Humidity  float64 `json:"humidity"`
			Condition struct {
				Text string `json:"text"`
			} `json:"condition"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return models.WeatherData{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if raw.Current == nil {
		return models.WeatherData{}, fmt.Errorf("%w: missing current block", ErrBadPayload)
	}

	return models.WeatherData{
		Temperature: raw.Current.TempC,
		Humidity:    raw.Current.Humidity,
		Description: raw.Current.Condition.Text,
	}, nil
}

func (s *ClientWeatherAPI) mapStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrCityNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: status %d", ErrUpstream, status)
	}
}

func (s *ClientWeatherAPI) redact(v string) string {
	return strings.ReplaceAll(v, s.apiKey, redactedKey)
}
