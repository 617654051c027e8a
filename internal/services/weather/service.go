package weather

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/weatherhub/weather-updates-api/internal/models"
)

type client interface {
	Fetch(ctx context.Context, city string) (models.WeatherData, error)
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ServiceProvider tries each configured client in order and returns
// the first successful result.
type ServiceProvider struct {
	logger  zerolog.Logger
	clients []client
}

func NewService(logger zerolog.Logger, clients ...client) *ServiceProvider {
	logger = logger.With().Str("component", "WeatherService").Logger()
	return &ServiceProvider{clients: clients, logger: logger}
}

func (s *ServiceProvider) GetByCity(ctx context.Context, city string) (models.WeatherData, error) {
	var lastErr error
	for _, cl := range s.clients {
		data, err := cl.Fetch(ctx, city)
		if err != nil {
			s.logger.Error().Ctx(ctx).
				Str("city", city).
				Err(err).
				Msg("weather fetch failed, trying next client")
			lastErr = err
			continue
		}
		return data, nil
	}
	if lastErr == nil {
		lastErr = ErrNotConfigured
	}
	return models.WeatherData{}, fmt.Errorf("all weather clients failed: %w", lastErr)
}
