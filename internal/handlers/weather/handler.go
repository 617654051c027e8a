package weather

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/weatherhub/weather-updates-api/internal/models"
	serviceweather "github.com/weatherhub/weather-updates-api/internal/services/weather"
)

const timeoutDuration = 10 * time.Second

type weatherGetterService interface {
	GetByCity(ctx context.Context, city string) (models.WeatherData, error)
}

type Handler struct {
	service weatherGetterService
	log     zerolog.Logger
}

func NewHandler(svc weatherGetterService, logger zerolog.Logger) *Handler {
	logger = logger.With().Str("component", "WeatherHandler").Logger()
	return &Handler{service: svc, log: logger}
}

// GetWeather returns current conditions for the city query parameter.
func (h *Handler) GetWeather(c *gin.Context) {
	city := c.Query("city")
	if city == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "City parameter is required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
	defer cancel()

	data, err := h.service.GetByCity(ctx, city)
	if err != nil {
		if errors.Is(err, serviceweather.ErrCityNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "City not found"})
			return
		}
		h.log.Error().Err(err).Str("city", city).Msg("weather fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch weather data"})
		return
	}

	c.JSON(http.StatusOK, data)
}
