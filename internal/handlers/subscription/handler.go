package subscription

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/weatherhub/weather-updates-api/internal/models"
	"github.com/weatherhub/weather-updates-api/internal/repository/sqlite"
	subservice "github.com/weatherhub/weather-updates-api/internal/services/subscription"
)

const timeoutDuration = 10 * time.Second

type subscriber interface {
	Subscribe(ctx context.Context, data models.UserSubData) (string, error)
	Confirm(ctx context.Context, token string) error
	Unsubscribe(ctx context.Context, token string) error
}

type Handler struct {
	service subscriber
	log     zerolog.Logger
}

func NewHandler(svc subscriber, logger zerolog.Logger) *Handler {
	logger = logger.With().Str("component", "SubscriptionHandler").Logger()
	return &Handler{service: svc, log: logger}
}

// Subscribe accepts form-encoded email, city and frequency, creates an
// unconfirmed subscription and returns its token.
func (h *Handler) Subscribe(c *gin.Context) {
	var userData models.UserSubData
	if err := c.ShouldBind(&userData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, city, and frequency are required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
	defer cancel()

	token, err := h.service.Subscribe(ctx, userData)
	if err != nil {
		switch {
		case errors.Is(err, sqlite.ErrSubscriptionExists):
			c.JSON(http.StatusConflict, gin.H{"error": "Email already subscribed for this city"})
		case errors.Is(err, subservice.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		default:
			h.log.Error().Err(err).Msg("subscribe failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Subscription successful. Please check your email to confirm.",
		"token":   token,
	})
}

// Confirm activates a subscription with the token from the confirmation email.
func (h *Handler) Confirm(c *gin.Context) {
	token := c.Param("token")

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
	defer cancel()

	if err := h.service.Confirm(ctx, token); err != nil {
		switch {
		case errors.Is(err, sqlite.ErrTokenNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
		case errors.Is(err, sqlite.ErrAlreadyConfirmed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Subscription already confirmed"})
		default:
			h.log.Error().Err(err).Msg("confirm failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm subscription"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Subscription confirmed successfully"})
}

// Unsubscribe deletes the subscription owning the token.
func (h *Handler) Unsubscribe(c *gin.Context) {
	token := c.Param("token")

	ctx, cancel := context.WithTimeout(c.Request.Context(), timeoutDuration)
	defer cancel()

	if err := h.service.Unsubscribe(ctx, token); err != nil {
		switch {
		case errors.Is(err, sqlite.ErrTokenNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Token not found"})
		default:
			h.log.Error().Err(err).Msg("unsubscribe failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unsubscribe"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unsubscribed successfully"})
}
