package subscription

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"

	"github.com/rs/zerolog"

	"github.com/weatherhub/weather-updates-api/internal/metrics"
	"github.com/weatherhub/weather-updates-api/internal/models"
)

const tokenBytes = 32

var ErrInvalidInput = errors.New("invalid subscription input")

// TokenSource produces the credential stored with each subscription.
// Injectable so tests can supply deterministic tokens.
type TokenSource func() (string, error)

// NewToken returns hex of 32 bytes from crypto/rand.
func NewToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

type Repository interface {
	Create(ctx context.Context, data models.UserSubData, token string) error
	Confirm(ctx context.Context, token string) error
	Delete(ctx context.Context, token string) error
}

type ConfirmationSender interface {
	SendConfirmation(toEmail, token string) error
}

// Service orchestrates the subscription lifecycle against the store
// and the confirmation mailer.
type Service struct {
	repo     Repository
	emails   ConfirmationSender
	newToken TokenSource
	log      zerolog.Logger
	m        *metrics.Metrics
}

func NewService(
	repo Repository,
	emails ConfirmationSender,
	newToken TokenSource,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *Service {
	logger = logger.With().Str("component", "SubscriptionService").Logger()
	return &Service{repo: repo, emails: emails, newToken: newToken, log: logger, m: m}
}

// Subscribe persists an unconfirmed subscription and mails the confirm link.
// A failed confirmation send does not roll the record back; the token is
// still returned and the failure only logged.
func (s *Service) Subscribe(ctx context.Context, data models.UserSubData) (string, error) {
	if err := validate(data); err != nil {
		return "", err
	}

	token, err := s.newToken()
	if err != nil {
		return "", err
	}

	if err := s.repo.Create(ctx, data, token); err != nil {
		return "", err
	}
	s.m.SubscriptionsCreated.WithLabelValues(data.Frequency).Inc()

	if err := s.emails.SendConfirmation(data.Email, token); err != nil {
		s.log.Warn().Ctx(ctx).
			Str("email", data.Email).
			Err(err).
			Msg("confirmation email failed, subscription kept")
	}

	return token, nil
}

func (s *Service) Confirm(ctx context.Context, token string) error {
	if err := s.repo.Confirm(ctx, token); err != nil {
		return err
	}
	s.m.SubscriptionsConfirmed.Inc()
	return nil
}

func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	if err := s.repo.Delete(ctx, token); err != nil {
		return err
	}
	s.m.SubscriptionsCanceled.Inc()
	return nil
}

func validate(data models.UserSubData) error {
	if data.Email == "" || data.City == "" || data.Frequency == "" {
		return fmt.Errorf("%w: email, city and frequency are required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(data.Email); err != nil {
		return fmt.Errorf("%w: malformed email address", ErrInvalidInput)
	}
	if data.Frequency != models.FreqHourly && data.Frequency != models.FreqDaily {
		return fmt.Errorf("%w: frequency must be hourly or daily", ErrInvalidInput)
	}
	return nil
}
