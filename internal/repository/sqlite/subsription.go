package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/weatherhub/weather-updates-api/internal/metrics"
	"github.com/weatherhub/weather-updates-api/internal/models"
)

var (
	ErrSubscriptionExists = errors.New("subscription already exists")
	ErrTokenNotFound      = errors.New("subscription token not found")
	ErrAlreadyConfirmed   = errors.New("subscription already confirmed")
)

// SubscriptionRepository handles CRUD operations on subscriptions.
// Uniqueness of (email, city) and token is enforced by unique indexes,
// so concurrent subscribe calls cannot race past the duplicate check.
type SubscriptionRepository struct {
	DB  *sql.DB
	log zerolog.Logger
	m   *metrics.Metrics
}

func NewSubscriptionRepository(db *sql.DB, logger zerolog.Logger, m *metrics.Metrics) *SubscriptionRepository {
	logger = logger.With().Str("component", "SubscriptionRepository").Logger()
	return &SubscriptionRepository{DB: db, log: logger, m: m}
}

// Create inserts a new unconfirmed subscription.
// Returns ErrSubscriptionExists when (email, city) is already taken.
func (r *SubscriptionRepository) Create(ctx context.Context, data models.UserSubData, token string) error {
	now := time.Now().UTC()
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO subscriptions
		    (email, city, frequency, confirmed, token, last_sent, created_at, updated_at)
		 VALUES (?, ?, ?, 0, ?, null, ?, ?)`,
		data.Email, data.City, data.Frequency, token, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: subscriptions.email") {
			r.log.Warn().Ctx(ctx).
				Str("email", data.Email).
				Str("city", data.City).
				Msg("subscription already exists, abort create")
			r.m.BusinessErrors.WithLabelValues("subscription_exists", "warning").Inc()
			return ErrSubscriptionExists
		}
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to insert subscription")
		r.m.TechnicalErrors.WithLabelValues("db_insert_error", "critical").Inc()
		return err
	}

	r.log.Info().Ctx(ctx).
		Str("email", data.Email).
		Str("city", data.City).
		Str("frequency", data.Frequency).
		Msg("subscription created")
	return nil
}

// GetByToken returns the subscription owning the token.
func (r *SubscriptionRepository) GetByToken(ctx context.Context, token string) (models.Subscription, error) {
	var sub models.Subscription
	var lastSent sql.NullTime

	err := r.DB.QueryRowContext(ctx,
		`SELECT id, email, city, frequency, confirmed, token, last_sent, created_at, updated_at
		 FROM subscriptions WHERE token = ?`, token,
	).Scan(&sub.ID, &sub.Email, &sub.City, &sub.Frequency, &sub.Confirmed,
		&sub.Token, &lastSent, &sub.CreatedAt, &sub.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Subscription{}, ErrTokenNotFound
	}
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to query subscription by token")
		r.m.TechnicalErrors.WithLabelValues("db_query_error", "critical").Inc()
		return models.Subscription{}, err
	}
	if lastSent.Valid {
		sub.LastSentAt = &lastSent.Time
	}
	return sub, nil
}

// Confirm marks a subscription as confirmed, exactly once.
// Returns ErrTokenNotFound for unknown tokens and ErrAlreadyConfirmed on repeats.
func (r *SubscriptionRepository) Confirm(ctx context.Context, token string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		r.m.TechnicalErrors.WithLabelValues("db_tx_error", "critical").Inc()
		return err
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to rollback confirm tx")
		}
	}()

	var confirmed bool
	err = tx.QueryRowContext(ctx,
		`SELECT confirmed FROM subscriptions WHERE token = ?`, token,
	).Scan(&confirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrTokenNotFound
	}
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to query confirm state")
		r.m.TechnicalErrors.WithLabelValues("db_query_error", "critical").Inc()
		return err
	}
	if confirmed {
		return ErrAlreadyConfirmed
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE subscriptions SET confirmed = 1, updated_at = ? WHERE token = ?`,
		time.Now().UTC(), token,
	); err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to confirm subscription")
		r.m.TechnicalErrors.WithLabelValues("db_update_error", "critical").Inc()
		return err
	}

	if err := tx.Commit(); err != nil {
		r.m.TechnicalErrors.WithLabelValues("db_tx_error", "critical").Inc()
		return err
	}

	r.log.Info().Ctx(ctx).Msg("subscription confirmed")
	return nil
}

// Delete removes the subscription owning the token, invalidating it.
func (r *SubscriptionRepository) Delete(ctx context.Context, token string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM subscriptions WHERE token = ?`, token)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to delete subscription")
		r.m.TechnicalErrors.WithLabelValues("db_delete_error", "critical").Inc()
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		r.m.TechnicalErrors.WithLabelValues("db_rows_error", "critical").Inc()
		return err
	}
	if count == 0 {
		return ErrTokenNotFound
	}

	r.log.Info().Ctx(ctx).Msg("subscription deleted")
	return nil
}

// GetConfirmed returns a snapshot of all confirmed subscriptions.
// Eligibility is decided by the caller, not here.
func (r *SubscriptionRepository) GetConfirmed(ctx context.Context) ([]models.Subscription, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, email, city, frequency, confirmed, token, last_sent, created_at, updated_at
		FROM subscriptions
		WHERE confirmed = 1`,
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).Msg("failed to query confirmed subscriptions")
		r.m.TechnicalErrors.WithLabelValues("db_query_error", "critical").Inc()
		return nil, err
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to close rows after query")
		}
	}(rows)

	var subs []models.Subscription
	for rows.Next() {
		var sub models.Subscription
		var lastSent sql.NullTime

		if err := rows.Scan(&sub.ID, &sub.Email, &sub.City, &sub.Frequency, &sub.Confirmed,
			&sub.Token, &lastSent, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			r.log.Error().Err(err).Ctx(ctx).Msg("failed to scan subscription row")
			r.m.TechnicalErrors.WithLabelValues("db_scan_error", "critical").Inc()
			return nil, err
		}
		if lastSent.Valid {
			sub.LastSentAt = &lastSent.Time
		}
		subs = append(subs, sub)
	}

	return subs, rows.Err()
}

// UpdateLastSent moves last_sent forward to sentAt.
// The guard keeps last_sent monotonic when workers race on the same record.
func (r *SubscriptionRepository) UpdateLastSent(ctx context.Context, subscriptionID int, sentAt time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE subscriptions SET last_sent = ?, updated_at = ?
		 WHERE id = ? AND (last_sent IS NULL OR last_sent < ?)`,
		sentAt, time.Now().UTC(), subscriptionID, sentAt,
	)
	if err != nil {
		r.log.Error().Err(err).Ctx(ctx).
			Int("subscription_id", subscriptionID).
			Msg("failed to update last_sent")
		r.m.TechnicalErrors.WithLabelValues("db_update_error", "critical").Inc()
		return err
	}
	return nil
}
