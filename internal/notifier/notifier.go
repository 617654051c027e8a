package notifier

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/weatherhub/weather-updates-api/internal/metrics"
	"github.com/weatherhub/weather-updates-api/internal/models"
)

const dayHours = 24

type subscriptionRepository interface {
	GetConfirmed(ctx context.Context) ([]models.Subscription, error)
	UpdateLastSent(ctx context.Context, subscriptionID int, sentAt time.Time) error
}

type weatherGetter interface {
	GetByCity(ctx context.Context, city string) (models.WeatherData, error)
}

type emailSender interface {
	SendWeather(toEmail, city string, forecast models.WeatherData, token string) error
}

// Item statuses for one subscription within a cycle.
const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// ItemResult is the outcome of processing one subscription. Failures stay
// inside the item; they never abort the cycle.
type ItemResult struct {
	SubscriptionID int
	Email          string
	City           string
	Status         string
	Err            error
}

// CycleReport aggregates the per-item results of one scheduler run.
type CycleReport struct {
	StartedAt   time.Time
	Duration    time.Duration
	TickDropped bool
	Total       int
	Sent        int
	Skipped     int
	Failed      int
}

// Notifier runs the recurring update cycle: scan confirmed subscriptions,
// pick the due ones, fetch weather and dispatch emails.
type Notifier struct {
	repo           subscriptionRepository
	weatherService weatherGetter
	emailService   emailSender
	logger         zerolog.Logger
	m              *metrics.Metrics

	cron     *cron.Cron
	cronSpec string
	workers  int
	timeout  time.Duration
	cancel   context.CancelFunc

	now     func() time.Time
	running atomic.Bool
}

func New(
	repo subscriptionRepository,
	ws weatherGetter,
	es emailSender,
	logger zerolog.Logger,
	m *metrics.Metrics,
	cronSpec string,
	workers int,
	timeout time.Duration,
) *Notifier {
	logger = logger.With().Str("component", "Notifier").Logger()
	if workers < 1 {
		workers = 1
	}
	return &Notifier{
		repo:           repo,
		weatherService: ws,
		emailService:   es,
		logger:         logger,
		m:              m,
		cron:           cron.New(),
		cronSpec:       cronSpec,
		workers:        workers,
		timeout:        timeout,
		now:            time.Now,
	}
}

// Start schedules the recurring cycle.
func (n *Notifier) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	n.cancel = cancel

	if _, err := n.cron.AddFunc(n.cronSpec, func() { n.RunCycle(ctx) }); err != nil {
		cancel()
		n.logger.Error().Err(err).Str("spec", n.cronSpec).Msg("failed to schedule update cycle")
		return err
	}

	n.cron.Start()
	n.logger.Info().Str("spec", n.cronSpec).Msg("weather notifier started")
	return nil
}

// Stop cancels scheduling and waits for an in-flight cycle to finish.
func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	stopCtx := n.cron.Stop()
	<-stopCtx.Done()
	n.logger.Info().Msg("weather notifier stopped")
}

// RunCycle executes one scan-and-dispatch pass. Only one cycle may be in
// flight; a tick arriving while one runs is dropped, not queued — the next
// tick catches up because eligibility is computed from last_sent.
func (n *Notifier) RunCycle(ctx context.Context) CycleReport {
	if !n.running.CompareAndSwap(false, true) {
		n.logger.Warn().Msg("previous cycle still running, dropping tick")
		n.m.CycleRunsSkipped.Inc()
		return CycleReport{TickDropped: true}
	}
	defer n.running.Store(false)

	start := n.now()
	n.m.CycleRuns.Inc()

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	subs, err := n.repo.GetConfirmed(ctx)
	if err != nil {
		n.logger.Error().Err(err).Msg("failed to load confirmed subscriptions, aborting cycle")
		n.m.TechnicalErrors.WithLabelValues("fetch_confirmed_subs", "critical").Inc()
		return CycleReport{StartedAt: start, Duration: time.Since(start)}
	}

	results := make(chan ItemResult, len(subs))
	sem := make(chan struct{}, n.workers)
	var wg sync.WaitGroup

	for _, sub := range subs {
		wg.Add(1)
		go func(sub models.Subscription) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results <- n.ProcessOne(ctx, sub)
		}(sub)
	}
	wg.Wait()
	close(results)

	report := CycleReport{StartedAt: start, Total: len(subs)}
	for res := range results {
		switch res.Status {
		case StatusSent:
			report.Sent++
		case StatusSkipped:
			report.Skipped++
		case StatusFailed:
			report.Failed++
		}
		n.m.CycleItems.WithLabelValues(res.Status).Inc()
	}
	report.Duration = time.Since(start)
	n.m.CycleDuration.Observe(report.Duration.Seconds())

	n.logger.Info().
		Int("total", report.Total).
		Int("sent", report.Sent).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("duration", report.Duration).
		Msg("update cycle completed")
	return report
}

// ProcessOne handles a single subscription in isolation.
func (n *Notifier) ProcessOne(ctx context.Context, sub models.Subscription) ItemResult {
	res := ItemResult{SubscriptionID: sub.ID, Email: sub.Email, City: sub.City}
	now := n.now()

	if !n.Eligible(sub, now) {
		res.Status = StatusSkipped
		return res
	}

	forecast, err := n.weatherService.GetByCity(ctx, sub.City)
	if err != nil {
		n.logger.Error().Err(err).
			Int("subscription_id", sub.ID).
			Str("city", sub.City).
			Msg("weather fetch failed")
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	if err := n.emailService.SendWeather(sub.Email, sub.City, forecast, sub.Token); err != nil {
		// last_sent stays untouched so the next cycle retries.
		n.logger.Error().Err(err).
			Int("subscription_id", sub.ID).
			Str("email", sub.Email).
			Msg("update email failed")
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	if err := n.repo.UpdateLastSent(ctx, sub.ID, now); err != nil {
		res.Status = StatusFailed
		res.Err = err
		return res
	}

	res.Status = StatusSent
	return res
}

// Eligible reports whether the subscription is due at the given time.
// A never-sent subscription counts from the epoch and is always due.
func (n *Notifier) Eligible(sub models.Subscription, now time.Time) bool {
	last := time.Time{}
	if sub.LastSentAt != nil {
		last = *sub.LastSentAt
	}
	elapsed := now.Sub(last)

	switch sub.Frequency {
	case models.FreqHourly:
		return elapsed >= time.Hour
	case models.FreqDaily:
		return elapsed >= dayHours*time.Hour
	default:
		return false
	}
}

// WithClock replaces the time source, for tests.
func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	n.now = now
	return n
}
