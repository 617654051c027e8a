package notifier_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherhub/weather-updates-api/internal/metrics"
	"github.com/weatherhub/weather-updates-api/internal/models"
	"github.com/weatherhub/weather-updates-api/internal/notifier"
)

type mockRepo struct {
	mu         sync.Mutex
	subs       []models.Subscription
	getErr     error
	updErr     error
	updatedIDs []int
	updatedAt  []time.Time
}

func (m *mockRepo) GetConfirmed(_ context.Context) ([]models.Subscription, error) {
	return m.subs, m.getErr
}

func (m *mockRepo) UpdateLastSent(_ context.Context, subscriptionID int, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updErr != nil {
		return m.updErr
	}
	m.updatedIDs = append(m.updatedIDs, subscriptionID)
	m.updatedAt = append(m.updatedAt, sentAt)
	return nil
}

type mockWeatherSvc struct {
	mu         sync.Mutex
	data       models.WeatherData
	errByCity  map[string]error
	calledWith []string
	block      chan struct{}
	started    chan struct{}
}

func (m *mockWeatherSvc) GetByCity(_ context.Context, city string) (models.WeatherData, error) {
	if m.started != nil {
		m.started <- struct{}{}
	}
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	m.calledWith = append(m.calledWith, city)
	m.mu.Unlock()
	if err := m.errByCity[city]; err != nil {
		return models.WeatherData{}, err
	}
	return m.data, nil
}

type mockEmailSender struct {
	mu         sync.Mutex
	err        error
	sentTo     []string
	sentCity   []string
	sentTokens []string
}

func (m *mockEmailSender) SendWeather(to, city string, _ models.WeatherData, token string) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentTo = append(m.sentTo, to)
	m.sentCity = append(m.sentCity, city)
	m.sentTokens = append(m.sentTokens, token)
	return nil
}

func newTestNotifier(repo *mockRepo, w *mockWeatherSvc, e *mockEmailSender) *notifier.Notifier {
	return notifier.New(repo, w, e, zerolog.Nop(), metrics.New("test"),
		"0 * * * *", 4, time.Minute)
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestEligible(t *testing.T) {
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		sub  models.Subscription
		want bool
	}{
		{"hourly never sent", models.Subscription{Frequency: "hourly"}, true},
		{"daily never sent", models.Subscription{Frequency: "daily"}, true},
		{"hourly 59 minutes ago", models.Subscription{Frequency: "hourly",
			LastSentAt: ptrTime(now.Add(-59 * time.Minute))}, false},
		{"hourly 61 minutes ago", models.Subscription{Frequency: "hourly",
			LastSentAt: ptrTime(now.Add(-61 * time.Minute))}, true},
		{"hourly exactly one hour", models.Subscription{Frequency: "hourly",
			LastSentAt: ptrTime(now.Add(-time.Hour))}, true},
		{"daily 23 hours ago", models.Subscription{Frequency: "daily",
			LastSentAt: ptrTime(now.Add(-23 * time.Hour))}, false},
		{"daily 25 hours ago", models.Subscription{Frequency: "daily",
			LastSentAt: ptrTime(now.Add(-25 * time.Hour))}, true},
		{"unknown frequency", models.Subscription{Frequency: "weekly",
			LastSentAt: ptrTime(now.Add(-100 * time.Hour))}, false},
	}

	n := newTestNotifier(&mockRepo{}, &mockWeatherSvc{}, &mockEmailSender{})
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, n.Eligible(tc.sub, now))
		})
	}
}

func TestRunCycleIsolatesFailures(t *testing.T) {
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)

	repo := &mockRepo{subs: []models.Subscription{
		{ID: 1, Email: "a@example.com", City: "Failtown", Frequency: "hourly", Token: "tok-a"},
		{ID: 2, Email: "b@example.com", City: "Kyiv", Frequency: "hourly",
			LastSentAt: ptrTime(now.Add(-30 * time.Minute))},
		{ID: 3, Email: "c@example.com", City: "Lviv", Frequency: "hourly", Token: "tok-c"},
	}}
	weatherSvc := &mockWeatherSvc{
		data:      models.WeatherData{Temperature: 21.5, Humidity: 40, Description: "Sunny"},
		errByCity: map[string]error{"Failtown": errors.New("api down")},
	}
	emails := &mockEmailSender{}

	n := newTestNotifier(repo, weatherSvc, emails).WithClock(func() time.Time { return now })

	report := n.RunCycle(context.Background())

	assert.False(t, report.TickDropped)
	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Failed)

	// only the successful dispatch moved last_sent
	assert.Equal(t, []int{3}, repo.updatedIDs)
	assert.Equal(t, []time.Time{now}, repo.updatedAt)

	// the failing fetch for Failtown did not stop Lviv from being evaluated
	assert.Contains(t, weatherSvc.calledWith, "Lviv")
	assert.NotContains(t, weatherSvc.calledWith, "Kyiv")

	assert.Equal(t, []string{"c@example.com"}, emails.sentTo)
	assert.Equal(t, []string{"tok-c"}, emails.sentTokens)
}

func TestRunCycleDropsOverlappingTick(t *testing.T) {
	repo := &mockRepo{subs: []models.Subscription{
		{ID: 1, Email: "a@example.com", City: "Kyiv", Frequency: "hourly"},
	}}
	weatherSvc := &mockWeatherSvc{
		block:   make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	n := newTestNotifier(repo, weatherSvc, &mockEmailSender{})

	done := make(chan notifier.CycleReport, 1)
	go func() { done <- n.RunCycle(context.Background()) }()

	// wait until the first cycle is inside a weather fetch
	<-weatherSvc.started

	second := n.RunCycle(context.Background())
	assert.True(t, second.TickDropped)

	close(weatherSvc.block)
	first := <-done
	assert.False(t, first.TickDropped)
	assert.Equal(t, 1, first.Total)
}

func TestRunCycleAbortsWhenScanFails(t *testing.T) {
	repo := &mockRepo{getErr: errors.New("db gone")}
	n := newTestNotifier(repo, &mockWeatherSvc{}, &mockEmailSender{})

	report := n.RunCycle(context.Background())
	assert.Equal(t, 0, report.Total)
	assert.Empty(t, repo.updatedIDs)
}

func TestProcessOne(t *testing.T) {
	now := time.Date(2025, 6, 18, 12, 0, 0, 0, time.UTC)
	sub := models.Subscription{
		ID: 42, Email: "user@example.com", City: "Kyiv", Frequency: "hourly", Token: "tok-42",
	}

	t.Run("success updates last sent", func(t *testing.T) {
		repo := &mockRepo{}
		emails := &mockEmailSender{}
		n := newTestNotifier(repo, &mockWeatherSvc{
			data: models.WeatherData{Temperature: 10, Humidity: 80, Description: "Rain"},
		}, emails).WithClock(func() time.Time { return now })

		res := n.ProcessOne(context.Background(), sub)
		require.Equal(t, notifier.StatusSent, res.Status)
		assert.Equal(t, []int{42}, repo.updatedIDs)
		assert.Equal(t, []string{"tok-42"}, emails.sentTokens)
	})

	t.Run("email failure keeps last sent untouched", func(t *testing.T) {
		repo := &mockRepo{}
		n := newTestNotifier(repo, &mockWeatherSvc{},
			&mockEmailSender{err: errors.New("smtp unavailable")},
		).WithClock(func() time.Time { return now })

		res := n.ProcessOne(context.Background(), sub)
		assert.Equal(t, notifier.StatusFailed, res.Status)
		assert.Error(t, res.Err)
		assert.Empty(t, repo.updatedIDs)
	})

	t.Run("fetch failure skips dispatch", func(t *testing.T) {
		repo := &mockRepo{}
		emails := &mockEmailSender{}
		n := newTestNotifier(repo, &mockWeatherSvc{
			errByCity: map[string]error{"Kyiv": errors.New("api down")},
		}, emails).WithClock(func() time.Time { return now })

		res := n.ProcessOne(context.Background(), sub)
		assert.Equal(t, notifier.StatusFailed, res.Status)
		assert.Empty(t, emails.sentTo)
		assert.Empty(t, repo.updatedIDs)
	})

	t.Run("not yet due is skipped without side effects", func(t *testing.T) {
		repo := &mockRepo{}
		weatherSvc := &mockWeatherSvc{}
		recent := sub
		recent.LastSentAt = ptrTime(now.Add(-10 * time.Minute))

		n := newTestNotifier(repo, weatherSvc, &mockEmailSender{}).
			WithClock(func() time.Time { return now })

		res := n.ProcessOne(context.Background(), recent)
		assert.Equal(t, notifier.StatusSkipped, res.Status)
		assert.Empty(t, weatherSvc.calledWith)
		assert.Empty(t, repo.updatedIDs)
	})
}
