package models

import "time"

const (
	FreqHourly = "hourly"
	FreqDaily  = "daily"
)

// Subscription binds an email address to a city and an update frequency.
// Token is the sole credential for confirm/unsubscribe actions.
type Subscription struct {
	ID         int
	Email      string
	City       string
	Frequency  string
	Confirmed  bool
	Token      string
	LastSentAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
