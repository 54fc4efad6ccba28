package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for daily spend rollover
const DateLayout = "2006-01-02"

// UserState represents a user's wallet session and spend counters
type UserState struct {
	SenderID       string
	WalletAddress  string
	CreatedAt      time.Time
	LastActivityAt time.Time       // Last command that renewed the session
	DailySpent     decimal.Decimal // Spent on LastResetDate
	LastResetDate  string          // Calendar date DailySpent belongs to (DateLayout)
}

// SessionState is derived from the user record, never stored
type SessionState int

const (
	SessionNoWallet SessionState = iota
	SessionActive
	SessionExpired
)

func (s SessionState) String() string {
	switch s {
	case SessionActive:
		return "active"
	case SessionExpired:
		return "expired"
	default:
		return "no-wallet"
	}
}

// GuardrailConfig represents guardrail limits (value object)
type GuardrailConfig struct {
	SessionDuration  time.Duration   // Inactivity after which a session expires
	TransactionLimit decimal.Decimal // Ceiling for a single send
	DailyLimit       decimal.Decimal // Ceiling for the sum of sends per calendar date
	Location         *time.Location  // Zone that defines calendar dates
}

// DefaultGuardrailConfig returns the reference limits
func DefaultGuardrailConfig() GuardrailConfig {
	return GuardrailConfig{
		SessionDuration:  24 * time.Hour,
		TransactionLimit: decimal.NewFromInt(100),
		DailyLimit:       decimal.NewFromInt(500),
		Location:         time.UTC,
	}
}

// CalendarDate returns the date of t in loc
func CalendarDate(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DateLayout)
}

// SessionState computes the session state at now. A nil user has no wallet.
func (u *UserState) SessionState(now time.Time, cfg GuardrailConfig) SessionState {
	if u == nil {
		return SessionNoWallet
	}
	if cfg.SessionDuration > 0 && now.Sub(u.LastActivityAt) > cfg.SessionDuration {
		return SessionExpired
	}
	return SessionActive
}

// SpentToday returns DailySpent as seen on now's calendar date; a stale
// counter reads as zero.
func (u *UserState) SpentToday(now time.Time, loc *time.Location) decimal.Decimal {
	if u == nil || u.LastResetDate != CalendarDate(now, loc) {
		return decimal.Zero
	}
	return u.DailySpent
}

// Touch renews the session. LastActivityAt never moves backwards.
func (u *UserState) Touch(now time.Time) {
	if now.After(u.LastActivityAt) {
		u.LastActivityAt = now
	}
}

// RecordSpend adds amount to today's counter, zeroing it first on a date
// rollover, and renews the session
func (u *UserState) RecordSpend(amount decimal.Decimal, now time.Time, loc *time.Location) {
	today := CalendarDate(now, loc)
	if u.LastResetDate != today {
		u.DailySpent = decimal.Zero
		u.LastResetDate = today
	}
	u.DailySpent = u.DailySpent.Add(amount)
	u.Touch(now)
}
