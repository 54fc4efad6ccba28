package repo

import (
	"context"
	"errors"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/shopspring/decimal"
)

// ErrUserNotFound is returned when a sender has never provisioned a wallet
var ErrUserNotFound = errors.New("user not found")

// UserRepo is the wallet/session store
// It owns UserState; the guardrail only reads it and asks for writes
type UserRepo interface {
	// Get gets a user by sender ID, ErrUserNotFound if absent
	Get(ctx context.Context, senderID string) (*domain.UserState, error)

	// Create creates a user with a fresh session. Creating an existing user
	// returns the stored state unchanged.
	Create(ctx context.Context, senderID, walletAddress string, now time.Time) (*domain.UserState, error)

	// Touch renews the session
	Touch(ctx context.Context, senderID string, now time.Time) error

	// RecordSpend adds amount to the daily counter of now's calendar date in
	// loc, zeroing the counter first on rollover, and renews the session
	RecordSpend(ctx context.Context, senderID string, amount decimal.Decimal, now time.Time, loc *time.Location) error

	// ListAll lists all users (for debugging)
	ListAll(ctx context.Context) ([]*domain.UserState, error)

	Close() error
}
