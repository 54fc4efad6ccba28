package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeUser(spent int64) *UserState {
	return &UserState{
		SenderID:       "573001234567",
		CreatedAt:      testNow.Add(-time.Hour),
		LastActivityAt: testNow.Add(-time.Minute),
		DailySpent:     decimal.NewFromInt(spent),
		LastResetDate:  CalendarDate(testNow, time.UTC),
	}
}

func TestAuthorize_NoWallet(t *testing.T) {
	v := Authorize(nil, decimal.NewFromInt(5), testNow, DefaultGuardrailConfig())

	assert.False(t, v.Allowed)
	assert.Equal(t, DenyNoWallet, v.Reason)
}

func TestAuthorize_ExpiredSession(t *testing.T) {
	user := activeUser(0)
	user.LastActivityAt = testNow.Add(-25 * time.Hour)

	v := Authorize(user, decimal.NewFromInt(5), testNow, DefaultGuardrailConfig())

	assert.False(t, v.Allowed)
	assert.Equal(t, DenySessionExpired, v.Reason)
}

func TestAuthorize_TransactionLimit(t *testing.T) {
	v := Authorize(activeUser(0), decimal.NewFromFloat(100.01), testNow, DefaultGuardrailConfig())

	assert.False(t, v.Allowed)
	assert.Equal(t, DenyTransactionLimit, v.Reason)
	assert.True(t, v.Limit.Equal(decimal.NewFromInt(100)))

	v = Authorize(activeUser(0), decimal.NewFromInt(100), testNow, DefaultGuardrailConfig())
	assert.True(t, v.Allowed, "exactly the per-transaction ceiling is allowed")
}

func TestAuthorize_DailyLimitMonotonic(t *testing.T) {
	cfg := DefaultGuardrailConfig()
	user := activeUser(480)

	v := Authorize(user, decimal.NewFromInt(30), testNow, cfg)
	require.False(t, v.Allowed)
	assert.Equal(t, DenyDailyLimit, v.Reason)
	assert.True(t, v.Remaining.Equal(decimal.NewFromInt(20)), "remaining = %s", v.Remaining)
	assert.True(t, v.Limit.Equal(decimal.NewFromInt(500)))

	v = Authorize(user, decimal.NewFromInt(20), testNow, cfg)
	require.True(t, v.Allowed)

	user.RecordSpend(decimal.NewFromInt(20), testNow, cfg.Location)

	v = Authorize(user, decimal.NewFromInt(1), testNow.Add(time.Minute), cfg)
	assert.False(t, v.Allowed)
	assert.Equal(t, DenyDailyLimit, v.Reason)
	assert.True(t, v.Remaining.IsZero())
}

func TestAuthorize_DailyRolloverIsLazy(t *testing.T) {
	cfg := DefaultGuardrailConfig()
	user := activeUser(500)
	tomorrow := testNow.Add(24*time.Hour - time.Minute)
	user.LastActivityAt = tomorrow.Add(-time.Minute)

	v := Authorize(user, decimal.NewFromInt(50), tomorrow, cfg)

	assert.True(t, v.Allowed)
	assert.True(t, user.DailySpent.Equal(decimal.NewFromInt(500)), "authorize must not mutate state")
}
