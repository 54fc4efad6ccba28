package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DenialReason explains why a financial command may not proceed
type DenialReason string

const (
	DenyNoWallet         DenialReason = "no-wallet"
	DenySessionExpired   DenialReason = "session-expired"
	DenyTransactionLimit DenialReason = "transaction-limit"
	DenyDailyLimit       DenialReason = "daily-limit"
)

// Verdict is the guardrail decision for one financial request.
// Limit and Remaining are set for the limit denials.
type Verdict struct {
	Allowed   bool
	Reason    DenialReason
	Limit     decimal.Decimal
	Remaining decimal.Decimal
}

// Allowed is the verdict for a request that may proceed
func Allowed() Verdict {
	return Verdict{Allowed: true}
}

// Authorize evaluates a send of amount for the given user state. It only
// reads state; recording the spend after execution is the caller's job.
func Authorize(state *UserState, amount decimal.Decimal, now time.Time, cfg GuardrailConfig) Verdict {
	switch state.SessionState(now, cfg) {
	case SessionNoWallet:
		return Verdict{Reason: DenyNoWallet}
	case SessionExpired:
		return Verdict{Reason: DenySessionExpired}
	}

	if amount.GreaterThan(cfg.TransactionLimit) {
		return Verdict{
			Reason:    DenyTransactionLimit,
			Limit:     cfg.TransactionLimit,
			Remaining: cfg.TransactionLimit,
		}
	}

	spent := state.SpentToday(now, cfg.Location)
	if spent.Add(amount).GreaterThan(cfg.DailyLimit) {
		remaining := cfg.DailyLimit.Sub(spent)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		return Verdict{
			Reason:    DenyDailyLimit,
			Limit:     cfg.DailyLimit,
			Remaining: remaining,
		}
	}

	return Allowed()
}
