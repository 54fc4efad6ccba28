package service

import (
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/usecase"
	"github.com/shopspring/decimal"
)

// ResolutionView is the JSON shape of a parse result, shared by the debug
// API, the MCP tools and the CLI
type ResolutionView struct {
	Command         string            `json:"command"`
	Amount          string            `json:"amount,omitempty"`
	Recipient       string            `json:"recipient,omitempty"`
	OriginalText    string            `json:"original_text,omitempty"`
	UsedAugmenter   bool              `json:"used_augmenter"`
	AugmenterStatus string            `json:"augmenter_status,omitempty"`
	Verification    *VerificationView `json:"verification,omitempty"`
}

// VerificationView is the JSON shape of a verifier verdict
type VerificationView struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
}

// DescribeResolution converts a parse result to its view
func DescribeResolution(res usecase.Resolution) ResolutionView {
	view := ResolutionView{
		Command:         string(res.Command.Kind()),
		UsedAugmenter:   res.Provenance.UsedAugmenter,
		AugmenterStatus: string(res.Provenance.AugmenterStatus),
	}
	switch cmd := res.Command.(type) {
	case domain.SendCommand:
		view.Amount = cmd.Amount.String()
		view.Recipient = cmd.Recipient
	case domain.UnknownCommand:
		view.OriginalText = cmd.OriginalText
	}
	if res.Verification != nil {
		view.Verification = &VerificationView{
			Accepted: res.Verification.Accepted,
			Reason:   string(res.Verification.MismatchReason),
		}
	}
	return view
}

// LimitsView is the JSON shape of a user's guardrail state
type LimitsView struct {
	SenderID         string    `json:"sender_id"`
	Session          string    `json:"session"`
	WalletAddress    string    `json:"wallet_address,omitempty"`
	LastActivityAt   time.Time `json:"last_activity_at,omitzero"`
	SessionExpiresAt time.Time `json:"session_expires_at,omitzero"`
	SpentToday       string    `json:"spent_today"`
	RemainingToday   string    `json:"remaining_today"`
	TransactionLimit string    `json:"transaction_limit"`
	DailyLimit       string    `json:"daily_limit"`
	Balance          string    `json:"balance,omitempty"`
}

// DescribeLimits builds the guardrail view of state at now. state may be
// nil for a sender without a wallet.
func DescribeLimits(senderID string, state *domain.UserState, now time.Time, cfg domain.GuardrailConfig) LimitsView {
	spent := state.SpentToday(now, cfg.Location)
	remaining := cfg.DailyLimit.Sub(spent)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	view := LimitsView{
		SenderID:         senderID,
		Session:          state.SessionState(now, cfg).String(),
		SpentToday:       spent.StringFixed(2),
		RemainingToday:   remaining.StringFixed(2),
		TransactionLimit: cfg.TransactionLimit.StringFixed(2),
		DailyLimit:       cfg.DailyLimit.StringFixed(2),
	}
	if state != nil {
		view.WalletAddress = state.WalletAddress
		view.LastActivityAt = state.LastActivityAt.UTC()
		view.SessionExpiresAt = state.LastActivityAt.Add(cfg.SessionDuration).UTC()
	}
	return view
}
