package domain

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MismatchReason explains why a proposed send was rejected
type MismatchReason string

const (
	MismatchAmount    MismatchReason = "amount"
	MismatchRecipient MismatchReason = "recipient"
	MismatchInvalid   MismatchReason = "invalid"
)

var recipientRegex = regexp.MustCompile(`^\+?\d{10,}$`)

var (
	// DefaultMaxSendAmount is the absolute ceiling for any proposed send
	DefaultMaxSendAmount = decimal.NewFromInt(100000)

	// DefaultAmountEpsilon is the tolerated disagreement between the two parsers
	DefaultAmountEpsilon = decimal.NewFromFloat(0.01)
)

// ProposedSend is a send intent as produced by the augmenter, before any
// sanity checks. Amount is kept as the raw float the model emitted so that
// NaN and infinities can be detected.
type ProposedSend struct {
	Amount    float64
	Recipient string
}

// VerificationResult is the verdict on a proposed send
type VerificationResult struct {
	Accepted       bool
	MismatchReason MismatchReason
}

func reject(reason MismatchReason) VerificationResult {
	return VerificationResult{MismatchReason: reason}
}

// Verifier cross-checks augmenter sends against sanity bounds and the
// deterministic matcher
type Verifier struct {
	phones    *PhoneNormalizer
	maxAmount decimal.Decimal
	epsilon   decimal.Decimal
}

// NewVerifier creates a verifier with the default bounds
func NewVerifier(phones *PhoneNormalizer) *Verifier {
	return &Verifier{
		phones:    phones,
		maxAmount: DefaultMaxSendAmount,
		epsilon:   DefaultAmountEpsilon,
	}
}

// Verify applies the checks in order and stops at the first failure.
// deterministic may be nil or any command; only a SendCommand takes part in
// the agreement check.
func (v *Verifier) Verify(proposed ProposedSend, deterministic Command, originalText string) VerificationResult {
	if math.IsNaN(proposed.Amount) || math.IsInf(proposed.Amount, 0) || proposed.Amount <= 0 {
		return reject(MismatchInvalid)
	}

	amount := decimal.NewFromFloat(proposed.Amount)
	if amount.GreaterThan(v.maxAmount) {
		return reject(MismatchAmount)
	}

	recipient := strings.TrimSpace(proposed.Recipient)
	if recipient == "" {
		return reject(MismatchRecipient)
	}

	candidate := recipient
	if normalized, ok := v.phones.Normalize(recipient, originalText); ok {
		candidate = normalized
	}
	if !recipientRegex.MatchString(candidate) {
		return reject(MismatchRecipient)
	}

	if det, ok := deterministic.(SendCommand); ok {
		if det.Amount.Sub(amount).Abs().GreaterThan(v.epsilon) {
			return reject(MismatchAmount)
		}
		if strings.TrimPrefix(candidate, "+") != det.Recipient {
			return reject(MismatchRecipient)
		}
	}

	return VerificationResult{Accepted: true}
}

// Resolve builds the send command for an accepted proposal. A deterministic
// send is returned as is; the model only confirms it.
func (v *Verifier) Resolve(proposed ProposedSend, deterministic Command, originalText string) SendCommand {
	if det, ok := deterministic.(SendCommand); ok {
		return det
	}

	recipient := strings.TrimSpace(proposed.Recipient)
	if normalized, ok := v.phones.Normalize(recipient, originalText); ok {
		recipient = normalized
	}
	recipient = strings.TrimPrefix(recipient, "+")

	return SendCommand{Amount: decimal.NewFromFloat(proposed.Amount), Recipient: recipient}
}
