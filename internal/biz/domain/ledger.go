package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet represents a custodial wallet owned by a phone number
type Wallet struct {
	Owner     string // Canonical digit string
	Address   string
	CreatedAt time.Time
}

// Transfer represents a completed movement of funds between two wallets
type Transfer struct {
	ID        string
	From      string
	To        string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

// Direction returns "sent" or "received" from owner's point of view
func (t *Transfer) Direction(owner string) string {
	if t.From == owner {
		return "sent"
	}
	return "received"
}

// Counterparty returns the other side of the transfer from owner's point of view
func (t *Transfer) Counterparty(owner string) string {
	if t.From == owner {
		return t.To
	}
	return t.From
}
