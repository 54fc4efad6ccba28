package repo

import (
	"context"
	"errors"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/shopspring/decimal"
)

var (
	// ErrInsufficientFunds is returned by Transfer when the sender cannot cover the amount
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletNotFound is returned when an owner has no wallet
	ErrWalletNotFound = errors.New("wallet not found")
)

// LedgerRepo is the custody ledger interface
type LedgerRepo interface {
	// CreateWallet creates a wallet for owner, or returns the existing one
	CreateWallet(ctx context.Context, owner string) (*domain.Wallet, error)

	// GetWallet gets the wallet of owner, ErrWalletNotFound if absent
	GetWallet(ctx context.Context, owner string) (*domain.Wallet, error)

	// Balance gets the balance of owner's wallet
	Balance(ctx context.Context, owner string) (decimal.Decimal, error)

	// Transfer moves amount from one owner to another. The recipient wallet
	// is created on demand.
	Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*domain.Transfer, error)

	// History lists the latest transfers involving owner, newest first
	History(ctx context.Context, owner string, limit int) ([]*domain.Transfer, error)

	Close() error
}
