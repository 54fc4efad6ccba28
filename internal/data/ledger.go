package data

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/shopspring/decimal"
)

// ledgerRepo is a SQLite custody ledger used in development and tests in
// place of the custody provider
type ledgerRepo struct {
	db             *sql.DB
	openingBalance decimal.Decimal
}

// NewLedgerRepo creates a new ledger repository. Wallets created through
// CreateWallet start with openingBalance.
func NewLedgerRepo(dbPath string, openingBalance decimal.Decimal) (repo.LedgerRepo, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	// Create wallets table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS wallets (
			owner TEXT PRIMARY KEY,
			address TEXT UNIQUE NOT NULL,
			balance TEXT NOT NULL DEFAULT '0',
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create wallets table: %w", err)
	}

	// Create transfers table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transfers (
			id TEXT PRIMARY KEY,
			from_owner TEXT NOT NULL,
			to_owner TEXT NOT NULL,
			amount TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create transfers table: %w", err)
	}

	// Create indexes
	for _, stmt := range []string{
		`CREATE INDEX IF NOT EXISTS idx_transfers_from ON transfers(from_owner, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_to ON transfers(to_owner, created_at)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create index: %w", err)
		}
	}

	return &ledgerRepo{db: db, openingBalance: openingBalance}, nil
}

func newWalletAddress() string {
	return "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ========== Wallet Operations ==========

// CreateWallet creates a funded wallet, or returns the existing one
func (r *ledgerRepo) CreateWallet(ctx context.Context, owner string) (*domain.Wallet, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO wallets (owner, address, balance, created_at)
		VALUES (?, ?, ?, ?)
	`, owner, newWalletAddress(), r.openingBalance.String(), time.Now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	return r.GetWallet(ctx, owner)
}

// GetWallet gets the wallet of owner
func (r *ledgerRepo) GetWallet(ctx context.Context, owner string) (*domain.Wallet, error) {
	var w domain.Wallet
	var createdAt int64
	err := r.db.QueryRowContext(ctx, `
		SELECT owner, address, created_at FROM wallets WHERE owner = ?
	`, owner).Scan(&w.Owner, &w.Address, &createdAt)
	if err == sql.ErrNoRows {
		return nil, repo.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet: %w", err)
	}
	w.CreatedAt = time.UnixMilli(createdAt)
	return &w, nil
}

// Balance gets the balance of owner's wallet
func (r *ledgerRepo) Balance(ctx context.Context, owner string) (decimal.Decimal, error) {
	return balanceOf(ctx, r.db, owner)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func balanceOf(ctx context.Context, q queryRower, owner string) (decimal.Decimal, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE owner = ?`, owner).Scan(&raw)
	if err == sql.ErrNoRows {
		return decimal.Zero, repo.ErrWalletNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query balance: %w", err)
	}
	balance, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid balance %q: %w", raw, err)
	}
	return balance, nil
}

// ========== Transfer Operations ==========

// Transfer moves amount between wallets atomically
func (r *ledgerRepo) Transfer(ctx context.Context, from, to string, amount decimal.Decimal) (*domain.Transfer, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("transfer amount must be positive, got %s", amount)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	fromBalance, err := balanceOf(ctx, tx, from)
	if err != nil {
		return nil, err
	}
	if fromBalance.LessThan(amount) {
		return nil, repo.ErrInsufficientFunds
	}

	now := time.Now()

	if _, err := tx.ExecContext(ctx, `UPDATE wallets SET balance = ? WHERE owner = ?`,
		fromBalance.Sub(amount).String(), from); err != nil {
		return nil, fmt.Errorf("failed to debit sender: %w", err)
	}

	// Recipients who never started get a wallet on first receipt
	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO wallets (owner, address, balance, created_at)
		VALUES (?, ?, '0', ?)
	`, to, newWalletAddress(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to create recipient wallet: %w", err)
	}

	// Read after the debit so a self transfer nets to zero
	toBalance, err := balanceOf(ctx, tx, to)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE wallets SET balance = ? WHERE owner = ?`,
		toBalance.Add(amount).String(), to); err != nil {
		return nil, fmt.Errorf("failed to credit recipient: %w", err)
	}

	transfer := &domain.Transfer{
		ID:        uuid.NewString(),
		From:      from,
		To:        to,
		Amount:    amount,
		CreatedAt: now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transfers (id, from_owner, to_owner, amount, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, transfer.ID, transfer.From, transfer.To, transfer.Amount.String(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to insert transfer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transfer: %w", err)
	}
	return transfer, nil
}

// History lists the latest transfers involving owner
func (r *ledgerRepo) History(ctx context.Context, owner string, limit int) ([]*domain.Transfer, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, from_owner, to_owner, amount, created_at
		FROM transfers
		WHERE from_owner = ? OR to_owner = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, owner, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*domain.Transfer
	for rows.Next() {
		var t domain.Transfer
		var amount string
		var createdAt int64
		if err := rows.Scan(&t.ID, &t.From, &t.To, &amount, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("invalid transfer amount %q: %w", amount, err)
		}
		t.CreatedAt = time.UnixMilli(createdAt)
		transfers = append(transfers, &t)
	}
	return transfers, rows.Err()
}

// Close closes the database connection
func (r *ledgerRepo) Close() error {
	return r.db.Close()
}
