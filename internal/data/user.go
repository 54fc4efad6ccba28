package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/shopspring/decimal"
)

// userRepo implements the wallet/session store on SQLite
type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new user repository
func NewUserRepo(dbPath string) (repo.UserRepo, error) {
	db, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	// Create table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			sender_id TEXT PRIMARY KEY,
			wallet_address TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			last_activity_at INTEGER NOT NULL,
			daily_spent TEXT NOT NULL DEFAULT '0',
			last_reset_date TEXT NOT NULL DEFAULT ''
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create index
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_users_last_activity ON users(last_activity_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &userRepo{db: db}, nil
}

const userColumns = `sender_id, wallet_address, created_at, last_activity_at, daily_spent, last_reset_date`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.UserState, error) {
	var user domain.UserState
	var createdAt, lastActivityAt int64
	var dailySpent string
	if err := row.Scan(&user.SenderID, &user.WalletAddress, &createdAt, &lastActivityAt, &dailySpent, &user.LastResetDate); err != nil {
		return nil, err
	}

	spent, err := decimal.NewFromString(dailySpent)
	if err != nil {
		return nil, fmt.Errorf("invalid daily_spent %q: %w", dailySpent, err)
	}
	user.DailySpent = spent
	user.CreatedAt = time.UnixMilli(createdAt)
	user.LastActivityAt = time.UnixMilli(lastActivityAt)
	return &user, nil
}

// Get gets a user by sender ID
func (r *userRepo) Get(ctx context.Context, senderID string) (*domain.UserState, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE sender_id = ?`, senderID)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, repo.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// Create creates a user unless one exists, then returns the stored state
func (r *userRepo) Create(ctx context.Context, senderID, walletAddress string, now time.Time) (*domain.UserState, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (sender_id, wallet_address, created_at, last_activity_at, daily_spent, last_reset_date)
		VALUES (?, ?, ?, ?, '0', '')
	`, senderID, walletAddress, now.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return r.Get(ctx, senderID)
}

// Touch renews the session; last_activity_at never moves backwards
func (r *userRepo) Touch(ctx context.Context, senderID string, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_activity_at = MAX(last_activity_at, ?) WHERE sender_id = ?
	`, now.UnixMilli(), senderID)
	if err != nil {
		return fmt.Errorf("failed to touch user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return repo.ErrUserNotFound
	}
	return nil
}

// RecordSpend adds amount to today's counter inside a transaction
func (r *userRepo) RecordSpend(ctx context.Context, senderID string, amount decimal.Decimal, now time.Time, loc *time.Location) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	user, err := scanUser(tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE sender_id = ?`, senderID))
	if err == sql.ErrNoRows {
		return repo.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query user: %w", err)
	}

	user.RecordSpend(amount, now, loc)

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET daily_spent = ?, last_reset_date = ?, last_activity_at = ? WHERE sender_id = ?
	`, user.DailySpent.String(), user.LastResetDate, user.LastActivityAt.UnixMilli(), senderID)
	if err != nil {
		return fmt.Errorf("failed to record spend: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit spend: %w", err)
	}
	return nil
}

// ListAll lists all users
func (r *userRepo) ListAll(ctx context.Context) ([]*domain.UserState, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY last_activity_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*domain.UserState
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// Close closes the database connection
func (r *userRepo) Close() error {
	return r.db.Close()
}
