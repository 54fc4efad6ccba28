package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

// openDB opens a SQLite database, creating its directory if needed
func openDB(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; serializing here avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	return db, nil
}

// Options configures NewRepositories
type Options struct {
	UsersDBPath    string
	LedgerDBPath   string
	OpeningBalance decimal.Decimal

	Gate     GateStoreConfig
	RedisURL string // empty keeps the gate in process

	Chat          ChatClient // nil disables classification
	SystemPrompt  string
	ExplainPrompt string

	Messages repo.MessageRepo
}

// Repositories contains all repositories
type Repositories struct {
	Users      repo.UserRepo
	Ledger     repo.LedgerRepo
	Gate       repo.GateStore
	Classifier repo.ClassifierRepo // nil when the augmenter is disabled
	Message    repo.MessageRepo

	closers []func() error
}

// NewRepositories creates all repositories
func NewRepositories(ctx context.Context, opts Options) (*Repositories, error) {
	repos := &Repositories{Message: opts.Messages}

	users, err := NewUserRepo(opts.UsersDBPath)
	if err != nil {
		return nil, err
	}
	repos.Users = users
	repos.closers = append(repos.closers, users.Close)

	ledger, err := NewLedgerRepo(opts.LedgerDBPath, opts.OpeningBalance)
	if err != nil {
		repos.Close()
		return nil, err
	}
	repos.Ledger = ledger
	repos.closers = append(repos.closers, ledger.Close)

	if opts.RedisURL != "" {
		gate, closeGate, err := NewRedisGateStore(ctx, opts.RedisURL, opts.Gate)
		if err != nil {
			repos.Close()
			return nil, err
		}
		repos.Gate = gate
		repos.closers = append(repos.closers, closeGate)
	} else {
		repos.Gate = NewMemoryGateStore(opts.Gate)
	}

	if opts.Chat != nil {
		repos.Classifier = NewClassifierRepo(opts.Chat, opts.SystemPrompt, opts.ExplainPrompt)
	}

	return repos, nil
}

// Close releases every opened store
func (r *Repositories) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return errors.Join(errs...)
}
