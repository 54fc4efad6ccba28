package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/mateodaza/sippy-sub000/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"
)

// GuardrailUsecase enforces session validity and spend limits for one
// sender at a time
type GuardrailUsecase struct {
	users  repo.UserRepo
	config domain.GuardrailConfig
	locks  *keyedLocks
	now    Clock
	logger zerolog.Logger
}

// NewGuardrailUsecase creates a new guardrail usecase
func NewGuardrailUsecase(users repo.UserRepo, config domain.GuardrailConfig, logger zerolog.Logger) *GuardrailUsecase {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &GuardrailUsecase{
		users:  users,
		config: config,
		locks:  newKeyedLocks(),
		now:    time.Now,
		logger: logger.With().Str("component", "guardrail").Logger(),
	}
}

// WithClock replaces the time source
func (uc *GuardrailUsecase) WithClock(c Clock) *GuardrailUsecase {
	uc.now = c.OrDefault()
	return uc
}

// Config returns the limits in force
func (uc *GuardrailUsecase) Config() domain.GuardrailConfig {
	return uc.config
}

// Check evaluates a send without executing anything
func (uc *GuardrailUsecase) Check(ctx context.Context, senderID string, amount decimal.Decimal) (domain.Verdict, error) {
	state, err := uc.state(ctx, senderID)
	if err != nil {
		return domain.Verdict{}, err
	}
	return domain.Authorize(state, amount, uc.now(), uc.config), nil
}

// Execute runs fn only if the guardrail allows a send of amount, and records
// the spend once fn succeeds. The whole read, authorize, execute and record
// sequence is serialized per sender.
func (uc *GuardrailUsecase) Execute(
	ctx context.Context,
	senderID string,
	amount decimal.Decimal,
	fn func(ctx context.Context) error,
) (domain.Verdict, error) {
	if err := uc.locks.lock(ctx, senderID); err != nil {
		return domain.Verdict{}, fmt.Errorf("lock sender: %w", err)
	}
	defer uc.locks.unlock(senderID)

	state, err := uc.state(ctx, senderID)
	if err != nil {
		return domain.Verdict{}, err
	}

	now := uc.now()
	verdict := domain.Authorize(state, amount, now, uc.config)
	if !verdict.Allowed {
		metrics.GuardrailVerdicts.WithLabelValues(string(verdict.Reason)).Inc()
		uc.logger.Info().
			Str("sender", senderID).
			Str("reason", string(verdict.Reason)).
			Str("amount", amount.String()).
			Msg("send denied")
		return verdict, nil
	}
	metrics.GuardrailVerdicts.WithLabelValues("allowed").Inc()

	if err := fn(ctx); err != nil {
		return verdict, err
	}

	if err := uc.users.RecordSpend(ctx, senderID, amount, now, uc.config.Location); err != nil {
		// The transfer already happened; the counter lags until the next write
		uc.logger.Error().Err(err).Str("sender", senderID).Msg("failed to record spend")
		return verdict, fmt.Errorf("record spend: %w", err)
	}
	return verdict, nil
}

func (uc *GuardrailUsecase) state(ctx context.Context, senderID string) (*domain.UserState, error) {
	state, err := uc.users.Get(ctx, senderID)
	if errors.Is(err, repo.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return state, nil
}

// keyedLocks hands out one binary semaphore per key and forgets it once
// nobody holds or waits for it
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{locks: make(map[string]*keyedLock)}
}

func (k *keyedLocks) lock(ctx context.Context, key string) error {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{sem: semaphore.NewWeighted(1)}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	if err := l.sem.Acquire(ctx, 1); err != nil {
		k.release(key, l)
		return err
	}
	return nil
}

func (k *keyedLocks) unlock(key string) {
	k.mu.Lock()
	l := k.locks[key]
	k.mu.Unlock()
	l.sem.Release(1)
	k.release(key, l)
}

func (k *keyedLocks) release(key string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}
