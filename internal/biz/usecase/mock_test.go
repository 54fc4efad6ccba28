package usecase

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Mock implementations

var nopLogger = zerolog.New(io.Discard)

var testNow = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

// fixedClock returns a clock that reads *t, so tests can move time
func fixedClock(t *time.Time) Clock {
	return func() time.Time { return *t }
}

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.UserState
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*domain.UserState)}
}

func (m *mockUserRepo) Get(ctx context.Context, senderID string) (*domain.UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[senderID]
	if !ok {
		return nil, repo.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *mockUserRepo) Create(ctx context.Context, senderID, walletAddress string, now time.Time) (*domain.UserState, error) {
	m.mu.Lock()
	if _, ok := m.users[senderID]; !ok {
		m.users[senderID] = &domain.UserState{
			SenderID:       senderID,
			WalletAddress:  walletAddress,
			CreatedAt:      now,
			LastActivityAt: now,
		}
	}
	m.mu.Unlock()
	return m.Get(ctx, senderID)
}

func (m *mockUserRepo) Touch(ctx context.Context, senderID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[senderID]
	if !ok {
		return repo.ErrUserNotFound
	}
	u.Touch(now)
	return nil
}

func (m *mockUserRepo) RecordSpend(ctx context.Context, senderID string, amount decimal.Decimal, now time.Time, loc *time.Location) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[senderID]
	if !ok {
		return repo.ErrUserNotFound
	}
	u.RecordSpend(amount, now, loc)
	return nil
}

func (m *mockUserRepo) ListAll(ctx context.Context) ([]*domain.UserState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.UserState
	for _, u := range m.users {
		copied := *u
		out = append(out, &copied)
	}
	return out, nil
}

func (m *mockUserRepo) Close() error { return nil }

type mockClassifier struct {
	mu       sync.Mutex
	result   *repo.Classification
	err      error
	explain  string
	block    bool // wait for the context deadline
	calls    int
	explains int
}

func (m *mockClassifier) Classify(ctx context.Context, text string) (*repo.Classification, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.result, m.err
}

func (m *mockClassifier) Explain(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.explains++
	m.mu.Unlock()
	return m.explain, m.err
}

func (m *mockClassifier) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockGateStore keeps gate state in maps with a fixed one-minute window
type mockGateStore struct {
	mu       sync.Mutex
	done     map[string]bool
	inflight map[string]bool
	counts   map[string]int
	windows  map[string]time.Time
	err      error
}

func newMockGateStore() *mockGateStore {
	return &mockGateStore{
		done:     map[string]bool{},
		inflight: map[string]bool{},
		counts:   map[string]int{},
		windows:  map[string]time.Time{},
	}
}

func (m *mockGateStore) Claim(ctx context.Context, messageID string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.done[messageID] || m.inflight[messageID] {
		return false, nil
	}
	m.inflight[messageID] = true
	return true, nil
}

func (m *mockGateStore) Complete(ctx context.Context, messageID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, messageID)
	m.done[messageID] = true
	return m.err
}

func (m *mockGateStore) Release(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, messageID)
	return m.err
}

func (m *mockGateStore) Hit(ctx context.Context, senderID string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if end, ok := m.windows[senderID]; !ok || !now.Before(end) {
		m.windows[senderID] = now.Add(time.Minute)
		m.counts[senderID] = 0
	}
	m.counts[senderID]++
	return m.counts[senderID], nil
}

func (m *mockGateStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, m.err
}
