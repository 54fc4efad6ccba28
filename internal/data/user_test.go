package data

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUserRepo(t *testing.T) repo.UserRepo {
	t.Helper()
	r, err := NewUserRepo(filepath.Join(t.TempDir(), "db", "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestUserRepo_CreateGet(t *testing.T) {
	ctx := context.Background()
	r := newTestUserRepo(t)

	_, err := r.Get(ctx, "573001234567")
	assert.ErrorIs(t, err, repo.ErrUserNotFound)

	created, err := r.Create(ctx, "573001234567", "0xabc", gateNow)
	require.NoError(t, err)
	assert.Equal(t, "0xabc", created.WalletAddress)
	assert.True(t, created.CreatedAt.Equal(gateNow))
	assert.True(t, created.LastActivityAt.Equal(gateNow))
	assert.True(t, created.DailySpent.IsZero())

	// A second create keeps the first wallet
	again, err := r.Create(ctx, "573001234567", "0xdef", gateNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, "0xabc", again.WalletAddress)
	assert.True(t, again.CreatedAt.Equal(gateNow))
}

func TestUserRepo_TouchNeverMovesBackwards(t *testing.T) {
	ctx := context.Background()
	r := newTestUserRepo(t)

	assert.ErrorIs(t, r.Touch(ctx, "nobody", gateNow), repo.ErrUserNotFound)

	_, err := r.Create(ctx, "573001234567", "0xabc", gateNow)
	require.NoError(t, err)

	require.NoError(t, r.Touch(ctx, "573001234567", gateNow.Add(time.Hour)))
	require.NoError(t, r.Touch(ctx, "573001234567", gateNow.Add(time.Minute)))

	u, err := r.Get(ctx, "573001234567")
	require.NoError(t, err)
	assert.True(t, u.LastActivityAt.Equal(gateNow.Add(time.Hour)))
}

func TestUserRepo_RecordSpendRollsOver(t *testing.T) {
	ctx := context.Background()
	r := newTestUserRepo(t)

	_, err := r.Create(ctx, "573001234567", "0xabc", gateNow)
	require.NoError(t, err)

	require.NoError(t, r.RecordSpend(ctx, "573001234567", decimal.NewFromInt(80), gateNow, time.UTC))
	require.NoError(t, r.RecordSpend(ctx, "573001234567", decimal.RequireFromString("19.5"), gateNow.Add(time.Hour), time.UTC))

	u, err := r.Get(ctx, "573001234567")
	require.NoError(t, err)
	assert.Equal(t, "99.5", u.DailySpent.String())
	assert.Equal(t, "2026-03-14", u.LastResetDate)
	assert.True(t, u.LastActivityAt.Equal(gateNow.Add(time.Hour)))

	tomorrow := gateNow.Add(24 * time.Hour)
	require.NoError(t, r.RecordSpend(ctx, "573001234567", decimal.NewFromInt(5), tomorrow, time.UTC))

	u, err = r.Get(ctx, "573001234567")
	require.NoError(t, err)
	assert.Equal(t, "5", u.DailySpent.String())
	assert.Equal(t, "2026-03-15", u.LastResetDate)

	assert.ErrorIs(t, r.RecordSpend(ctx, "nobody", decimal.NewFromInt(1), gateNow, time.UTC), repo.ErrUserNotFound)
}

func TestUserRepo_ConcurrentRecordSpend(t *testing.T) {
	ctx := context.Background()
	r := newTestUserRepo(t)

	_, err := r.Create(ctx, "573001234567", "0xabc", gateNow)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, r.RecordSpend(ctx, "573001234567", decimal.NewFromInt(1), gateNow, time.UTC))
		}()
	}
	wg.Wait()

	u, err := r.Get(ctx, "573001234567")
	require.NoError(t, err)
	assert.Equal(t, "20", u.DailySpent.String())
}

func TestUserRepo_ListAll(t *testing.T) {
	ctx := context.Background()
	r := newTestUserRepo(t)

	_, _ = r.Create(ctx, "a", "0x1", gateNow)
	_, _ = r.Create(ctx, "b", "0x2", gateNow.Add(time.Minute))

	users, err := r.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "b", users[0].SenderID, "most recently active first")
}
