package data

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestNewRepositories(t *testing.T) {
	dir := t.TempDir()
	outbox := NewOutboxRepo(testLogger())

	repos, err := NewRepositories(context.Background(), Options{
		UsersDBPath:    filepath.Join(dir, "users.db"),
		LedgerDBPath:   filepath.Join(dir, "ledger.db"),
		OpeningBalance: decimal.NewFromInt(10),
		Gate:           DefaultGateStoreConfig(),
		Messages:       outbox,
	})
	require.NoError(t, err)
	defer repos.Close()

	assert.NotNil(t, repos.Users)
	assert.NotNil(t, repos.Ledger)
	assert.IsType(t, &memoryGateStore{}, repos.Gate)
	assert.Nil(t, repos.Classifier, "no chat client disables classification")
	assert.Same(t, outbox, repos.Message)
}

func TestNewRepositories_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	dir := t.TempDir()

	repos, err := NewRepositories(context.Background(), Options{
		UsersDBPath:  filepath.Join(dir, "users.db"),
		LedgerDBPath: filepath.Join(dir, "ledger.db"),
		Gate:         DefaultGateStoreConfig(),
		RedisURL:     "redis://" + mr.Addr(),
		Chat:         &fakeChat{},
	})
	require.NoError(t, err)

	assert.IsType(t, &redisGateStore{}, repos.Gate)
	assert.NotNil(t, repos.Classifier)
	assert.NoError(t, repos.Close())
}
