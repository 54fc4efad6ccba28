package data

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisGate(t *testing.T) (*redisGateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return newRedisGateStore(client, DefaultGateStoreConfig()), mr
}

func TestRedisGateStore_ClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisGate(t)

	ok, err := s.Claim(ctx, "wamid.1", gateNow)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Claim(ctx, "wamid.1", gateNow)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Release(ctx, "wamid.1"))
	ok, _ = s.Claim(ctx, "wamid.1", gateNow)
	assert.True(t, ok)

	require.NoError(t, s.Complete(ctx, "wamid.1", gateNow))
	require.NoError(t, s.Release(ctx, "wamid.1"))
	ok, _ = s.Claim(ctx, "wamid.1", gateNow)
	assert.False(t, ok, "release must not erase a processed record")

	mr.FastForward(2*time.Minute + time.Second)
	ok, _ = s.Claim(ctx, "wamid.1", gateNow)
	assert.True(t, ok, "processed record expires after retention")
}

func TestRedisGateStore_StaleClaimExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisGate(t)

	ok, _ := s.Claim(ctx, "wamid.crash", gateNow)
	require.True(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, _ = s.Claim(ctx, "wamid.crash", gateNow)
	assert.True(t, ok, "a claim abandoned by a crashed instance does not block forever")
}

func TestRedisGateStore_HitWindow(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedisGate(t)

	for i := 1; i <= 11; i++ {
		n, err := s.Hit(ctx, "573001234567", gateNow)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	assert.Equal(t, time.Minute, mr.TTL(spamKey("573001234567")))

	mr.FastForward(time.Minute)
	n, err := s.Hit(ctx, "573001234567", gateNow)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	evicted, err := s.Sweep(ctx, gateNow)
	require.NoError(t, err)
	assert.Zero(t, evicted)
}
