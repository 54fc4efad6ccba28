package data

import (
	"context"
	"fmt"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/redis/go-redis/v9"
)

const (
	claimInflight  = "inflight"
	claimProcessed = "done"
)

// releaseScript deletes a claim only while it is still in flight, so a late
// Release never erases a processed record
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// redisGateStore shares the gate tables between instances. Redis TTLs do the
// eviction, so Sweep has nothing to do.
type redisGateStore struct {
	client *redis.Client
	config GateStoreConfig
}

// NewRedisGateStore creates a gate store on the Redis instance at redisURL
func NewRedisGateStore(ctx context.Context, redisURL string, config GateStoreConfig) (repo.GateStore, func() error, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}

	return newRedisGateStore(client, config), client.Close, nil
}

func newRedisGateStore(client *redis.Client, config GateStoreConfig) *redisGateStore {
	defaults := DefaultGateStoreConfig()
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.ClaimTTL <= 0 {
		config.ClaimTTL = defaults.ClaimTTL
	}
	return &redisGateStore{client: client, config: config}
}

func messageKey(messageID string) string {
	return fmt.Sprintf("sippy:gate:msg:%s", messageID)
}

func spamKey(senderID string) string {
	return fmt.Sprintf("sippy:gate:spam:%s", senderID)
}

// Claim sets the message key if absent; both in-flight and processed
// messages hold it
func (s *redisGateStore) Claim(ctx context.Context, messageID string, now time.Time) (bool, error) {
	ok, err := s.client.SetNX(ctx, messageKey(messageID), claimInflight, s.config.ClaimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim message: %w", err)
	}
	return ok, nil
}

// Complete turns the claim into a processed record kept for the retention window
func (s *redisGateStore) Complete(ctx context.Context, messageID string, now time.Time) error {
	if err := s.client.Set(ctx, messageKey(messageID), claimProcessed, s.config.Retention).Err(); err != nil {
		return fmt.Errorf("complete message: %w", err)
	}
	return nil
}

// Release drops an in-flight claim
func (s *redisGateStore) Release(ctx context.Context, messageID string) error {
	if err := releaseScript.Run(ctx, s.client, []string{messageKey(messageID)}, claimInflight).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release message: %w", err)
	}
	return nil
}

// Hit increments the sender's counter; the first hit of a window arms its expiry
func (s *redisGateStore) Hit(ctx context.Context, senderID string, now time.Time) (int, error) {
	key := spamKey(senderID)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("increment spam counter: %w", err)
	}
	if count == 1 {
		if err := s.client.PExpire(ctx, key, s.config.Window).Err(); err != nil {
			return int(count), fmt.Errorf("arm spam window: %w", err)
		}
	}
	return int(count), nil
}

// Sweep is a no-op; keys expire on their own
func (s *redisGateStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}
