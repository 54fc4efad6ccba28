package data

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
)

// GateStoreConfig represents the ingestion gate table lifetimes
type GateStoreConfig struct {
	Retention time.Duration // How long a processed message ID is remembered
	Window    time.Duration // Spam window length
	ClaimTTL  time.Duration // Upper bound for an in-flight claim (redis only)
	Shards    int           // Lock shards (memory only)
}

// DefaultGateStoreConfig returns the reference lifetimes
func DefaultGateStoreConfig() GateStoreConfig {
	return GateStoreConfig{
		Retention: 2 * time.Minute,
		Window:    time.Minute,
		ClaimTTL:  time.Minute,
		Shards:    32,
	}
}

type spamCounter struct {
	count        int
	windowEndsAt time.Time
}

// gateShard holds the slice of both tables whose keys hash to it
type gateShard struct {
	mu       sync.Mutex
	seen     map[string]time.Time // messageID -> processed at
	inflight map[string]struct{}
	counters map[string]*spamCounter // senderID -> window
}

// memoryGateStore is the process-local gate store. Keys are spread over
// independently locked shards.
type memoryGateStore struct {
	shards []*gateShard
	config GateStoreConfig
}

// NewMemoryGateStore creates a new in-memory gate store
func NewMemoryGateStore(config GateStoreConfig) repo.GateStore {
	defaults := DefaultGateStoreConfig()
	if config.Retention <= 0 {
		config.Retention = defaults.Retention
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.Shards <= 0 {
		config.Shards = defaults.Shards
	}

	s := &memoryGateStore{
		shards: make([]*gateShard, config.Shards),
		config: config,
	}
	for i := range s.shards {
		s.shards[i] = &gateShard{
			seen:     make(map[string]time.Time),
			inflight: make(map[string]struct{}),
			counters: make(map[string]*spamCounter),
		}
	}
	return s
}

func (s *memoryGateStore) shard(key string) *gateShard {
	return s.shards[xxhash.Sum64String(key)%uint64(len(s.shards))]
}

// Claim marks messageID as in flight unless it was seen or is being handled
func (s *memoryGateStore) Claim(ctx context.Context, messageID string, now time.Time) (bool, error) {
	sh := s.shard(messageID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if at, ok := sh.seen[messageID]; ok && now.Sub(at) <= s.config.Retention {
		return false, nil
	}
	if _, ok := sh.inflight[messageID]; ok {
		return false, nil
	}
	sh.inflight[messageID] = struct{}{}
	return true, nil
}

// Complete records messageID as processed
func (s *memoryGateStore) Complete(ctx context.Context, messageID string, now time.Time) error {
	sh := s.shard(messageID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.inflight, messageID)
	sh.seen[messageID] = now
	return nil
}

// Release drops an in-flight claim
func (s *memoryGateStore) Release(ctx context.Context, messageID string) error {
	sh := s.shard(messageID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.inflight, messageID)
	return nil
}

// Hit counts a message in the sender's current window
func (s *memoryGateStore) Hit(ctx context.Context, senderID string, now time.Time) (int, error) {
	sh := s.shard(senderID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	c, ok := sh.counters[senderID]
	if !ok || !now.Before(c.windowEndsAt) {
		sh.counters[senderID] = &spamCounter{count: 1, windowEndsAt: now.Add(s.config.Window)}
		return 1, nil
	}
	c.count++
	return c.count, nil
}

// Sweep evicts expired entries shard by shard
func (s *memoryGateStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	evicted := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, at := range sh.seen {
			if now.Sub(at) > s.config.Retention {
				delete(sh.seen, id)
				evicted++
			}
		}
		for sender, c := range sh.counters {
			if now.After(c.windowEndsAt) {
				delete(sh.counters, sender)
				evicted++
			}
		}
		sh.mu.Unlock()
	}
	return evicted, nil
}

// size returns the number of dedup and spam entries (for tests)
func (s *memoryGateStore) size() (seen, counters int) {
	for _, sh := range s.shards {
		sh.mu.Lock()
		seen += len(sh.seen)
		counters += len(sh.counters)
		sh.mu.Unlock()
	}
	return seen, counters
}
