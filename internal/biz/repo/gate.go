package repo

import (
	"context"
	"time"
)

// GateStore holds the ingestion gate's dedup and spam tables
type GateStore interface {
	// Claim marks messageID as in flight. It returns false when the message
	// was already processed within retention or is in flight elsewhere.
	Claim(ctx context.Context, messageID string, now time.Time) (bool, error)

	// Complete records messageID as processed at now and drops the claim
	Complete(ctx context.Context, messageID string, now time.Time) error

	// Release drops an in-flight claim without recording the message
	Release(ctx context.Context, messageID string) error

	// Hit counts one message from senderID in its current window and returns
	// the count including this one. A window that ended restarts at 1.
	Hit(ctx context.Context, senderID string, now time.Time) (int, error)

	// Sweep evicts dedup entries older than retention and ended windows.
	// Returns the number of evicted entries.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
