package data

import (
	"context"
	"sync"

	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/rs/zerolog"
)

// OutboxMessage is a reply captured by the outbox repository
type OutboxMessage struct {
	Recipient string
	Text      string
}

// OutboxRepo is a message repository that logs and keeps replies instead
// of delivering them. It backs the CLI and runs without a transport.
type OutboxRepo struct {
	mu       sync.Mutex
	messages []OutboxMessage
	logger   zerolog.Logger
}

var _ repo.MessageRepo = (*OutboxRepo)(nil)

// NewOutboxRepo creates a new outbox repository
func NewOutboxRepo(logger zerolog.Logger) *OutboxRepo {
	return &OutboxRepo{logger: logger.With().Str("component", "outbox").Logger()}
}

// SendText records the message
func (r *OutboxRepo) SendText(_ context.Context, recipient, text string) error {
	r.mu.Lock()
	r.messages = append(r.messages, OutboxMessage{Recipient: recipient, Text: text})
	r.mu.Unlock()

	r.logger.Info().Str("to", recipient).Str("text", text).Msg("reply")
	return nil
}

// Drain returns and clears the captured messages
func (r *OutboxRepo) Drain() []OutboxMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.messages
	r.messages = nil
	return out
}
