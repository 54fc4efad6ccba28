package usecase

import (
	"context"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/mateodaza/sippy-sub000/internal/metrics"
	"github.com/rs/zerolog"
)

// DefaultMaxPerWindow is the per-sender message cap of one spam window
const DefaultMaxPerWindow = 10

// IngestionGate drops duplicate deliveries and throttles chatty senders
// before anything else looks at a message. It never fails: store errors are
// logged and read as "not seen before".
type IngestionGate struct {
	store        repo.GateStore
	maxPerWindow int
	logger       zerolog.Logger
}

// NewIngestionGate creates a new ingestion gate
func NewIngestionGate(store repo.GateStore, maxPerWindow int, logger zerolog.Logger) *IngestionGate {
	if maxPerWindow <= 0 {
		maxPerWindow = DefaultMaxPerWindow
	}
	return &IngestionGate{
		store:        store,
		maxPerWindow: maxPerWindow,
		logger:       logger.With().Str("component", "gate").Logger(),
	}
}

// Admit decides whether a delivery gets processed. An admitted message stays
// claimed until Complete or Abandon is called for it.
func (g *IngestionGate) Admit(ctx context.Context, messageID, senderID string, now time.Time) domain.GateVerdict {
	verdict := g.admit(ctx, messageID, senderID, now)
	metrics.GateVerdicts.WithLabelValues(verdict.String()).Inc()
	return verdict
}

func (g *IngestionGate) admit(ctx context.Context, messageID, senderID string, now time.Time) domain.GateVerdict {
	claimed, err := g.store.Claim(ctx, messageID, now)
	if err != nil {
		g.logger.Warn().Err(err).Str("message_id", messageID).Msg("dedup lookup failed, treating as new")
		claimed = true
	}
	if !claimed {
		g.logger.Debug().Str("message_id", messageID).Msg("duplicate delivery dropped")
		return domain.GateDuplicateDrop
	}

	count, err := g.store.Hit(ctx, senderID, now)
	if err != nil {
		g.logger.Warn().Err(err).Str("sender", senderID).Msg("spam counter failed, treating as first in window")
		count = 1
	}
	if count > g.maxPerWindow {
		// Recorded so the same delivery is not replayed once the window rolls over
		g.Complete(ctx, messageID, now)
		g.logger.Info().Str("sender", senderID).Int("count", count).Msg("sender throttled")
		return domain.GateSpamDrop
	}

	return domain.GateAdmit
}

// Complete records an admitted message as processed
func (g *IngestionGate) Complete(ctx context.Context, messageID string, now time.Time) {
	if err := g.store.Complete(ctx, messageID, now); err != nil {
		g.logger.Warn().Err(err).Str("message_id", messageID).Msg("failed to record processed message")
	}
}

// Abandon releases an admitted message that failed, so a redelivery can be processed
func (g *IngestionGate) Abandon(ctx context.Context, messageID string) {
	if err := g.store.Release(ctx, messageID); err != nil {
		g.logger.Warn().Err(err).Str("message_id", messageID).Msg("failed to release claim")
	}
}

// Sweep evicts expired dedup and spam entries
func (g *IngestionGate) Sweep(ctx context.Context, now time.Time) int {
	n, err := g.store.Sweep(ctx, now)
	if err != nil {
		g.logger.Warn().Err(err).Msg("gate sweep failed")
		return 0
	}
	if n > 0 {
		metrics.GateSwept.Add(float64(n))
		g.logger.Debug().Int("evicted", n).Msg("gate swept")
	}
	return n
}
