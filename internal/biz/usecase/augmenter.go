package usecase

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/mateodaza/sippy-sub000/internal/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// AugmenterConfig represents the natural-language augmenter settings
type AugmenterConfig struct {
	Enabled             bool
	PerMinute           int           // Model calls allowed per minute
	PerDay              int           // Model calls allowed per calendar date
	ConfidenceThreshold float64       // Answers below this are treated as abstentions
	Timeout             time.Duration // Hard deadline for one model call
	Location            *time.Location
}

// DefaultAugmenterConfig returns the reference settings, disabled
func DefaultAugmenterConfig() AugmenterConfig {
	return AugmenterConfig{
		PerMinute:           20,
		PerDay:              1000,
		ConfidenceThreshold: 0.7,
		Timeout:             3 * time.Second,
		Location:            time.UTC,
	}
}

// Budget is the local allowance for model calls: a per-minute token bucket
// plus a per-day fixed window keyed by calendar date
type Budget struct {
	mu      sync.Mutex
	minute  *rate.Limiter
	perDay  int
	day     string
	usedDay int
	loc     *time.Location
}

// NewBudget creates a new budget. Non-positive limits mean unlimited.
func NewBudget(perMinute, perDay int, loc *time.Location) *Budget {
	limit := rate.Inf
	burst := 0
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
		burst = perMinute
	}
	return &Budget{
		minute: rate.NewLimiter(limit, burst),
		perDay: perDay,
		loc:    loc,
	}
}

// Allow consumes one call from the budget if both windows have room
func (b *Budget) Allow(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	today := domain.CalendarDate(now, b.loc)
	if today != b.day {
		b.day = today
		b.usedDay = 0
	}
	if b.perDay > 0 && b.usedDay >= b.perDay {
		return false
	}
	if !b.minute.AllowN(now, 1) {
		return false
	}
	b.usedDay++
	return true
}

// Augmentation is the outcome of one augmenter step. Exactly one of Command
// and Proposed is set when the status is success; on any other status
// Command is Unknown with the original text.
type Augmentation struct {
	Command    domain.Command
	Proposed   *domain.ProposedSend // A send the verifier still has to accept
	Provenance domain.Provenance
}

// AugmenterUsecase wraps the text-classification model behind a budget, a
// deadline and output validation
type AugmenterUsecase struct {
	classifier repo.ClassifierRepo
	budget     *Budget
	config     AugmenterConfig
	now        Clock
	logger     zerolog.Logger
}

// NewAugmenterUsecase creates a new augmenter usecase. A nil classifier
// behaves as disabled.
func NewAugmenterUsecase(classifier repo.ClassifierRepo, config AugmenterConfig, logger zerolog.Logger) *AugmenterUsecase {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Second
	}
	return &AugmenterUsecase{
		classifier: classifier,
		budget:     NewBudget(config.PerMinute, config.PerDay, config.Location),
		config:     config,
		now:        time.Now,
		logger:     logger.With().Str("component", "augmenter").Logger(),
	}
}

// WithClock replaces the time source
func (uc *AugmenterUsecase) WithClock(c Clock) *AugmenterUsecase {
	uc.now = c.OrDefault()
	return uc
}

// IsEnabled returns whether the augmenter may call the model at all
func (uc *AugmenterUsecase) IsEnabled() bool {
	return uc != nil && uc.config.Enabled && uc.classifier != nil
}

// Augment asks the model to interpret text. It makes at most one model call.
func (uc *AugmenterUsecase) Augment(ctx context.Context, text string) Augmentation {
	aug := uc.augment(ctx, text)
	metrics.AugmenterStatuses.WithLabelValues(string(aug.Provenance.AugmenterStatus)).Inc()
	return aug
}

func (uc *AugmenterUsecase) augment(ctx context.Context, text string) Augmentation {
	if !uc.IsEnabled() {
		return fallback(text, false, domain.AugmenterDisabled)
	}
	if !uc.budget.Allow(uc.now()) {
		uc.logger.Info().Msg("augmenter budget exhausted")
		return fallback(text, false, domain.AugmenterRateLimited)
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.config.Timeout)
	defer cancel()

	start := time.Now()
	result, err := uc.classifier.Classify(callCtx, text)
	metrics.ClassifierLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			uc.logger.Warn().Dur("timeout", uc.config.Timeout).Msg("classifier timed out")
			return fallback(text, true, domain.AugmenterTimeout)
		}
		uc.logger.Warn().Err(err).Msg("classifier failed")
		return fallback(text, true, domain.AugmenterError)
	}

	return uc.interpret(text, result)
}

// interpret validates the model's answer and maps it onto a command
func (uc *AugmenterUsecase) interpret(text string, result *repo.Classification) Augmentation {
	if result == nil || math.IsNaN(result.Confidence) || result.Confidence < 0 || result.Confidence > 1 {
		return fallback(text, true, domain.AugmenterValidationFailed)
	}

	kind := domain.CommandKind(strings.ToLower(strings.TrimSpace(result.Command)))
	if kind == domain.KindUnknown || result.Confidence < uc.config.ConfidenceThreshold {
		return fallback(text, true, domain.AugmenterLowConfidence)
	}

	success := domain.Provenance{UsedAugmenter: true, AugmenterStatus: domain.AugmenterSuccess}

	var cmd domain.Command
	switch kind {
	case domain.KindStart:
		cmd = domain.StartCommand{}
	case domain.KindHelp:
		cmd = domain.HelpCommand{}
	case domain.KindAbout:
		cmd = domain.AboutCommand{}
	case domain.KindBalance:
		cmd = domain.BalanceCommand{}
	case domain.KindHistory:
		cmd = domain.HistoryCommand{}
	case domain.KindSend:
		if result.Amount == nil {
			return fallback(text, true, domain.AugmenterValidationFailed)
		}
		return Augmentation{
			Proposed: &domain.ProposedSend{
				Amount:    *result.Amount,
				Recipient: result.Recipient,
			},
			Provenance: success,
		}
	default:
		uc.logger.Debug().Str("command", result.Command).Msg("classifier returned unknown command kind")
		return fallback(text, true, domain.AugmenterValidationFailed)
	}

	return Augmentation{Command: cmd, Provenance: success}
}

// Explain produces a conversational reply for an unresolved message. It is
// skipped when the model was already called for this message, and shares
// the same budget and deadline.
func (uc *AugmenterUsecase) Explain(ctx context.Context, text string, prov domain.Provenance) (string, bool) {
	if prov.UsedAugmenter || !uc.IsEnabled() {
		return "", false
	}
	if !uc.budget.Allow(uc.now()) {
		return "", false
	}

	callCtx, cancel := context.WithTimeout(ctx, uc.config.Timeout)
	defer cancel()

	reply, err := uc.classifier.Explain(callCtx, text)
	if err != nil {
		uc.logger.Warn().Err(err).Msg("explain failed")
		return "", false
	}
	reply = strings.TrimSpace(reply)
	return reply, reply != ""
}

func fallback(text string, called bool, status domain.AugmenterStatus) Augmentation {
	return Augmentation{
		Command: domain.UnknownCommand{OriginalText: text},
		Provenance: domain.Provenance{
			UsedAugmenter:   called,
			AugmenterStatus: status,
		},
	}
}
