package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/mateodaza/sippy-sub000/internal/biz/usecase"
	"github.com/mateodaza/sippy-sub000/internal/metrics"
	"github.com/rs/zerolog"
)

// Outcome describes what the pipeline did with one delivery
type Outcome struct {
	TraceID    string
	Ignored    bool // Empty or malformed, never reached the gate
	Verdict    domain.GateVerdict
	Resolution *usecase.Resolution
	Reply      string
	Err        error
}

// InterpreterService runs every inbound message through the gate, the
// parser and the executor, and sends the reply
type InterpreterService struct {
	gate     *usecase.IngestionGate
	parser   *usecase.ParserUsecase
	executor *Executor
	messages repo.MessageRepo
	fallback string // Reply when processing fails
	now      usecase.Clock
	logger   zerolog.Logger
}

// NewInterpreterService creates a new interpreter service
func NewInterpreterService(
	gate *usecase.IngestionGate,
	parser *usecase.ParserUsecase,
	executor *Executor,
	messages repo.MessageRepo,
	fallbackReply string,
	logger zerolog.Logger,
) *InterpreterService {
	return &InterpreterService{
		gate:     gate,
		parser:   parser,
		executor: executor,
		messages: messages,
		fallback: fallbackReply,
		now:      time.Now,
		logger:   logger.With().Str("component", "interpreter").Logger(),
	}
}

// WithClock replaces the time source
func (s *InterpreterService) WithClock(c usecase.Clock) *InterpreterService {
	s.now = c.OrDefault()
	return s
}

// HandleMessage processes one delivery end to end. It never panics and
// never returns an error to the transport; failures are reported in the
// outcome and logged.
func (s *InterpreterService) HandleMessage(ctx context.Context, msg domain.InboundMessage) (out Outcome) {
	out.TraceID = uuid.NewString()
	logger := s.logger.With().
		Str("trace_id", out.TraceID).
		Str("message_id", msg.MessageID).
		Str("sender", msg.SenderID).
		Logger()

	if !msg.Valid() || msg.IsEmpty() {
		logger.Debug().Msg("ignoring empty or malformed message")
		out.Ignored = true
		return out
	}

	now := s.now()
	out.Verdict = s.gate.Admit(ctx, msg.MessageID, msg.SenderID, now)
	if out.Verdict != domain.GateAdmit {
		return out
	}

	defer func() {
		if r := recover(); r != nil {
			metrics.PipelinePanics.Inc()
			logger.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("pipeline panicked")
			out.Err = fmt.Errorf("pipeline panic: %v", r)
			s.gate.Abandon(ctx, msg.MessageID)
		}
	}()

	res := s.parser.Parse(ctx, msg.Text)
	out.Resolution = &res
	logger.Info().
		Str("command", string(res.Command.Kind())).
		Bool("used_augmenter", res.Provenance.UsedAugmenter).
		Str("augmenter_status", string(res.Provenance.AugmenterStatus)).
		Msg("message parsed")

	reply, err := s.executor.Execute(ctx, msg.SenderID, res)
	if err != nil {
		logger.Error().Err(err).Msg("command failed")
		out.Err = err
		s.gate.Abandon(ctx, msg.MessageID)
		out.Reply = s.fallback
		s.reply(ctx, logger, msg.SenderID, s.fallback)
		return out
	}

	out.Reply = reply
	s.reply(ctx, logger, msg.SenderID, reply)
	s.gate.Complete(ctx, msg.MessageID, s.now())
	return out
}

func (s *InterpreterService) reply(ctx context.Context, logger zerolog.Logger, to, text string) {
	if text == "" {
		return
	}
	if err := s.messages.SendText(ctx, to, text); err != nil {
		logger.Warn().Err(err).Msg("failed to send reply")
	}
}

// Preview parses text without executing anything
func (s *InterpreterService) Preview(ctx context.Context, text string) usecase.Resolution {
	return s.parser.Parse(ctx, text)
}
