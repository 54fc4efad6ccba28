package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/mateodaza/sippy-sub000/internal/biz/usecase"
	"github.com/mateodaza/sippy-sub000/internal/conf"
	"github.com/mateodaza/sippy-sub000/internal/data"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var nopLogger = zerolog.New(io.Discard)

const (
	alice = "573001111111"
	bob   = "573002222222"
)

// pipeline wires the real usecases over sqlite stores in a temp dir
type pipeline struct {
	now         time.Time
	users       repo.UserRepo
	ledger      repo.LedgerRepo
	outbox      *data.OutboxRepo
	gate        *usecase.IngestionGate
	parser      *usecase.ParserUsecase
	executor    *Executor
	interpreter *InterpreterService
}

type stubClassifier struct {
	result  *repo.Classification
	explain string
}

func (s *stubClassifier) Classify(ctx context.Context, text string) (*repo.Classification, error) {
	return s.result, nil
}

func (s *stubClassifier) Explain(ctx context.Context, text string) (string, error) {
	return s.explain, nil
}

func newPipeline(t *testing.T, classifier repo.ClassifierRepo) *pipeline {
	t.Helper()
	dir := t.TempDir()
	p := &pipeline{now: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return p.now }

	users, err := data.NewUserRepo(filepath.Join(dir, "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = users.Close() })
	ledger, err := data.NewLedgerRepo(filepath.Join(dir, "ledger.db"), decimal.NewFromInt(100))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	p.users = users
	p.ledger = ledger
	p.outbox = data.NewOutboxRepo(nopLogger)
	p.gate = usecase.NewIngestionGate(data.NewMemoryGateStore(data.DefaultGateStoreConfig()), usecase.DefaultMaxPerWindow, nopLogger)

	augCfg := usecase.DefaultAugmenterConfig()
	augCfg.Enabled = classifier != nil
	augmenter := usecase.NewAugmenterUsecase(classifier, augCfg, nopLogger).WithClock(clock)
	p.parser = usecase.NewParserUsecase(domain.NewPhoneNormalizer("57", nil), augmenter, false, nopLogger)

	guardrail := usecase.NewGuardrailUsecase(users, domain.DefaultGuardrailConfig(), nopLogger).WithClock(clock)
	replies := conf.DefaultPromptsConfig().Replies
	p.executor = NewExecutor(users, ledger, p.outbox, guardrail, augmenter, replies, nopLogger).WithClock(clock)
	p.interpreter = NewInterpreterService(p.gate, p.parser, p.executor, p.outbox, replies.TemporaryError, nopLogger).WithClock(clock)
	return p
}

// run parses and executes text for sender, bypassing the gate
func (p *pipeline) run(t *testing.T, sender, text string) string {
	t.Helper()
	reply, err := p.executor.Execute(context.Background(), sender, p.parser.Parse(context.Background(), text))
	require.NoError(t, err)
	return reply
}
