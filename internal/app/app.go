package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/api"
	"github.com/mateodaza/sippy-sub000/internal/biz/domain"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/mateodaza/sippy-sub000/internal/biz/usecase"
	"github.com/mateodaza/sippy-sub000/internal/conf"
	"github.com/mateodaza/sippy-sub000/internal/data"
	"github.com/mateodaza/sippy-sub000/internal/infra/openai"
	"github.com/mateodaza/sippy-sub000/internal/service"
	"github.com/rs/zerolog"
)

// App holds the assembled interpreter: stores, usecases and services
type App struct {
	Repos       *data.Repositories
	Phones      *domain.PhoneNormalizer
	Gate        *usecase.IngestionGate
	Parser      *usecase.ParserUsecase
	Augmenter   *usecase.AugmenterUsecase
	Guardrail   *usecase.GuardrailUsecase
	Executor    *service.Executor
	Interpreter *service.InterpreterService
	Sweeper     *service.GateSweeper
}

// New wires every layer from cfg. Replies go out through messages.
func New(ctx context.Context, cfg *conf.Config, messages repo.MessageRepo, logger zerolog.Logger) (*App, error) {
	opts := data.Options{
		UsersDBPath:    cfg.Store.UsersDBPath(),
		LedgerDBPath:   cfg.Store.LedgerDBPath(),
		OpeningBalance: cfg.Store.OpeningBalance,
		Gate:           cfg.Gate.ToGateStoreConfig(),
		RedisURL:       cfg.Gate.RedisURL,
		SystemPrompt:   cfg.Prompts.Classifier.SystemPrompt,
		ExplainPrompt:  cfg.Prompts.Classifier.ExplainPrompt,
		Messages:       messages,
	}
	if cfg.Augmenter.Enabled {
		chat := openai.NewClient(cfg.Augmenter.APIKey, cfg.Augmenter.BaseURL, cfg.Augmenter.Model)
		opts.Chat = chat
		logger.Info().Str("model", chat.Model()).Msg("augmenter enabled")
	}

	repos, err := data.NewRepositories(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create repositories: %w", err)
	}

	a := &App{
		Repos:  repos,
		Phones: cfg.Phone.NewPhoneNormalizer(),
	}

	a.Gate = usecase.NewIngestionGate(repos.Gate, cfg.Gate.MaxPerWindow, logger)
	a.Augmenter = usecase.NewAugmenterUsecase(repos.Classifier, cfg.ToAugmenterConfig(), logger)
	a.Parser = usecase.NewParserUsecase(a.Phones, a.Augmenter, cfg.Augmenter.CrossCheckSends, logger)
	a.Guardrail = usecase.NewGuardrailUsecase(repos.Users, cfg.Guardrail.ToGuardrailConfig(), logger)

	a.Executor = service.NewExecutor(repos.Users, repos.Ledger, messages, a.Guardrail, a.Augmenter, cfg.Prompts.Replies, logger)
	a.Interpreter = service.NewInterpreterService(a.Gate, a.Parser, a.Executor, messages, cfg.Prompts.Replies.TemporaryError, logger)
	a.Sweeper = service.NewGateSweeper(a.Gate, cfg.Gate.SweepInterval, logger)

	return a, nil
}

// DebugAPI returns the operator API handler over the app's stores
func (a *App) DebugAPI(cfg *conf.Config) *api.Handler {
	return api.NewHandler(a.Parser, a.Phones, a.Repos.Users, a.Repos.Ledger, cfg.Guardrail.ToGuardrailConfig())
}

// Close releases the stores
func (a *App) Close() error {
	a.Sweeper.Stop()
	return a.Repos.Close()
}

// NewLogger returns a console logger in debug mode and a JSON logger otherwise
func NewLogger(debug bool, out io.Writer) zerolog.Logger {
	if debug {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(zerolog.DebugLevel).
			With().
			Timestamp().
			Logger()
	}
	return zerolog.New(out).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()
}
