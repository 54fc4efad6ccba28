package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mateodaza/sippy-sub000/internal/app"
	"github.com/mateodaza/sippy-sub000/internal/biz/repo"
	"github.com/mateodaza/sippy-sub000/internal/conf"
	"github.com/mateodaza/sippy-sub000/internal/data"
	"github.com/mateodaza/sippy-sub000/internal/infra/feishu"
	"github.com/mateodaza/sippy-sub000/internal/infra/whatsapp"
	"github.com/mateodaza/sippy-sub000/internal/server"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	// Load configuration
	cfg := conf.LoadFromEnv()

	logger := app.NewLogger(cfg.Debug, os.Stdout)
	if envErr != nil {
		logger.Debug().Msg("no .env file found, using environment variables")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Pick the transport that carries replies
	var (
		messages     repo.MessageRepo
		feishuClient *feishu.Client
		feishuRepo   *data.FeishuRepo
	)
	switch cfg.Transport.Kind {
	case conf.TransportWhatsApp:
		client := whatsapp.NewClient(cfg.WhatsApp.APIBaseURL, cfg.WhatsApp.PhoneNumberID, cfg.WhatsApp.AccessToken)
		messages = data.NewWhatsAppRepo(client)
	case conf.TransportFeishu:
		feishuClient = feishu.NewClient(cfg.Feishu.AppID, cfg.Feishu.AppSecret, logger)
		feishuRepo = data.NewFeishuRepo(feishuClient)
		messages = feishuRepo
	default:
		messages = data.NewOutboxRepo(logger)
	}

	a, err := app.New(ctx, cfg, messages, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close stores")
		}
	}()

	opts := server.RouterOptions{MetricsToken: cfg.Server.MetricsToken}
	var webhook *server.WhatsAppWebhook
	if cfg.Transport.Kind == conf.TransportWhatsApp {
		webhook = server.NewWhatsAppWebhook(a.Interpreter, a.Phones, cfg.WhatsApp.VerifyToken, cfg.WhatsApp.AppSecret, logger)
		opts.Webhook = webhook
	}
	if cfg.Server.DebugAPI {
		opts.API = a.DebugAPI(cfg)
		logger.Warn().Msg("debug API mounted at /api")
	}
	httpServer := server.NewHTTPServer(cfg.Server.Addr, server.NewRouter(logger, opts), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Sweeper.Run(gctx) })
	g.Go(func() error { return httpServer.Run(gctx) })
	if feishuClient != nil {
		feishuServer := server.NewFeishuServer(feishuClient, a.Interpreter, feishuRepo, a.Phones, logger)
		g.Go(func() error { return feishuServer.Run(gctx) })
	}

	logger.Info().
		Str("transport", cfg.Transport.Kind).
		Bool("augmenter", cfg.Augmenter.Enabled).
		Bool("redis_gate", cfg.Gate.RedisURL != "").
		Msg("starting Sippy interpreter")

	err = g.Wait()
	if webhook != nil {
		webhook.Wait()
	}
	logShutdown(logger, err)
}

func logShutdown(logger zerolog.Logger, err error) {
	if err != nil {
		logger.Error().Err(err).Msg("stopped with error")
		return
	}
	logger.Info().Msg("stopped")
}
