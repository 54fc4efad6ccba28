package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/mateodaza/sippy-sub000/internal/api"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// maxWebhookBody bounds a webhook delivery; WhatsApp batches stay far below it
const maxWebhookBody = 1 << 20

// RouterOptions selects what the HTTP router exposes
type RouterOptions struct {
	Webhook      *WhatsAppWebhook // nil when WhatsApp is not the transport
	API          *api.Handler     // nil when the debug API is disabled
	MetricsToken string           // Bearer token for /metrics, empty for none
}

// NewRouter creates and configures the HTTP router
func NewRouter(logger zerolog.Logger, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(recordMetrics)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(logger.With().Str("component", "http").Logger()))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.With(bearerToken(opts.MetricsToken)).Handle("/metrics", promhttp.Handler())

	if opts.Webhook != nil {
		r.Route("/webhook", func(r chi.Router) {
			r.Get("/", opts.Webhook.Verify)
			r.With(maxBodySize(maxWebhookBody)).Post("/", opts.Webhook.Receive)
		})
	}

	if opts.API != nil {
		r.With(maxBodySize(64*1024)).Mount("/api", opts.API.Routes())
	}

	return r
}

// HTTPServer runs the router until its context is cancelled
type HTTPServer struct {
	server *http.Server
	logger zerolog.Logger
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(addr string, handler http.Handler, logger zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
		},
		logger: logger.With().Str("component", "http").Logger(),
	}
}

// Run serves until ctx is done, then shuts down gracefully
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.server.Addr).Msg("listening")
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("stopped")
	return nil
}
