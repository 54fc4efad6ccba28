package service

import (
	"context"
	"sync"
	"time"

	"github.com/mateodaza/sippy-sub000/internal/biz/usecase"
	"github.com/rs/zerolog"
)

// GateSweeper periodically evicts expired ingestion-gate entries
type GateSweeper struct {
	gate     *usecase.IngestionGate
	interval time.Duration
	now      usecase.Clock
	logger   zerolog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewGateSweeper creates a new gate sweeper
func NewGateSweeper(gate *usecase.IngestionGate, interval time.Duration, logger zerolog.Logger) *GateSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &GateSweeper{
		gate:     gate,
		interval: interval,
		now:      time.Now,
		logger:   logger.With().Str("component", "sweeper").Logger(),
	}
}

// Start starts the sweep loop
func (s *GateSweeper) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.stopCh)
	s.logger.Info().Dur("interval", s.interval).Msg("started")
}

// Stop stops the sweep loop and waits for it to exit
func (s *GateSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("stopped")
}

// Run starts the sweeper and stops it when ctx is done
func (s *GateSweeper) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	s.Stop()
	return nil
}

func (s *GateSweeper) loop(stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.gate.Sweep(context.Background(), s.now())
		case <-stopCh:
			return
		}
	}
}
