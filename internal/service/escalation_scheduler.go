package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/dto"
)

type sweeper interface {
	Sweep(ctx context.Context) (*dto.SweepResult, error)
}

// EscalationScheduler runs sweeps on a fixed period until stopped. Sweeps
// never overlap within one scheduler.
type EscalationScheduler struct {
	sweeper  sweeper
	interval time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	running sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewEscalationScheduler builds a stopped scheduler.
func NewEscalationScheduler(sweeper sweeper, interval time.Duration, logger *zap.Logger) *EscalationScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EscalationScheduler{sweeper: sweeper, interval: interval, logger: logger}
}

// Start begins periodic sweeps, the first one immediately. Calling Start on
// a running scheduler is a no-op.
func (s *EscalationScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)
	s.logger.Info("escalation scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *EscalationScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("escalation scheduler stopped")
}

// RunOnce performs a sweep synchronously, waiting for any scheduled sweep
// to finish first.
func (s *EscalationScheduler) RunOnce(ctx context.Context) (*dto.SweepResult, error) {
	s.running.Lock()
	defer s.running.Unlock()
	return s.sweeper.Sweep(ctx)
}

func (s *EscalationScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *EscalationScheduler) tick(ctx context.Context) {
	result, err := s.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("escalation sweep failed", zap.Error(err))
		}
		return
	}
	s.logger.Debug("escalation sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("escalated", result.Escalated),
		zap.Duration("duration", result.Duration))
}
