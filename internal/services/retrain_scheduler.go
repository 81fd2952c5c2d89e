package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Retrainer runs one training pass.
type Retrainer interface {
	Retrain(ctx context.Context, userID string) error
}

// RetrainerFunc adapts a function to Retrainer.
type RetrainerFunc func(ctx context.Context, userID string) error

func (f RetrainerFunc) Retrain(ctx context.Context, userID string) error { return f(ctx, userID) }

// RetrainSchedulerConfig holds configuration for the retrain scheduler
type RetrainSchedulerConfig struct {
	// Interval between full retrains (default: 1h)
	Interval time.Duration

	// RunOnStart trains once immediately when the scheduler starts
	RunOnStart bool
}

// DefaultRetrainSchedulerConfig returns sensible defaults
func DefaultRetrainSchedulerConfig() RetrainSchedulerConfig {
	return RetrainSchedulerConfig{
		Interval:   time.Hour,
		RunOnStart: true,
	}
}

// RetrainScheduler periodically retrains on every user's transactions
type RetrainScheduler struct {
	retrainer Retrainer
	config    RetrainSchedulerConfig

	mu      sync.Mutex
	running bool
	runs    int
	lastErr error
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRetrainScheduler creates a new retrain scheduler
func NewRetrainScheduler(retrainer Retrainer, config RetrainSchedulerConfig) *RetrainScheduler {
	if config.Interval <= 0 {
		config.Interval = DefaultRetrainSchedulerConfig().Interval
	}
	return &RetrainScheduler{
		retrainer: retrainer,
		config:    config,
	}
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *RetrainScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("retrain scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	slog.InfoContext(ctx, "Retrain scheduler started",
		"interval", s.config.Interval,
		"run_on_start", s.config.RunOnStart)

	return nil
}

// Stop gracefully stops the scheduler and waits for an in-flight run.
func (s *RetrainScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Retrain scheduler stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Retrain scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *RetrainScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Runs returns how many retrains ran and the error of the last one.
func (s *RetrainScheduler) Runs() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs, s.lastErr
}

func (s *RetrainScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if s.config.RunOnStart {
		s.runOnce(ctx)
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *RetrainScheduler) runOnce(ctx context.Context) {
	start := time.Now()
	err := s.retrainer.Retrain(ctx, "")

	s.mu.Lock()
	s.runs++
	s.lastErr = err
	s.mu.Unlock()

	if err != nil {
		slog.ErrorContext(ctx, "Scheduled retrain failed", "error", err)
		return
	}
	slog.InfoContext(ctx, "Scheduled retrain completed", "duration", time.Since(start))
}
