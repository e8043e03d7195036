// Package scheduler runs the export batch on a cron schedule.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// BatchFunc runs one full batch. The scheduler guarantees runs never overlap:
// a tick that fires while a batch is still going is skipped with a warning.
type BatchFunc func(ctx context.Context) error

// Scheduler handles periodic batch runs
type Scheduler struct {
	run     BatchFunc
	cron    *cron.Cron
	logger  arbor.ILogger
	timeout time.Duration

	mu      sync.Mutex
	running bool
}

// NewScheduler creates a new batch scheduler
func NewScheduler(run BatchFunc, logger arbor.ILogger) *Scheduler {
	return &Scheduler{
		run:     run,
		cron:    cron.New(),
		logger:  logger,
		timeout: 2 * time.Hour,
	}
}

// Start begins scheduled execution on the given cron spec.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		// Default: daily at 06:00
		schedule = "0 6 * * *"
	}

	_, err := s.cron.AddFunc(schedule, s.runBatch)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info().
		Str("schedule", schedule).
		Msg("Export batch scheduler started")

	return nil
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("Export batch scheduler stopped")
}

// RunNow triggers an immediate batch run
func (s *Scheduler) RunNow() {
	s.logger.Info().Msg("Triggering immediate batch run")
	go s.runBatch()
}

func (s *Scheduler) runBatch() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn().Msg("Previous batch still running, skipping this tick")
		return
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	s.logger.Info().Msg("Starting scheduled export batch")

	if err := s.run(ctx); err != nil {
		s.logger.Error().
			Err(err).
			Dur("elapsed", time.Since(start)).
			Msg("Scheduled export batch failed")
		return
	}

	s.logger.Info().
		Dur("elapsed", time.Since(start)).
		Msg("Scheduled export batch completed")
}
