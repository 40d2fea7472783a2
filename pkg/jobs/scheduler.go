package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task is the unit of work a scheduler drives.
type Task func(ctx context.Context) error

// Scheduler runs a named task on a fixed interval and accepts manual
// kicks in between. A kick while the task is running is dropped; the
// task's own concurrency guard decides what overlap means.
type Scheduler struct {
	name     string
	interval time.Duration
	task     Task
	logger   *zap.Logger

	kicks  chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
}

// NewScheduler builds a scheduler. An interval of zero disables the
// periodic run; the scheduler then only fires on Kick.
func NewScheduler(name string, interval time.Duration, task Task, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger,
		kicks:    make(chan struct{}, 1),
	}
}

// Start launches the scheduler loop. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "scheduler", s.name, "interval", s.interval)
}

// Stop cancels the loop and waits for the current run to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped", "scheduler", s.name)
}

// Kick requests an immediate run. Returns an error when the scheduler
// is not started; a pending kick is coalesced, not queued.
func (s *Scheduler) Kick() error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return fmt.Errorf("scheduler %s not started", s.name)
	}

	select {
	case s.kicks <- struct{}{}:
	default:
	}
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.run(ctx)
		case <-s.kicks:
			s.run(ctx)
		}
	}
}

func (s *Scheduler) run(ctx context.Context) {
	if err := s.task(ctx); err != nil {
		s.logger.Sugar().Warnw("scheduled task failed", "scheduler", s.name, "error", err)
	}
}
