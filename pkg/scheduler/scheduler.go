package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/syncer"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
)

const (
	// DefaultPollInterval is the default interval between sync cycles
	DefaultPollInterval = 5 * time.Minute

	TriggerScheduler = "scheduler"
)

// Runner executes one sync invocation.
type Runner interface {
	Run(ctx context.Context, kind models.Kind, override *time.Time) (*syncer.Report, error)
}

// Config holds configuration for the scheduler
type Config struct {
	// PollInterval is how often a sync cycle starts
	PollInterval time.Duration

	// Kinds are synced in this order every cycle
	Kinds []models.Kind
}

// Scheduler periodically runs incremental syncs with no override.
type Scheduler struct {
	runner Runner
	config Config
	logger ectologger.Logger

	// Coordination
	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(runner Runner, config Config, logger ectologger.Logger) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if len(config.Kinds) == 0 {
		config.Kinds = models.Kinds
	}

	return &Scheduler{
		runner:   runner,
		config:   config,
		logger:   logger,
	}
}

// Start starts the poll loop in the background. The first cycle runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	stopCh := make(chan struct{})
	stoppedC := make(chan struct{})
	s.stopCh, s.stoppedC = stopCh, stoppedC
	s.mu.Unlock()

	s.logger.WithContext(ctx).Infof("Starting scheduler: poll_interval=%s kinds=%v",
		s.config.PollInterval, s.config.Kinds)

	go s.pollLoop(ctx, stopCh, stoppedC)
	return nil
}

// Stop stops the scheduler and waits for an in-flight cycle to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, stoppedC := s.stopCh, s.stoppedC
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping scheduler...")

	close(stopCh)

	select {
	case <-stoppedC:
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) pollLoop(ctx context.Context, stopCh <-chan struct{}, stoppedC chan<- struct{}) {
	defer close(stoppedC)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	s.RunCycle(ctx)

	for {
		select {
		case <-stopCh:
			s.logger.WithContext(ctx).Debug("Scheduler poll loop stopping")
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle syncs every configured kind in order. A held sync lock skips the
// rest of the cycle; any other failure is logged and the next kind still runs.
func (s *Scheduler) RunCycle(ctx context.Context) {
	ctx = fernctx.SetTrigger(ctx, TriggerScheduler)
	ctx, span := tracing.StartSpan(ctx, "Scheduler.RunCycle")
	defer span.End()

	start := time.Now()
	completed, failed := 0, 0
	for _, kind := range s.config.Kinds {
		runCtx := fernctx.SetRunID(ctx, uuid.New().String())
		_, err := s.runner.Run(runCtx, kind, nil)
		switch {
		case errors.Is(err, syncer.ErrSyncInProgress):
			metrics.RecordScheduledRun(string(kind), "skipped")
			s.logger.WithContext(runCtx).Infof("Sync already in progress, skipping cycle at %s", kind)
			return
		case err != nil:
			failed++
			metrics.RecordScheduledRun(string(kind), "failed")
			s.logger.WithContext(runCtx).WithError(err).Errorf("Scheduled %s sync failed", kind)
		default:
			completed++
			metrics.RecordScheduledRun(string(kind), "completed")
		}
	}

	s.logger.WithContext(ctx).Infof("Sync cycle completed: completed=%d failed=%d duration=%s",
		completed, failed, time.Since(start))
}
