package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/streetmed-backend/pkg/logger"
	"github.com/angelmondragon/streetmed-backend/pkg/metrics"
)

const defaultTick = time.Minute

// ServiceParams configure the scheduler loop.
type ServiceParams struct {
	Logger   *logger.Logger
	Schedule *Schedule
	Lock     Lock
	Metrics  *metrics.SchedulerMetrics
	// Tick is how often the loop checks for due jobs.
	Tick time.Duration
}

// Service wakes on every tick, takes the shared lease when at least one job is
// due, and runs the due jobs in registration order.
type Service struct {
	logg     *logger.Logger
	schedule *Schedule
	lock     Lock
	metrics  *metrics.SchedulerMetrics
	tick     time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	schedule := params.Schedule
	if schedule == nil {
		schedule = NewSchedule()
	}
	tick := params.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &Service{
		logg:     params.Logger,
		schedule: schedule,
		lock:     params.Lock,
		metrics:  params.Metrics,
		tick:     tick,
		now:      time.Now,
	}, nil
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.sweep(ctx)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	if err := s.runDue(ctx); err != nil {
		s.logg.Error(ctx, "scheduler sweep finished with errors", err)
	}
}

// runDue returns the combined error of every job that failed this tick.
func (s *Service) runDue(ctx context.Context) error {
	now := s.now().UTC()
	if !s.schedule.pending(now) {
		return nil
	}

	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("scheduler lock: %w", err)
	}
	if !locked {
		s.metrics.IncLockContended()
		s.logg.Debug(ctx, "scheduler lock held by another worker")
		return nil
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release scheduler lock", relErr)
		}
	}()

	var errs error
	for _, job := range s.schedule.Due(now) {
		errs = multierr.Append(errs, s.runJob(ctx, job))
	}
	return errs
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "scheduler.sweep"})
	started := time.Now()
	err := job.Run(jobCtx)
	took := time.Since(started)
	s.metrics.ObserveSweep(job.Name(), took, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "sweep failed", err)
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	s.logg.Debug(jobCtx, "sweep done")
	return nil
}
