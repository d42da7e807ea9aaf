package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	pkgerrors "github.com/tinkerly/tinkerly-backend/pkg/errors"
	"github.com/tinkerly/tinkerly-backend/pkg/logger"
	"github.com/tinkerly/tinkerly-backend/pkg/metrics"
)

const defaultInterval = 30 * 24 * time.Hour

// ErrLocked means another instance holds the cron lock.
var ErrLocked = errors.New("cron lock held by another instance")

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs registered jobs on a fixed cadence or on demand. Without a
// Lock, jobs run unguarded.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run executes a cycle immediately and then every interval until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	if err := s.runCycle(ctx); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.runCycle(ctx); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

// Trigger runs one named job under the lock and returns the rows it touched.
func (s *Service) Trigger(ctx context.Context, name string) (int64, error) {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return 0, pkgerrors.Newf(pkgerrors.CodeNotFound, "cron job %s is not registered", name)
	}
	var affected int64
	err := s.withLock(ctx, func() error {
		var runErr error
		affected, runErr = s.runJob(ctx, job)
		return runErr
	})
	if errors.Is(err, ErrLocked) {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cron job already running")
	}
	return affected, err
}

func (s *Service) runCycle(ctx context.Context) error {
	err := s.withLock(ctx, func() error {
		s.logg.Info(ctx, "scheduled run starting")
		var errs error
		for _, job := range s.registry.Jobs() {
			if _, err := s.runJob(ctx, job); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", job.Name(), err))
			}
		}
		s.logg.Info(ctx, "scheduled run complete")
		return errs
	})
	if errors.Is(err, ErrLocked) {
		s.logg.Info(ctx, "another cron instance is running; skipping this cycle")
		return nil
	}
	return err
}

func (s *Service) withLock(ctx context.Context, fn func() error) error {
	if s.lock == nil {
		return fn()
	}
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cron lock")
	}
	if !locked {
		return ErrLocked
	}
	defer func() {
		if relErr := s.lock.Release(ctx); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()
	return fn()
}

func (s *Service) runJob(ctx context.Context, job Job) (int64, error) {
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": job.Name(), "event": "cron.job"})
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	affected, err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithFields(jobCtx, map[string]any{"duration_ms": duration.Milliseconds(), "rows_affected": affected})
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return affected, err
	}
	s.metrics.AddAffected(job.Name(), affected)
	s.metrics.IncSuccess(job.Name())
	s.logg.Info(jobCtx, "job completed")
	return affected, nil
}
