package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/streetmed-backend/internal/assignments"
	"github.com/angelmondragon/streetmed-backend/pkg/logger"
	"go.uber.org/multierr"
)

type staleSweeper interface {
	SweepStale(ctx context.Context, cutoff time.Time, release bool) (assignments.StaleReport, error)
}

// StaleAssignmentJobParams configure the stale assignment sweep.
// ReleaseAfter <= 0 keeps the job report-only.
type StaleAssignmentJobParams struct {
	Logger       *logger.Logger
	Assignments  staleSweeper
	ReportAfter  time.Duration
	ReleaseAfter time.Duration
}

// NewStaleAssignmentJob builds the job that reports and optionally reopens assignments
// accepted but never started.
func NewStaleAssignmentJob(params StaleAssignmentJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Assignments == nil {
		return nil, fmt.Errorf("assignments service required")
	}
	if params.ReportAfter <= 0 && params.ReleaseAfter <= 0 {
		return nil, fmt.Errorf("report or release window required")
	}
	return &staleAssignmentJob{
		logg:         params.Logger,
		assignments:  params.Assignments,
		reportAfter:  params.ReportAfter,
		releaseAfter: params.ReleaseAfter,
		now:          time.Now,
	}, nil
}

type staleAssignmentJob struct {
	logg         *logger.Logger
	assignments  staleSweeper
	reportAfter  time.Duration
	releaseAfter time.Duration
	now          func() time.Time
}

func (j *staleAssignmentJob) Name() string { return "stale-assignments" }

func (j *staleAssignmentJob) Run(ctx context.Context) error {
	var errs []error
	now := j.now().UTC()

	if j.reportAfter > 0 {
		report, err := j.assignments.SweepStale(ctx, now.Add(-j.reportAfter), false)
		if err != nil {
			errs = append(errs, fmt.Errorf("report stale assignments: %w", err))
		} else if report.Stale > 0 {
			reportCtx := j.logg.WithFields(ctx, map[string]any{"stale": report.Stale, "older_than": j.reportAfter.String()})
			j.logg.Warn(reportCtx, "accepted assignments not started")
		}
	}

	if j.releaseAfter > 0 {
		report, err := j.assignments.SweepStale(ctx, now.Add(-j.releaseAfter), true)
		if err != nil {
			errs = append(errs, fmt.Errorf("release stale assignments: %w", err))
		} else if report.Released > 0 {
			releaseCtx := j.logg.WithFields(ctx, map[string]any{"released": report.Released, "older_than": j.releaseAfter.String()})
			j.logg.Info(releaseCtx, "stale assignments released back to the queue")
		}
	}

	return multierr.Combine(errs...)
}
