package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/streetmed-backend/internal/admission"
	"github.com/angelmondragon/streetmed-backend/pkg/logger"
)

type autoAssigner interface {
	AutoAssignUnboundOrders(ctx context.Context) (admission.AutoAssignReport, error)
}

// AutoAssignJobParams configure the auto-assign job.
type AutoAssignJobParams struct {
	Logger    *logger.Logger
	Admission autoAssigner
}

// NewAutoAssignJob builds the job that binds unbound orders to upcoming rounds.
func NewAutoAssignJob(params AutoAssignJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Admission == nil {
		return nil, fmt.Errorf("admission service required")
	}
	return &autoAssignJob{logg: params.Logger, admission: params.Admission}, nil
}

type autoAssignJob struct {
	logg      *logger.Logger
	admission autoAssigner
}

func (j *autoAssignJob) Name() string { return "auto-assign" }

func (j *autoAssignJob) Run(ctx context.Context) error {
	report, err := j.admission.AutoAssignUnboundOrders(ctx)
	if err != nil {
		return fmt.Errorf("auto-assign unbound orders: %w", err)
	}
	ctx = j.logg.WithFields(ctx, map[string]any{
		"bound":             report.Bound,
		"skipped":           report.Skipped,
		"rounds_considered": report.RoundsConsidered,
	})
	j.logg.Info(ctx, "auto-assign pass complete")
	return nil
}
