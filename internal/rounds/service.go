package rounds

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/angelmondragon/streetmed-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service manages the round registry.
type Service interface {
	Create(ctx context.Context, input CreateRoundInput) (*models.Round, error)
	Update(ctx context.Context, roundID uuid.UUID, input UpdateRoundInput) (*models.Round, error)
	Get(ctx context.Context, roundID uuid.UUID) (*models.Round, error)
	List(ctx context.Context, statuses []enums.RoundStatus, params pagination.Params) (pagination.Page[models.Round], error)
	Start(ctx context.Context, roundID uuid.UUID) (*models.Round, error)
	Complete(ctx context.Context, roundID uuid.UUID) (*models.Round, error)
	Cancel(ctx context.Context, roundID uuid.UUID) (*CancelResult, error)
	Status(ctx context.Context, roundID uuid.UUID) (*CapacityStatus, error)
}

type service struct {
	repo            Repository
	tx              txRunner
	queue           QueueInvalidator
	defaultCapacity int
	now             func() time.Time
}

// NewService builds the round registry with the default per-round order capacity.
func NewService(repo Repository, tx txRunner, queue QueueInvalidator, defaultCapacity int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("rounds repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if defaultCapacity <= 0 {
		return nil, fmt.Errorf("default order capacity must be positive")
	}
	if queue == nil {
		queue = noopInvalidator{}
	}
	return &service{
		repo:            repo,
		tx:              tx,
		queue:           queue,
		defaultCapacity: defaultCapacity,
		now:             func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateRoundInput) (*models.Round, error) {
	capacity := s.defaultCapacity
	if input.OrderCapacity != nil {
		capacity = *input.OrderCapacity
	}
	round := &models.Round{
		ID:              uuid.New(),
		Title:           strings.TrimSpace(input.Title),
		Status:          enums.RoundStatusScheduled,
		Location:        strings.TrimSpace(input.Location),
		StartTime:       input.StartTime.UTC(),
		EndTime:         input.EndTime.UTC(),
		MaxParticipants: input.MaxParticipants,
		OrderCapacity:   capacity,
	}
	if err := validateRound(round); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, round); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create round")
	}
	return round, nil
}

func (s *service) Update(ctx context.Context, roundID uuid.UUID, input UpdateRoundInput) (*models.Round, error) {
	var updated *models.Round
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		round, err := lockRound(ctx, repo, roundID)
		if err != nil {
			return err
		}
		if round.Status != enums.RoundStatusScheduled {
			return pkgerrors.NewReason(pkgerrors.ReasonRoundNotSchedulable, "only scheduled rounds can be edited").
				WithDetails(map[string]any{"status": round.Status})
		}

		next := *round
		updates := map[string]any{}
		if input.Title != nil {
			next.Title = strings.TrimSpace(*input.Title)
			updates["title"] = next.Title
		}
		if input.Location != nil {
			next.Location = strings.TrimSpace(*input.Location)
			updates["location"] = next.Location
		}
		if input.StartTime != nil {
			next.StartTime = input.StartTime.UTC()
			updates["start_time"] = next.StartTime
		}
		if input.EndTime != nil {
			next.EndTime = input.EndTime.UTC()
			updates["end_time"] = next.EndTime
		}
		if input.MaxParticipants != nil {
			next.MaxParticipants = *input.MaxParticipants
			updates["max_participants"] = next.MaxParticipants
		}
		if input.OrderCapacity != nil {
			next.OrderCapacity = *input.OrderCapacity
			updates["order_capacity"] = next.OrderCapacity
		}
		if err := validateRound(&next); err != nil {
			return err
		}

		if input.OrderCapacity != nil {
			live, err := repo.CountLiveOrders(ctx, roundID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count round orders")
			}
			if int64(next.OrderCapacity) < live {
				return capacityBelowUsage("order_capacity", next.OrderCapacity, live)
			}
		}
		if input.MaxParticipants != nil {
			confirmed, err := repo.CountSignups(ctx, roundID, enums.SignupStatusConfirmed)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count confirmed signups")
			}
			if int64(next.MaxParticipants) < confirmed {
				return capacityBelowUsage("max_participants", next.MaxParticipants, confirmed)
			}
		}

		if err := repo.Update(ctx, roundID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update round")
		}
		next.UpdatedAt = s.now()
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) Get(ctx context.Context, roundID uuid.UUID) (*models.Round, error) {
	round, err := s.repo.FindByID(ctx, roundID)
	if err != nil {
		return nil, MapLoadError(err)
	}
	return round, nil
}

func (s *service) List(ctx context.Context, statuses []enums.RoundStatus, params pagination.Params) (pagination.Page[models.Round], error) {
	for _, status := range statuses {
		if !status.IsValid() {
			return pagination.Page[models.Round]{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown round status %q", status))
		}
	}
	rows, total, err := s.repo.List(ctx, statuses, params)
	if err != nil {
		return pagination.Page[models.Round]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list rounds")
	}
	return pagination.NewPage(params, rows, total), nil
}

func (s *service) Start(ctx context.Context, roundID uuid.UUID) (*models.Round, error) {
	return s.transition(ctx, roundID, enums.RoundStatusInProgress)
}

func (s *service) Complete(ctx context.Context, roundID uuid.UUID) (*models.Round, error) {
	return s.transition(ctx, roundID, enums.RoundStatusCompleted)
}

// Cancel ends the round. Pending orders go back to the unbound pool, processing and
// finished orders keep their binding, and waitlisted sign-ups are rejected.
func (s *service) Cancel(ctx context.Context, roundID uuid.UUID) (*CancelResult, error) {
	var result *CancelResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		round, err := s.applyTransition(ctx, repo, roundID, enums.RoundStatusCancelled)
		if err != nil {
			return err
		}
		unbound, err := repo.UnbindPendingOrders(ctx, roundID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unbind pending orders")
		}
		rejected, err := repo.RejectWaitlisted(ctx, roundID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reject waitlisted signups")
		}
		result = &CancelResult{Round: FromModel(*round), UnboundOrders: unbound, RejectedSignups: rejected}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result.UnboundOrders > 0 {
		s.queue.Invalidate(ctx)
	}
	return result, nil
}

func (s *service) Status(ctx context.Context, roundID uuid.UUID) (*CapacityStatus, error) {
	round, err := s.repo.FindByID(ctx, roundID)
	if err != nil {
		return nil, MapLoadError(err)
	}
	live, err := s.repo.CountLiveOrders(ctx, roundID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count round orders")
	}
	confirmed, err := s.repo.CountSignups(ctx, roundID, enums.SignupStatusConfirmed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count confirmed signups")
	}
	waitlisted, err := s.repo.CountSignups(ctx, roundID, enums.SignupStatusWaitlisted)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count waitlisted signups")
	}
	return &CapacityStatus{
		RoundID:             round.ID,
		Status:              round.Status,
		OrderCapacity:       round.OrderCapacity,
		CurrentOrderCount:   live,
		AvailableOrderSlots: nonNegative(int64(round.OrderCapacity) - live),
		MaxParticipants:     round.MaxParticipants,
		CurrentParticipants: confirmed,
		Waitlisted:          waitlisted,
		OpenSpots:           nonNegative(int64(round.MaxParticipants) - confirmed),
	}, nil
}

func (s *service) transition(ctx context.Context, roundID uuid.UUID, next enums.RoundStatus) (*models.Round, error) {
	var updated *models.Round
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		round, err := s.applyTransition(ctx, s.repo.WithTx(tx), roundID, next)
		if err != nil {
			return err
		}
		updated = round
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) applyTransition(ctx context.Context, repo Repository, roundID uuid.UUID, next enums.RoundStatus) (*models.Round, error) {
	round, err := lockRound(ctx, repo, roundID)
	if err != nil {
		return nil, err
	}
	if !round.Status.CanTransitionTo(next) {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, fmt.Sprintf("round cannot move from %s to %s", round.Status, next)).
			WithDetails(map[string]any{"from": round.Status, "to": next})
	}
	ok, err := repo.CompareAndSetStatus(ctx, roundID, round.Status, next)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update round status")
	}
	if !ok {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, "round status changed concurrently")
	}
	round.Status = next
	round.UpdatedAt = s.now()
	return round, nil
}

func lockRound(ctx context.Context, repo Repository, roundID uuid.UUID) (*models.Round, error) {
	round, err := repo.LockByID(ctx, roundID)
	if err != nil {
		return nil, MapLoadError(err)
	}
	return round, nil
}

// MapLoadError converts a round lookup failure into the public error taxonomy.
func MapLoadError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.NewReason(pkgerrors.ReasonRoundNotFound, "round not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load round")
}

func validateRound(round *models.Round) error {
	switch {
	case round.Title == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	case round.Location == "":
		return pkgerrors.New(pkgerrors.CodeValidation, "location is required")
	case round.StartTime.IsZero() || round.EndTime.IsZero():
		return pkgerrors.New(pkgerrors.CodeValidation, "start_time and end_time are required")
	case !round.StartTime.Before(round.EndTime):
		return pkgerrors.New(pkgerrors.CodeValidation, "start_time must be before end_time")
	case round.MaxParticipants <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "max_participants must be positive")
	case round.OrderCapacity <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "order_capacity must be positive")
	}
	return nil
}

func capacityBelowUsage(field string, requested int, used int64) error {
	return pkgerrors.NewReason(pkgerrors.ReasonCapacityBelowUsage, fmt.Sprintf("%s cannot drop below current usage", field)).
		WithDetails(map[string]any{"field": field, "requested": requested, "in_use": used})
}

func nonNegative(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
