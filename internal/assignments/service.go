package assignments

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/angelmondragon/streetmed-backend/pkg/metrics"
	"github.com/angelmondragon/streetmed-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const staleReleaseReason = "released: not started within the acceptance window"

// Service coordinates volunteers claiming and working pending orders.
type Service interface {
	Accept(ctx context.Context, orderID uuid.UUID, volunteerID int64) (*models.Assignment, error)
	Start(ctx context.Context, assignmentID uuid.UUID, volunteerID int64) (*models.Assignment, error)
	Complete(ctx context.Context, assignmentID uuid.UUID, volunteerID int64) (*models.Assignment, error)
	CancelAssignment(ctx context.Context, orderID uuid.UUID, volunteerID int64, reason *string) (*models.Assignment, error)
	ListMine(ctx context.Context, volunteerID int64, statuses []enums.AssignmentStatus, params pagination.Params) (pagination.Page[models.Assignment], error)
	SweepStale(ctx context.Context, cutoff time.Time, release bool) (StaleReport, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	queue    QueueInvalidator
	observer AcceptObserver
	now      func() time.Time
}

// NewService builds the assignment coordinator. Nil invalidator and observer are allowed.
func NewService(repo Repository, tx txRunner, queue QueueInvalidator, observer AcceptObserver) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("assignments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if queue == nil {
		queue = noopInvalidator{}
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &service{
		repo:     repo,
		tx:       tx,
		queue:    queue,
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Accept claims a pending order for the volunteer. When the volunteer already holds the
// order the existing assignment comes back together with an AlreadyAcceptedByYou error.
func (s *service) Accept(ctx context.Context, orderID uuid.UUID, volunteerID int64) (*models.Assignment, error) {
	if volunteerID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "volunteer identity missing")
	}

	var result *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return mapOrderLoadError(err)
		}

		active, err := repo.FindActiveByOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
		}
		if active != nil {
			if active.VolunteerID == volunteerID {
				result = active
				return pkgerrors.NewReason(pkgerrors.ReasonAlreadyAcceptedByYou, "you already accepted this order")
			}
			return pkgerrors.NewReason(pkgerrors.ReasonOrderAlreadyAccepted, "order was accepted by another volunteer")
		}
		if order.Status != enums.OrderStatusPending {
			return pkgerrors.NewReason(pkgerrors.ReasonOrderNotPending, fmt.Sprintf("order is %s", order.Status)).
				WithDetails(map[string]any{"status": order.Status})
		}

		ok, err := repo.SetOrderStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusProcessing)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
		}
		if !ok {
			return pkgerrors.NewReason(pkgerrors.ReasonOrderAlreadyAccepted, "order was accepted by another volunteer")
		}

		assignment := &models.Assignment{
			ID:          uuid.New(),
			OrderID:     order.ID,
			VolunteerID: volunteerID,
			Status:      enums.AssignmentStatusAccepted,
			AcceptedAt:  s.now(),
		}
		if err := repo.Create(ctx, assignment); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.NewReason(pkgerrors.ReasonOrderAlreadyAccepted, "order was accepted by another volunteer")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create assignment")
		}
		result = assignment
		return nil
	})
	s.observer.ObserveAccept(acceptOutcome(err))
	if err != nil {
		if pkgerrors.IsReason(err, pkgerrors.ReasonAlreadyAcceptedByYou) {
			return result, err
		}
		return nil, err
	}
	s.queue.Invalidate(ctx)
	return result, nil
}

func (s *service) Start(ctx context.Context, assignmentID uuid.UUID, volunteerID int64) (*models.Assignment, error) {
	var result *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadOwned(ctx, repo, assignmentID, volunteerID)
		if err != nil {
			return err
		}
		result = assignment
		if assignment.Status == enums.AssignmentStatusInProgress {
			return nil
		}
		if assignment.Status != enums.AssignmentStatusAccepted {
			return assignmentTransitionError(assignment.Status, enums.AssignmentStatusInProgress)
		}
		now := s.now()
		ok, err := repo.UpdateStatus(ctx, assignment.ID, enums.AssignmentStatusAccepted, enums.AssignmentStatusInProgress,
			map[string]any{"started_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start assignment")
		}
		if !ok {
			return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, "assignment changed concurrently")
		}
		assignment.Status = enums.AssignmentStatusInProgress
		assignment.StartedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Complete(ctx context.Context, assignmentID uuid.UUID, volunteerID int64) (*models.Assignment, error) {
	var result *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadOwned(ctx, repo, assignmentID, volunteerID)
		if err != nil {
			return err
		}
		result = assignment
		if assignment.Status == enums.AssignmentStatusCompleted {
			return nil
		}
		if assignment.Status != enums.AssignmentStatusInProgress {
			return assignmentTransitionError(assignment.Status, enums.AssignmentStatusCompleted)
		}

		now := s.now()
		ok, err := repo.UpdateStatus(ctx, assignment.ID, enums.AssignmentStatusInProgress, enums.AssignmentStatusCompleted,
			map[string]any{"completed_at": now})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete assignment")
		}
		if !ok {
			return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, "assignment changed concurrently")
		}
		ok, err = repo.SetOrderStatus(ctx, assignment.OrderID, enums.OrderStatusProcessing, enums.OrderStatusCompleted)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		if !ok {
			return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, "order is no longer processing")
		}
		assignment.Status = enums.AssignmentStatusCompleted
		assignment.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelAssignment gives the order back to the pending pool.
func (s *service) CancelAssignment(ctx context.Context, orderID uuid.UUID, volunteerID int64, reason *string) (*models.Assignment, error) {
	var result *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.LockOrder(ctx, orderID); err != nil {
			return mapOrderLoadError(err)
		}
		active, err := repo.FindActiveByOrder(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
		}
		if active == nil {
			return pkgerrors.NewReason(pkgerrors.ReasonNoActiveAssignment, "order has no active assignment")
		}
		if active.VolunteerID != volunteerID {
			return pkgerrors.NewReason(pkgerrors.ReasonNotOwner, "assignment belongs to another volunteer")
		}
		if err := s.release(ctx, repo, active, reason); err != nil {
			return err
		}
		result = active
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.queue.Invalidate(ctx)
	return result, nil
}

func (s *service) ListMine(ctx context.Context, volunteerID int64, statuses []enums.AssignmentStatus, params pagination.Params) (pagination.Page[models.Assignment], error) {
	for _, status := range statuses {
		if !status.IsValid() {
			return pagination.Page[models.Assignment]{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown assignment status %q", status))
		}
	}
	rows, total, err := s.repo.ListByVolunteer(ctx, volunteerID, statuses, params)
	if err != nil {
		return pagination.Page[models.Assignment]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list assignments")
	}
	return pagination.NewPage(params, rows, total), nil
}

// SweepStale finds accepted assignments older than cutoff. With release set each one is
// cancelled and its order reopened, one transaction per order.
func (s *service) SweepStale(ctx context.Context, cutoff time.Time, release bool) (StaleReport, error) {
	candidates, err := s.repo.ListAcceptedBefore(ctx, cutoff)
	if err != nil {
		return StaleReport{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stale assignments")
	}
	report := StaleReport{Stale: len(candidates)}
	if !release {
		return report, nil
	}

	reason := staleReleaseReason
	for _, candidate := range candidates {
		released := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			if _, err := repo.LockOrder(ctx, candidate.OrderID); err != nil {
				return mapOrderLoadError(err)
			}
			active, err := repo.FindActiveByOrder(ctx, candidate.OrderID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
			}
			// the volunteer may have started or cancelled since the candidate list was read
			if active == nil || active.ID != candidate.ID || active.Status != enums.AssignmentStatusAccepted {
				return nil
			}
			if err := s.release(ctx, repo, active, &reason); err != nil {
				return err
			}
			released = true
			return nil
		})
		if err != nil {
			return report, err
		}
		if released {
			report.Released++
		}
	}
	if report.Released > 0 {
		s.queue.Invalidate(ctx)
	}
	return report, nil
}

// release cancels an active assignment and returns its order to pending. The caller holds the order lock.
func (s *service) release(ctx context.Context, repo Repository, active *models.Assignment, reason *string) error {
	now := s.now()
	ok, err := repo.UpdateStatus(ctx, active.ID, active.Status, enums.AssignmentStatusCancelled,
		map[string]any{"cancelled_at": now, "cancel_reason": reason})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel assignment")
	}
	if !ok {
		return pkgerrors.NewReason(pkgerrors.ReasonNoActiveAssignment, "assignment changed concurrently")
	}
	ok, err = repo.SetOrderStatus(ctx, active.OrderID, enums.OrderStatusProcessing, enums.OrderStatusPending)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reopen order")
	}
	if !ok {
		return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, "order is no longer processing")
	}
	active.Status = enums.AssignmentStatusCancelled
	active.CancelledAt = &now
	active.CancelReason = reason
	return nil
}

// loadOwned locks the order and then the assignment, the same order Accept, CancelAssignment
// and the order store use. The status returned is the one read under both locks.
func (s *service) loadOwned(ctx context.Context, repo Repository, assignmentID uuid.UUID, volunteerID int64) (*models.Assignment, error) {
	peek, err := repo.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, mapAssignmentLoadError(err)
	}
	if peek.VolunteerID != volunteerID {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonNotOwner, "assignment belongs to another volunteer")
	}
	if _, err := repo.LockOrder(ctx, peek.OrderID); err != nil {
		return nil, mapOrderLoadError(err)
	}
	assignment, err := repo.FindByIDForUpdate(ctx, assignmentID)
	if err != nil {
		return nil, mapAssignmentLoadError(err)
	}
	return assignment, nil
}

func mapAssignmentLoadError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.NewReason(pkgerrors.ReasonAssignmentNotFound, "assignment not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
}

func assignmentTransitionError(from, to enums.AssignmentStatus) error {
	return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, fmt.Sprintf("assignment cannot move from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

func mapOrderLoadError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.NewReason(pkgerrors.ReasonOrderNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func acceptOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.IsReason(err, pkgerrors.ReasonOrderAlreadyAccepted):
		return metrics.OutcomeConflict
	case pkgerrors.As(err) != nil && pkgerrors.As(err).Code() != pkgerrors.CodeDependency:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
