package admission

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/streetmed-backend/internal/rounds"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/angelmondragon/streetmed-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// errAlreadyBound stops auto-assign from moving an order someone bound in the meantime.
var errAlreadyBound = errors.New("order already bound")

// Service binds orders to rounds without exceeding round capacity.
type Service interface {
	BindOrderToRound(ctx context.Context, orderID uuid.UUID, roundID *uuid.UUID) (*models.Order, error)
	AutoAssignUnboundOrders(ctx context.Context) (AutoAssignReport, error)
}

type service struct {
	repo     Repository
	rounds   rounds.Repository
	tx       txRunner
	queue    QueueInvalidator
	observer Observer
}

// NewService builds the admission controller. Nil invalidator and observer are allowed.
func NewService(repo Repository, roundsRepo rounds.Repository, tx txRunner, queue QueueInvalidator, observer Observer) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("admission repository required")
	}
	if roundsRepo == nil {
		return nil, fmt.Errorf("rounds repository required")
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
	return &service{repo: repo, rounds: roundsRepo, tx: tx, queue: queue, observer: observer}, nil
}

// BindOrderToRound binds the order to the round, or unbinds it when roundID is nil.
func (s *service) BindOrderToRound(ctx context.Context, orderID uuid.UUID, roundID *uuid.UUID) (*models.Order, error) {
	order, changed, err := s.bind(ctx, orderID, roundID, false)
	s.observer.ObserveBind(bindOutcome(err))
	if err != nil {
		return nil, err
	}
	if changed {
		s.queue.Invalidate(ctx)
	}
	return order, nil
}

// AutoAssignUnboundOrders fills scheduled rounds, earliest first, with the oldest unbound orders.
func (s *service) AutoAssignUnboundOrders(ctx context.Context) (AutoAssignReport, error) {
	var report AutoAssignReport

	candidates, err := s.rounds.ListByStatusOrderedByStart(ctx, enums.RoundStatusScheduled)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list scheduled rounds")
	}
	orders, err := s.repo.ListUnboundOpen(ctx)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unbound orders")
	}
	report.RoundsConsidered = len(candidates)

	next := 0
	for _, round := range candidates {
		if next >= len(orders) {
			break
		}
		roundID := round.ID
		for next < len(orders) {
			_, _, err := s.bind(ctx, orders[next].ID, &roundID, true)
			if err == nil {
				report.Bound++
				next++
				continue
			}
			if pkgerrors.IsReason(err, pkgerrors.ReasonRoundFull) || pkgerrors.IsReason(err, pkgerrors.ReasonRoundNotSchedulable) {
				break
			}
			if errors.Is(err, errAlreadyBound) || pkgerrors.IsReason(err, pkgerrors.ReasonInvalidTransition) || pkgerrors.IsReason(err, pkgerrors.ReasonOrderNotFound) {
				report.Skipped++
				next++
				continue
			}
			s.observer.ObserveAutoAssign(report.Bound, report.Skipped)
			if report.Bound > 0 {
				s.queue.Invalidate(ctx)
			}
			return report, err
		}
	}
	report.Skipped += len(orders) - next

	s.observer.ObserveAutoAssign(report.Bound, report.Skipped)
	if report.Bound > 0 {
		s.queue.Invalidate(ctx)
	}
	return report, nil
}

// bind locks the target round before the order. Transactions that touch several rows lock
// them as round, then order, then assignment.
func (s *service) bind(ctx context.Context, orderID uuid.UUID, roundID *uuid.UUID, onlyUnbound bool) (*models.Order, bool, error) {
	var (
		result  *models.Order
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		roundsRepo := s.rounds.WithTx(tx)

		var round *models.Round
		if roundID != nil {
			locked, err := roundsRepo.LockByID(ctx, *roundID)
			if err != nil {
				return rounds.MapLoadError(err)
			}
			round = locked
		}

		order, err := repo.LockOrder(ctx, orderID)
		if err != nil {
			return mapOrderLoadError(err)
		}
		if onlyUnbound && order.RoundID != nil {
			return errAlreadyBound
		}
		if order.Status.IsTerminal() {
			return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, fmt.Sprintf("%s orders cannot change round", order.Status)).
				WithDetails(map[string]any{"status": order.Status})
		}
		if sameRound(order.RoundID, roundID) {
			result = order
			return nil
		}

		if round != nil {
			if !round.Status.AcceptsOrders() {
				return pkgerrors.NewReason(pkgerrors.ReasonRoundNotSchedulable, fmt.Sprintf("round is %s", round.Status)).
					WithDetails(map[string]any{"status": round.Status})
			}
			live, err := roundsRepo.CountLiveOrders(ctx, round.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count round orders")
			}
			if live >= int64(round.OrderCapacity) {
				return pkgerrors.NewReason(pkgerrors.ReasonRoundFull, "round has no order capacity left").
					WithDetails(map[string]any{"order_capacity": round.OrderCapacity, "current_order_count": live})
			}
		}

		if err := repo.SetRound(ctx, order.ID, roundID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind order to round")
		}
		order.RoundID = roundID
		result = order
		changed = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return result, changed, nil
}

func sameRound(current, requested *uuid.UUID) bool {
	if current == nil || requested == nil {
		return current == nil && requested == nil
	}
	return *current == *requested
}

func mapOrderLoadError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.NewReason(pkgerrors.ReasonOrderNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func bindOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.IsReason(err, pkgerrors.ReasonRoundFull):
		return metrics.OutcomeConflict
	case pkgerrors.As(err) != nil && pkgerrors.As(err).Code() != pkgerrors.CodeDependency:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
