package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service owns the order lifecycle outside of the assignment race.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error)
	Delete(ctx context.Context, orderID uuid.UUID) error
	ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.Order, error)
}

type service struct {
	repo  Repository
	tx    txRunner
	queue QueueInvalidator
	now   func() time.Time
}

// NewService builds the order service. A nil invalidator disables queue cache busting.
func NewService(repo Repository, tx txRunner, queue QueueInvalidator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if queue == nil {
		queue = noopInvalidator{}
	}
	return &service{
		repo:  repo,
		tx:    tx,
		queue: queue,
		now:   func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*models.Order, error) {
	if err := input.Items.Validate(); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	address := strings.TrimSpace(input.DeliveryAddress)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery_address is required")
	}
	phone := strings.TrimSpace(input.PhoneNumber)
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "phone_number is required")
	}

	userID := models.GuestUserID
	if input.UserID != nil {
		userID = *input.UserID
	}

	order := &models.Order{
		ID:              uuid.New(),
		Status:          enums.OrderStatusPending,
		Items:           input.Items,
		DeliveryAddress: address,
		PhoneNumber:     phone,
		Notes:           input.Notes,
		UserID:          &userID,
		RequestTime:     s.now(),
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	s.queue.Invalidate(ctx)
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err)
	}
	return order, nil
}

// Transition moves an order along the status machine. Processing is only reachable through a
// volunteer accept, and completion requires the active assignment to be in progress.
func (s *service) Transition(ctx context.Context, orderID uuid.UUID, next enums.OrderStatus) (*models.Order, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", next))
	}
	if next == enums.OrderStatusProcessing {
		return nil, pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, "orders enter processing only when a volunteer accepts them").
			WithDetails(map[string]any{"to": next})
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		if !order.Status.CanTransitionTo(next) {
			return invalidTransition(order.Status, next)
		}
		if next == enums.OrderStatusCompleted {
			if err := requireStartedAssignment(ctx, repo, order.ID); err != nil {
				return err
			}
		}
		if err := s.applyStatus(ctx, repo, order, next, nil); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.queue.Invalidate(ctx)
	return updated, nil
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID, actor Actor) (*models.Order, error) {
	var updated *models.Order
	changed := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		if !actor.IsAdmin() && !order.OwnedBy(actor.UserID) {
			return pkgerrors.NewReason(pkgerrors.ReasonNotOwner, "order belongs to another client")
		}
		updated = order
		if order.Status == enums.OrderStatusCancelled {
			return nil
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusCancelled) {
			return invalidTransition(order.Status, enums.OrderStatusCancelled)
		}
		reason := "order cancelled"
		if err := s.applyStatus(ctx, repo, order, enums.OrderStatusCancelled, &reason); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.queue.Invalidate(ctx)
	}
	return updated, nil
}

func (s *service) Delete(ctx context.Context, orderID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			return mapLoadError(err)
		}
		if !order.Status.IsTerminal() {
			return pkgerrors.NewReason(pkgerrors.ReasonNotTerminal, "only completed or cancelled orders can be deleted").
				WithDetails(map[string]any{"status": order.Status})
		}
		deleted, err := repo.Delete(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete order")
		}
		if !deleted {
			return pkgerrors.NewReason(pkgerrors.ReasonOrderNotFound, "order not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.queue.Invalidate(ctx)
	return nil
}

func (s *service) ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.Order, error) {
	orders, err := s.repo.ListByRound(ctx, roundID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list round orders")
	}
	return orders, nil
}

// applyStatus writes next with a compare-and-swap and closes the active assignment when
// the order leaves processing.
func (s *service) applyStatus(ctx context.Context, repo Repository, order *models.Order, next enums.OrderStatus, reason *string) error {
	ok, err := repo.CompareAndSetStatus(ctx, order.ID, order.Status, next)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, "order status changed concurrently")
	}
	if order.Status == enums.OrderStatusProcessing {
		closeAs := enums.AssignmentStatusCancelled
		if next == enums.OrderStatusCompleted {
			closeAs = enums.AssignmentStatusCompleted
			reason = nil
		}
		if _, err := repo.CloseActiveAssignment(ctx, order.ID, closeAs, s.now(), reason); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close active assignment")
		}
	}
	order.Status = next
	order.UpdatedAt = s.now()
	return nil
}

func requireStartedAssignment(ctx context.Context, repo Repository, orderID uuid.UUID) error {
	active, err := repo.FindActiveAssignment(ctx, orderID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active assignment")
	}
	if active == nil {
		return pkgerrors.NewReason(pkgerrors.ReasonNoActiveAssignment, "order has no active assignment")
	}
	if active.Status != enums.AssignmentStatusInProgress {
		return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, "the assignment has not been started").
			WithDetails(map[string]any{"assignment_status": active.Status})
	}
	return nil
}

func invalidTransition(from, to enums.OrderStatus) error {
	return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, fmt.Sprintf("order cannot move from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

func mapLoadError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.NewReason(pkgerrors.ReasonOrderNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}
