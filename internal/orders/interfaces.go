package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.Order, error)
	FindActiveAssignment(ctx context.Context, orderID uuid.UUID) (*models.Assignment, error)
	CloseActiveAssignment(ctx context.Context, orderID uuid.UUID, status enums.AssignmentStatus, at time.Time, reason *string) (int64, error)
}

// QueueInvalidator is told whenever the set of pending orders may have changed.
type QueueInvalidator interface {
	Invalidate(ctx context.Context)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context) {}
