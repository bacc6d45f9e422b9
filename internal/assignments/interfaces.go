package assignments

import (
	"context"
	"time"

	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/angelmondragon/streetmed-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the reads and conditional writes behind the assignment race.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	SetOrderStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Assignment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.AssignmentStatus, updates map[string]any) (bool, error)
	ListByVolunteer(ctx context.Context, volunteerID int64, statuses []enums.AssignmentStatus, params pagination.Params) ([]models.Assignment, int64, error)
	ListAcceptedBefore(ctx context.Context, cutoff time.Time) ([]models.Assignment, error)
}

// QueueInvalidator is told whenever the set of pending orders may have changed.
type QueueInvalidator interface {
	Invalidate(ctx context.Context)
}

// AcceptObserver receives the outcome label of every accept attempt.
type AcceptObserver interface {
	ObserveAccept(outcome string)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context) {}

type noopObserver struct{}

func (noopObserver) ObserveAccept(string) {}
