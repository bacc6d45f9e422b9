package admission

import (
	"context"

	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository covers the order side of round admission.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	SetRound(ctx context.Context, orderID uuid.UUID, roundID *uuid.UUID) error
	ListUnboundOpen(ctx context.Context) ([]models.Order, error)
}

// QueueInvalidator is told whenever a queued order changes its binding.
type QueueInvalidator interface {
	Invalidate(ctx context.Context)
}

// Observer receives admission outcomes.
type Observer interface {
	ObserveBind(outcome string)
	ObserveAutoAssign(bound, skipped int)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context) {}

type noopObserver struct{}

func (noopObserver) ObserveBind(string)          {}
func (noopObserver) ObserveAutoAssign(int, int) {}
