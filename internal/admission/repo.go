package admission

import (
	"context"

	"github.com/angelmondragon/streetmed-backend/internal/repo"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	base repo.Base
}

// NewRepository builds the admission repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.base.Locked(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) SetRound(ctx context.Context, orderID uuid.UUID, roundID *uuid.UUID) error {
	return r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("round_id", roundID).Error
}

// ListUnboundOpen returns unbound non-terminal orders, oldest request first.
func (r *repository) ListUnboundOpen(ctx context.Context) ([]models.Order, error) {
	var rows []models.Order
	err := r.base.DB(ctx).
		Where("round_id IS NULL AND status IN ?", []enums.OrderStatus{enums.OrderStatusPending, enums.OrderStatusProcessing}).
		Order("request_time ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
