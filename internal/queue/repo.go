package queue

import (
	"context"

	"github.com/angelmondragon/streetmed-backend/internal/repo"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/angelmondragon/streetmed-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository reads the pending pool.
type Repository interface {
	ListPending(ctx context.Context, params pagination.Params) ([]models.Order, int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds the queue read model bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

// ListPending returns one page of pending orders, oldest request first, plus the total.
func (r *repository) ListPending(ctx context.Context, params pagination.Params) ([]models.Order, int64, error) {
	params = params.Normalize()
	query := r.base.DB(ctx).Model(&models.Order{}).Where("status = ?", enums.OrderStatusPending)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Order
	err := query.Session(&gorm.Session{}).
		Order("request_time ASC, id ASC").
		Offset(params.Offset()).
		Limit(pagination.LimitWithBuffer(params.Size)).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
