package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/streetmed-backend/internal/repo"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	base repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.base.DB(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.base.DB(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.base.Locked(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// CompareAndSetStatus moves the order only if it still holds the expected status.
func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.base.DB(ctx).Where("id = ?", id).Delete(&models.Order{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByRound(ctx context.Context, roundID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	err := r.base.DB(ctx).
		Where("round_id = ?", roundID).
		Order("request_time ASC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// FindActiveAssignment returns nil without error when no assignment holds the order.
func (r *repository) FindActiveAssignment(ctx context.Context, orderID uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.base.DB(ctx).
		Where("order_id = ? AND status IN ?", orderID, enums.ActiveAssignmentStatuses).
		First(&assignment).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// CloseActiveAssignment ends whatever assignment currently holds the order.
func (r *repository) CloseActiveAssignment(ctx context.Context, orderID uuid.UUID, status enums.AssignmentStatus, at time.Time, reason *string) (int64, error) {
	updates := map[string]any{"status": status, "updated_at": at}
	switch status {
	case enums.AssignmentStatusCompleted:
		updates["completed_at"] = at
	case enums.AssignmentStatusCancelled:
		updates["cancelled_at"] = at
		updates["cancel_reason"] = reason
	}
	res := r.base.DB(ctx).
		Model(&models.Assignment{}).
		Where("order_id = ? AND status IN ?", orderID, enums.ActiveAssignmentStatuses).
		Updates(updates)
	return res.RowsAffected, res.Error
}
