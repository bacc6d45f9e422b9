package assignments

import (
	"context"
	"time"

	"github.com/angelmondragon/streetmed-backend/internal/repo"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/angelmondragon/streetmed-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	base repo.Base
}

// NewRepository builds an assignments repository bound to the provided DB.
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

func (r *repository) SetOrderStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", orderID, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.base.DB(ctx).Create(assignment).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.base.DB(ctx).Where("id = ?", id).First(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.base.Locked(ctx).Where("id = ?", id).First(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// FindActiveByOrder returns nil without error when no assignment holds the order.
func (r *repository) FindActiveByOrder(ctx context.Context, orderID uuid.UUID) (*models.Assignment, error) {
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

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to enums.AssignmentStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to, "updated_at": time.Now().UTC()}
	for k, v := range updates {
		values[k] = v
	}
	res := r.base.DB(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByVolunteer(ctx context.Context, volunteerID int64, statuses []enums.AssignmentStatus, params pagination.Params) ([]models.Assignment, int64, error) {
	query := r.base.DB(ctx).Model(&models.Assignment{}).Where("volunteer_id = ?", volunteerID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	n := params.Normalize()
	var rows []models.Assignment
	err := query.
		Order("accepted_at DESC, id DESC").
		Offset(n.Offset()).
		Limit(pagination.LimitWithBuffer(n.Size)).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) ListAcceptedBefore(ctx context.Context, cutoff time.Time) ([]models.Assignment, error) {
	var rows []models.Assignment
	err := r.base.DB(ctx).
		Where("status = ? AND accepted_at < ?", enums.AssignmentStatusAccepted, cutoff.UTC()).
		Order("accepted_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
