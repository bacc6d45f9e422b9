package rounds

import (
	"context"
	"time"

	"github.com/angelmondragon/streetmed-backend/internal/repo"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/angelmondragon/streetmed-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	base repo.Base
}

// NewRepository builds a rounds repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, round *models.Round) error {
	return r.base.DB(ctx).Create(round).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	var round models.Round
	if err := r.base.DB(ctx).Where("id = ?", id).First(&round).Error; err != nil {
		return nil, err
	}
	return &round, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Round, error) {
	var round models.Round
	if err := r.base.Locked(ctx).Where("id = ?", id).First(&round).Error; err != nil {
		return nil, err
	}
	return &round, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	values := map[string]any{"updated_at": time.Now().UTC()}
	for k, v := range updates {
		values[k] = v
	}
	return r.base.DB(ctx).Model(&models.Round{}).Where("id = ?", id).Updates(values).Error
}

func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.RoundStatus) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Round{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, statuses []enums.RoundStatus, params pagination.Params) ([]models.Round, int64, error) {
	query := r.base.DB(ctx).Model(&models.Round{})
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	n := params.Normalize()
	var rows []models.Round
	err := query.
		Order("start_time ASC, id ASC").
		Offset(n.Offset()).
		Limit(pagination.LimitWithBuffer(n.Size)).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) ListByStatusOrderedByStart(ctx context.Context, status enums.RoundStatus) ([]models.Round, error) {
	var rows []models.Round
	err := r.base.DB(ctx).
		Where("status = ?", status).
		Order("start_time ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CountLiveOrders counts bound orders that still occupy a slot.
func (r *repository) CountLiveOrders(ctx context.Context, roundID uuid.UUID) (int64, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.Order{}).
		Where("round_id = ? AND status <> ?", roundID, enums.OrderStatusCancelled).
		Count(&count).Error
	return count, err
}

func (r *repository) CountSignups(ctx context.Context, roundID uuid.UUID, status enums.SignupStatus) (int64, error) {
	var count int64
	err := r.base.DB(ctx).
		Model(&models.Signup{}).
		Where("round_id = ? AND status = ?", roundID, status).
		Count(&count).Error
	return count, err
}

func (r *repository) UnbindPendingOrders(ctx context.Context, roundID uuid.UUID) (int64, error) {
	res := r.base.DB(ctx).
		Model(&models.Order{}).
		Where("round_id = ? AND status = ?", roundID, enums.OrderStatusPending).
		Updates(map[string]any{"round_id": nil, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

func (r *repository) RejectWaitlisted(ctx context.Context, roundID uuid.UUID, at time.Time) (int64, error) {
	res := r.base.DB(ctx).
		Model(&models.Signup{}).
		Where("round_id = ? AND status = ?", roundID, enums.SignupStatusWaitlisted).
		Updates(map[string]any{"status": enums.SignupStatusRejected, "decided_at": at, "updated_at": at})
	return res.RowsAffected, res.Error
}
