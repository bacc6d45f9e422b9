package signups

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

// Repository defines persistence for round sign-ups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, signup *models.Signup) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Signup, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Signup, error)
	FindActive(ctx context.Context, roundID uuid.UUID, volunteerID int64) (*models.Signup, error)
	ListByRound(ctx context.Context, roundID uuid.UUID, statuses []enums.SignupStatus) ([]models.Signup, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.SignupStatus, at time.Time) (bool, error)
	ConfirmWaitlisted(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository builds a sign-ups repository bound to the provided DB.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, signup *models.Signup) error {
	return r.base.DB(ctx).Create(signup).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Signup, error) {
	var signup models.Signup
	if err := r.base.DB(ctx).Where("id = ?", id).First(&signup).Error; err != nil {
		return nil, err
	}
	return &signup, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Signup, error) {
	var signup models.Signup
	if err := r.base.Locked(ctx).Where("id = ?", id).First(&signup).Error; err != nil {
		return nil, err
	}
	return &signup, nil
}

// FindActive returns nil without error when the volunteer holds no live sign-up for the round.
func (r *repository) FindActive(ctx context.Context, roundID uuid.UUID, volunteerID int64) (*models.Signup, error) {
	var signup models.Signup
	err := r.base.DB(ctx).
		Where("round_id = ? AND volunteer_id = ? AND status <> ?", roundID, volunteerID, enums.SignupStatusRejected).
		First(&signup).Error
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &signup, nil
}

// ListByRound returns sign-ups oldest first so draws see a stable input order.
func (r *repository) ListByRound(ctx context.Context, roundID uuid.UUID, statuses []enums.SignupStatus) ([]models.Signup, error) {
	query := r.base.DB(ctx).Where("round_id = ?", roundID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	var rows []models.Signup
	if err := query.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.SignupStatus, at time.Time) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.Signup{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "decided_at": at, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ConfirmWaitlisted confirms the given sign-ups that are still waitlisted.
func (r *repository) ConfirmWaitlisted(ctx context.Context, ids []uuid.UUID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.base.DB(ctx).
		Model(&models.Signup{}).
		Where("id IN ? AND status = ?", ids, enums.SignupStatusWaitlisted).
		Updates(map[string]any{"status": enums.SignupStatusConfirmed, "decided_at": at, "updated_at": at})
	return res.RowsAffected, res.Error
}
