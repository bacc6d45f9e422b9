package rounds

import (
	"context"
	"time"

	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/angelmondragon/streetmed-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence for rounds and the counters derived from their child rows.
// Admission and the lottery reuse it so every capacity check reads the same queries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, round *models.Round) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Round, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Round, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to enums.RoundStatus) (bool, error)
	List(ctx context.Context, statuses []enums.RoundStatus, params pagination.Params) ([]models.Round, int64, error)
	ListByStatusOrderedByStart(ctx context.Context, status enums.RoundStatus) ([]models.Round, error)
	CountLiveOrders(ctx context.Context, roundID uuid.UUID) (int64, error)
	CountSignups(ctx context.Context, roundID uuid.UUID, status enums.SignupStatus) (int64, error)
	UnbindPendingOrders(ctx context.Context, roundID uuid.UUID) (int64, error)
	RejectWaitlisted(ctx context.Context, roundID uuid.UUID, at time.Time) (int64, error)
}

// QueueInvalidator is told whenever queued orders may render differently.
type QueueInvalidator interface {
	Invalidate(ctx context.Context)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type noopInvalidator struct{}

func (noopInvalidator) Invalidate(context.Context) {}
