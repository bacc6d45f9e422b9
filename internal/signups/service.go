package signups

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/streetmed-backend/internal/rounds"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service lets volunteers join a round's waitlist.
type Service interface {
	Create(ctx context.Context, roundID uuid.UUID, volunteerID int64, role string) (*models.Signup, error)
	ListByRound(ctx context.Context, roundID uuid.UUID, statuses []enums.SignupStatus) ([]models.Signup, error)
}

type service struct {
	repo   Repository
	rounds rounds.Repository
	tx     txRunner
}

// NewService builds the sign-up service.
func NewService(repo Repository, roundsRepo rounds.Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("signups repository required")
	}
	if roundsRepo == nil {
		return nil, fmt.Errorf("rounds repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, rounds: roundsRepo, tx: tx}, nil
}

func (s *service) Create(ctx context.Context, roundID uuid.UUID, volunteerID int64, role string) (*models.Signup, error) {
	if volunteerID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "volunteer identity missing")
	}
	role = strings.TrimSpace(role)
	if role == "" {
		role = DefaultRole
	}

	var created *models.Signup
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		round, err := s.rounds.WithTx(tx).LockByID(ctx, roundID)
		if err != nil {
			return rounds.MapLoadError(err)
		}
		if round.Status != enums.RoundStatusScheduled {
			return pkgerrors.NewReason(pkgerrors.ReasonRoundNotSchedulable, "round is not accepting sign-ups").
				WithDetails(map[string]any{"status": round.Status})
		}

		repo := s.repo.WithTx(tx)
		existing, err := repo.FindActive(ctx, roundID, volunteerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing signup")
		}
		if existing != nil {
			return alreadySignedUp(existing)
		}

		signup := &models.Signup{
			ID:            uuid.New(),
			RoundID:       roundID,
			VolunteerID:   volunteerID,
			RequestedRole: role,
			Status:        enums.SignupStatusWaitlisted,
		}
		if err := repo.Create(ctx, signup); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.NewReason(pkgerrors.ReasonAlreadySignedUp, "volunteer already signed up for this round")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create signup")
		}
		created = signup
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *service) ListByRound(ctx context.Context, roundID uuid.UUID, statuses []enums.SignupStatus) ([]models.Signup, error) {
	for _, status := range statuses {
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown signup status %q", status))
		}
	}
	if _, err := s.rounds.FindByID(ctx, roundID); err != nil {
		return nil, rounds.MapLoadError(err)
	}
	rows, err := s.repo.ListByRound(ctx, roundID, statuses)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list signups")
	}
	return rows, nil
}

func alreadySignedUp(existing *models.Signup) error {
	return pkgerrors.NewReason(pkgerrors.ReasonAlreadySignedUp, "volunteer already signed up for this round").
		WithDetails(map[string]any{"signup_id": existing.ID, "status": existing.Status})
}
