package lottery

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/streetmed-backend/internal/rounds"
	"github.com/angelmondragon/streetmed-backend/internal/signups"
	"github.com/angelmondragon/streetmed-backend/pkg/db"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/angelmondragon/streetmed-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service fills round participant slots from the waitlist.
type Service interface {
	RunLottery(ctx context.Context, roundID uuid.UUID) (*Result, error)
	ConfirmSignup(ctx context.Context, signupID uuid.UUID) (*models.Signup, error)
	RejectSignup(ctx context.Context, signupID uuid.UUID) (*models.Signup, error)
}

type service struct {
	signups  signups.Repository
	rounds   rounds.Repository
	tx       txRunner
	drawer   Drawer
	observer Observer
	now      func() time.Time
}

// NewService builds the lottery engine. A nil observer is allowed.
func NewService(signupsRepo signups.Repository, roundsRepo rounds.Repository, tx txRunner, drawer Drawer, observer Observer) (Service, error) {
	if signupsRepo == nil {
		return nil, fmt.Errorf("signups repository required")
	}
	if roundsRepo == nil {
		return nil, fmt.Errorf("rounds repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if drawer == nil {
		return nil, fmt.Errorf("drawer required")
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &service{
		signups:  signupsRepo,
		rounds:   roundsRepo,
		tx:       tx,
		drawer:   drawer,
		observer: observer,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// RunLottery confirms a random subset of the waitlist sized to the round's open spots.
func (s *service) RunLottery(ctx context.Context, roundID uuid.UUID) (*Result, error) {
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		roundsRepo := s.rounds.WithTx(tx)
		signupsRepo := s.signups.WithTx(tx)

		round, err := roundsRepo.LockByID(ctx, roundID)
		if err != nil {
			return rounds.MapLoadError(err)
		}
		if round.Status != enums.RoundStatusScheduled {
			return pkgerrors.NewReason(pkgerrors.ReasonRoundNotSchedulable, fmt.Sprintf("lottery cannot run on a %s round", round.Status)).
				WithDetails(map[string]any{"status": round.Status})
		}

		confirmed, err := roundsRepo.CountSignups(ctx, roundID, enums.SignupStatusConfirmed)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count confirmed signups")
		}
		waitlist, err := signupsRepo.ListByRound(ctx, roundID, []enums.SignupStatus{enums.SignupStatusWaitlisted})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list waitlisted signups")
		}

		open := int64(round.MaxParticipants) - confirmed
		if open < 0 {
			open = 0
		}
		result = &Result{
			RoundID:    roundID,
			OpenSpots:  open,
			Waitlisted: len(waitlist),
			Selected:   []uuid.UUID{},
			Confirmed:  []signups.SignupDTO{},
		}
		if open == 0 || len(waitlist) == 0 {
			result.StillWaiting = len(waitlist)
			return nil
		}

		candidates := make([]uuid.UUID, 0, len(waitlist))
		for _, signup := range waitlist {
			candidates = append(candidates, signup.ID)
		}
		selected := s.drawer.Draw(candidates, int(open))

		now := s.now()
		written, err := signupsRepo.ConfirmWaitlisted(ctx, selected, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm selected signups")
		}
		if written != int64(len(selected)) {
			return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, "waitlist changed while the lottery ran").
				WithDetails(map[string]any{"selected": len(selected), "confirmed": written})
		}

		picked := make(map[uuid.UUID]struct{}, len(selected))
		for _, id := range selected {
			picked[id] = struct{}{}
		}
		for _, signup := range waitlist {
			if _, ok := picked[signup.ID]; !ok {
				continue
			}
			signup.Status = enums.SignupStatusConfirmed
			decided := now
			signup.DecidedAt = &decided
			result.Confirmed = append(result.Confirmed, signups.FromModel(signup))
		}
		result.Selected = selected
		result.StillWaiting = len(waitlist) - len(selected)
		return nil
	})
	if err != nil {
		s.observer.ObserveLottery(lotteryOutcome(err), 0)
		return nil, err
	}
	s.observer.ObserveLottery(metrics.OutcomeSuccess, len(result.Selected))
	return result, nil
}

// ConfirmSignup lets an admin confirm a waitlisted volunteer while the round has room.
func (s *service) ConfirmSignup(ctx context.Context, signupID uuid.UUID) (*models.Signup, error) {
	return s.decide(ctx, signupID, func(round *models.Round, signup *models.Signup, roundsRepo rounds.Repository) (bool, error) {
		switch signup.Status {
		case enums.SignupStatusConfirmed:
			return false, nil
		case enums.SignupStatusRejected:
			return false, signupTransitionError(signup.Status, enums.SignupStatusConfirmed)
		}
		if round.Status == enums.RoundStatusCompleted || round.Status == enums.RoundStatusCancelled {
			return false, pkgerrors.NewReason(pkgerrors.ReasonRoundNotSchedulable, fmt.Sprintf("round is %s", round.Status)).
				WithDetails(map[string]any{"status": round.Status})
		}
		confirmed, err := roundsRepo.CountSignups(ctx, round.ID, enums.SignupStatusConfirmed)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count confirmed signups")
		}
		if confirmed >= int64(round.MaxParticipants) {
			return false, pkgerrors.NewReason(pkgerrors.ReasonRoundFull, "round has no participant spots left").
				WithDetails(map[string]any{"max_participants": round.MaxParticipants, "current_participants": confirmed})
		}
		return true, nil
	}, enums.SignupStatusConfirmed)
}

// RejectSignup removes a volunteer from the round. Rejecting twice is a no-op.
func (s *service) RejectSignup(ctx context.Context, signupID uuid.UUID) (*models.Signup, error) {
	return s.decide(ctx, signupID, func(_ *models.Round, signup *models.Signup, _ rounds.Repository) (bool, error) {
		return signup.Status != enums.SignupStatusRejected, nil
	}, enums.SignupStatusRejected)
}

type decision func(round *models.Round, signup *models.Signup, roundsRepo rounds.Repository) (bool, error)

// decide locks the round before the sign-up so admin overrides serialise with lottery runs.
func (s *service) decide(ctx context.Context, signupID uuid.UUID, check decision, next enums.SignupStatus) (*models.Signup, error) {
	var result *models.Signup
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		roundsRepo := s.rounds.WithTx(tx)
		signupsRepo := s.signups.WithTx(tx)

		peek, err := signupsRepo.FindByID(ctx, signupID)
		if err != nil {
			return mapSignupLoadError(err)
		}
		round, err := roundsRepo.LockByID(ctx, peek.RoundID)
		if err != nil {
			return rounds.MapLoadError(err)
		}
		signup, err := signupsRepo.FindByIDForUpdate(ctx, signupID)
		if err != nil {
			return mapSignupLoadError(err)
		}

		apply, err := check(round, signup, roundsRepo)
		if err != nil {
			return err
		}
		if !apply {
			result = signup
			return nil
		}

		now := s.now()
		ok, err := signupsRepo.CompareAndSetStatus(ctx, signup.ID, signup.Status, next, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update signup status")
		}
		if !ok {
			return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, "signup status changed concurrently")
		}
		signup.Status = next
		signup.DecidedAt = &now
		result = signup
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func signupTransitionError(from, to enums.SignupStatus) error {
	return pkgerrors.NewReason(pkgerrors.ReasonInvalidTransition, fmt.Sprintf("signup cannot move from %s to %s", from, to)).
		WithDetails(map[string]any{"from": from, "to": to})
}

func mapSignupLoadError(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.NewReason(pkgerrors.ReasonSignupNotFound, "signup not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load signup")
}

func lotteryOutcome(err error) string {
	if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeDependency {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeError
}
