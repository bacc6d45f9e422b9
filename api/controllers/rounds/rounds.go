package rounds

import (
	"net/http"
	"time"

	"github.com/angelmondragon/streetmed-backend/api/responses"
	"github.com/angelmondragon/streetmed-backend/api/validators"
	"github.com/angelmondragon/streetmed-backend/internal/lottery"
	internalorders "github.com/angelmondragon/streetmed-backend/internal/orders"
	internalrounds "github.com/angelmondragon/streetmed-backend/internal/rounds"
	"github.com/angelmondragon/streetmed-backend/internal/signups"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/angelmondragon/streetmed-backend/pkg/logger"
	"github.com/angelmondragon/streetmed-backend/pkg/pagination"
)

type createRoundRequest struct {
	Title           string    `json:"title" validate:"required,max=200"`
	Location        string    `json:"location" validate:"required,max=500"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	EndTime         time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	MaxParticipants int       `json:"max_participants" validate:"gt=0"`
	OrderCapacity   *int      `json:"order_capacity,omitempty" validate:"omitempty,gt=0"`
}

type updateRoundRequest struct {
	Title           *string    `json:"title,omitempty" validate:"omitempty,max=200"`
	Location        *string    `json:"location,omitempty" validate:"omitempty,max=500"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	MaxParticipants *int       `json:"max_participants,omitempty" validate:"omitempty,gt=0"`
	OrderCapacity   *int       `json:"order_capacity,omitempty" validate:"omitempty,gt=0"`
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}

// Create schedules a new round.
func Create(svc internalrounds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("rounds"))
			return
		}

		var req createRoundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		round, err := svc.Create(r.Context(), internalrounds.CreateRoundInput{
			Title:           validators.SanitizeString(req.Title, 200),
			Location:        validators.SanitizeString(req.Location, 500),
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			MaxParticipants: req.MaxParticipants,
			OrderCapacity:   req.OrderCapacity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithRoundID(r.Context(), round.ID.String()), "round.created")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalrounds.FromModel(*round))
	}
}

// Update edits the provided fields of a round.
func Update(svc internalrounds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("rounds"))
			return
		}

		roundID, err := validators.ParseUUIDParam(r, "roundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req updateRoundRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		round, err := svc.Update(r.Context(), roundID, internalrounds.UpdateRoundInput{
			Title:           req.Title,
			Location:        req.Location,
			StartTime:       req.StartTime,
			EndTime:         req.EndTime,
			MaxParticipants: req.MaxParticipants,
			OrderCapacity:   req.OrderCapacity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, internalrounds.FromModel(*round))
	}
}

// Get returns one round.
func Get(svc internalrounds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("rounds"))
			return
		}

		roundID, err := validators.ParseUUIDParam(r, "roundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		round, err := svc.Get(r.Context(), roundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, internalrounds.FromModel(*round))
	}
}

// List pages rounds by start time, optionally filtered by ?status=.
func List(svc internalrounds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("rounds"))
			return
		}

		params, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		statuses, err := validators.ParseStatusList(r, enums.ParseRoundStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.List(r.Context(), statuses, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, pagination.Page[internalrounds.RoundDTO]{
			Items:   internalrounds.FromModels(page.Items),
			Page:    page.Page,
			Size:    page.Size,
			Total:   page.Total,
			HasNext: page.HasNext,
		})
	}
}

// Start moves a scheduled round into progress.
func Start(svc internalrounds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("rounds"))
			return
		}

		roundID, err := validators.ParseUUIDParam(r, "roundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		round, err := svc.Start(r.Context(), roundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, internalrounds.FromModel(*round))
	}
}

// Complete closes a round that is in progress.
func Complete(svc internalrounds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("rounds"))
			return
		}

		roundID, err := validators.ParseUUIDParam(r, "roundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		round, err := svc.Complete(r.Context(), roundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, internalrounds.FromModel(*round))
	}
}

// Cancel calls off a round and releases its pending orders and waitlist.
func Cancel(svc internalrounds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("rounds"))
			return
		}

		roundID, err := validators.ParseUUIDParam(r, "roundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Cancel(r.Context(), roundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithRoundID(r.Context(), roundID.String())
			ctx = logg.WithFields(ctx, map[string]any{
				"unbound_orders":   result.UnboundOrders,
				"rejected_signups": result.RejectedSignups,
			})
			logg.Info(ctx, "round.cancelled")
		}
		responses.WriteSuccess(w, result)
	}
}

// Status reports the round's capacity counters.
func Status(svc internalrounds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("rounds"))
			return
		}

		roundID, err := validators.ParseUUIDParam(r, "roundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status, err := svc.Status(r.Context(), roundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, status)
	}
}

// Orders lists the orders bound to a round.
func Orders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("orders"))
			return
		}

		roundID, err := validators.ParseUUIDParam(r, "roundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByRound(r.Context(), roundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, internalorders.FromModels(rows))
	}
}

// Signups lists a round's sign-ups in arrival order, optionally filtered by ?status=.
func Signups(svc signups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("signups"))
			return
		}

		roundID, err := validators.ParseUUIDParam(r, "roundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		statuses, err := validators.ParseStatusList(r, enums.ParseSignupStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByRound(r.Context(), roundID, statuses)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, signups.FromModels(rows))
	}
}

// Lottery draws waitlisted volunteers into the round's open spots.
func Lottery(svc lottery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("lottery"))
			return
		}

		roundID, err := validators.ParseUUIDParam(r, "roundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RunLottery(r.Context(), roundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithRoundID(r.Context(), roundID.String())
			ctx = logg.WithFields(ctx, map[string]any{
				"open_spots": result.OpenSpots,
				"confirmed":  len(result.Confirmed),
			})
			logg.Info(ctx, "round.lottery_drawn")
		}
		responses.WriteSuccess(w, result)
	}
}

// ConfirmSignup admits one sign-up by hand.
func ConfirmSignup(svc lottery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("lottery"))
			return
		}

		signupID, err := validators.ParseUUIDParam(r, "signupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		signup, err := svc.ConfirmSignup(r.Context(), signupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, signups.FromModel(*signup))
	}
}

// RejectSignup turns one sign-up away.
func RejectSignup(svc lottery.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("lottery"))
			return
		}

		signupID, err := validators.ParseUUIDParam(r, "signupId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		signup, err := svc.RejectSignup(r.Context(), signupID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, signups.FromModel(*signup))
	}
}
