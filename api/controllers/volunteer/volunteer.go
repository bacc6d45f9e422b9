package volunteer

import (
	"context"
	"net/http"

	"github.com/angelmondragon/streetmed-backend/api/middleware"
	"github.com/angelmondragon/streetmed-backend/api/responses"
	"github.com/angelmondragon/streetmed-backend/api/validators"
	"github.com/angelmondragon/streetmed-backend/internal/assignments"
	"github.com/angelmondragon/streetmed-backend/internal/queue"
	"github.com/angelmondragon/streetmed-backend/internal/signups"
	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/angelmondragon/streetmed-backend/pkg/logger"
	"github.com/angelmondragon/streetmed-backend/pkg/pagination"
	"github.com/google/uuid"
)

// QueueReader serves the pending-order queue.
type QueueReader interface {
	ListPending(ctx context.Context, params pagination.Params) (queue.QueuePage, error)
}

type cancelAssignmentRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

type signupRequest struct {
	Role string `json:"role,omitempty" validate:"omitempty,max=64"`
}

func volunteerID(r *http.Request) (int64, error) {
	id, ok := middleware.UserIDFromContext(r.Context())
	if !ok || id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return id, nil
}

// Queue lists pending orders oldest first.
func Queue(view QueueReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if view == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "queue unavailable"))
			return
		}

		params, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := view.ListPending(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending orders"))
			return
		}

		responses.WriteSuccess(w, page)
	}
}

// Accept claims a pending order. Repeating the claim answers 200 with the held assignment.
func Accept(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vid, err := volunteerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.Accept(r.Context(), orderID, vid)
		if err != nil {
			if pkgerrors.IsReason(err, pkgerrors.ReasonAlreadyAcceptedByYou) && assignment != nil {
				responses.WriteAlreadyDone(w, err, assignments.FromModel(*assignment))
				return
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, assignments.FromModel(*assignment))
	}
}

// CancelAssignment hands an accepted order back to the queue.
func CancelAssignment(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vid, err := volunteerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelAssignmentRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := svc.CancelAssignment(r.Context(), orderID, vid, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, assignments.FromModel(*assignment))
	}
}

// Start marks an accepted assignment as being delivered.
func Start(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return progress(svc, logg, func(ctx context.Context, id uuid.UUID, vid int64) (*models.Assignment, error) {
		return svc.Start(ctx, id, vid)
	})
}

// Complete closes a started assignment and its order.
func Complete(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return progress(svc, logg, func(ctx context.Context, id uuid.UUID, vid int64) (*models.Assignment, error) {
		return svc.Complete(ctx, id, vid)
	})
}

func progress(svc assignments.Service, logg *logger.Logger, step func(context.Context, uuid.UUID, int64) (*models.Assignment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable"))
			return
		}

		assignmentID, err := validators.ParseUUIDParam(r, "assignmentId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vid, err := volunteerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		assignment, err := step(r.Context(), assignmentID, vid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, assignments.FromModel(*assignment))
	}
}

// ListMine pages the caller's assignments, newest first.
func ListMine(svc assignments.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "assignments service unavailable"))
			return
		}

		vid, err := volunteerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		statuses, err := validators.ParseStatusList(r, enums.ParseAssignmentStatus)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListMine(r.Context(), vid, statuses, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, pagination.Page[assignments.AssignmentDTO]{
			Items:   assignments.FromModels(page.Items),
			Page:    page.Page,
			Size:    page.Size,
			Total:   page.Total,
			HasNext: page.HasNext,
		})
	}
}

// SignUp joins the caller to a round's waitlist.
func SignUp(svc signups.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "signups service unavailable"))
			return
		}

		roundID, err := validators.ParseUUIDParam(r, "roundId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vid, err := volunteerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req signupRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		signup, err := svc.Create(r.Context(), roundID, vid, req.Role)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, signups.FromModel(*signup))
	}
}
