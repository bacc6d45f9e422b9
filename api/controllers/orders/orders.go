package orders

import (
	"net/http"

	"github.com/angelmondragon/streetmed-backend/api/middleware"
	"github.com/angelmondragon/streetmed-backend/api/responses"
	"github.com/angelmondragon/streetmed-backend/api/validators"
	"github.com/angelmondragon/streetmed-backend/internal/admission"
	internalorders "github.com/angelmondragon/streetmed-backend/internal/orders"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/streetmed-backend/pkg/errors"
	"github.com/angelmondragon/streetmed-backend/pkg/logger"
	"github.com/angelmondragon/streetmed-backend/pkg/types"
)

type orderItemRequest struct {
	ItemName string  `json:"item_name" validate:"notblank,max=120"`
	Quantity int     `json:"quantity" validate:"gt=0"`
	Size     *string `json:"size,omitempty"`
	IsCustom bool    `json:"is_custom"`
}

type createOrderRequest struct {
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	DeliveryAddress string             `json:"delivery_address" validate:"notblank,max=500"`
	PhoneNumber     string             `json:"phone_number" validate:"required,phone"`
	Notes           *string            `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

func (req createOrderRequest) toInput() internalorders.CreateOrderInput {
	items := make(types.OrderItems, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, types.OrderItem{
			ItemName: validators.SanitizeString(item.ItemName, 120),
			Quantity: item.Quantity,
			Size:     item.Size,
			IsCustom: item.IsCustom,
		})
	}
	var notes *string
	if req.Notes != nil {
		if cleaned := validators.SanitizeString(*req.Notes, 1000); cleaned != "" {
			notes = &cleaned
		}
	}
	return internalorders.CreateOrderInput{
		Items:           items,
		DeliveryAddress: validators.SanitizeString(req.DeliveryAddress, 500),
		PhoneNumber:     validators.SanitizeString(req.PhoneNumber, 32),
		Notes:           notes,
	}
}

// Create places a new order. Anonymous callers place guest orders.
func Create(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := req.toInput()
		if userID, ok := middleware.UserIDFromContext(r.Context()); ok {
			input.UserID = &userID
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithOrderID(r.Context(), order.ID.String()), "order.created")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalorders.FromModel(*order))
	}
}

// Get returns one order. Clients may only read their own orders.
func Get(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if middleware.RoleFromContext(r.Context()) == enums.ActorRoleClient {
			userID, _ := middleware.UserIDFromContext(r.Context())
			if order.UserID == nil || *order.UserID != userID {
				responses.WriteError(r.Context(), logg, w, pkgerrors.NewReason(pkgerrors.ReasonNotOwner, "order belongs to another client"))
				return
			}
		}

		responses.WriteSuccess(w, internalorders.FromModel(*order))
	}
}

// Cancel withdraws an order on behalf of its owner or an admin.
func Cancel(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}
		actor := internalorders.Actor{UserID: userID, Role: middleware.RoleFromContext(r.Context())}

		order, err := svc.Cancel(r.Context(), orderID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			logg.Info(logg.WithOrderID(r.Context(), order.ID.String()), "order.cancelled")
		}
		responses.WriteSuccess(w, internalorders.FromModel(*order))
	}
}

// Delete removes a terminal order.
func Delete(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessMessage(w, http.StatusOK, "order deleted", map[string]string{"id": orderID.String()})
	}
}

// BindRound binds an order to a round, or unbinds it when round_id is null.
func BindRound(svc admission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admission service unavailable"))
			return
		}

		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req admission.BindRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.BindOrderToRound(r.Context(), orderID, req.RoundID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, internalorders.FromModel(*order))
	}
}

// AutoAssign spreads unbound open orders across rounds with spare capacity.
func AutoAssign(svc admission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admission service unavailable"))
			return
		}

		report, err := svc.AutoAssignUnboundOrders(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, report)
	}
}
