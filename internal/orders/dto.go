package orders

import (
	"time"

	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/angelmondragon/streetmed-backend/pkg/types"
	"github.com/google/uuid"
)

// CreateOrderInput captures a client's order request. A nil UserID places a guest order.
type CreateOrderInput struct {
	Items           types.OrderItems
	DeliveryAddress string
	PhoneNumber     string
	Notes           *string
	UserID          *int64
}

// Actor identifies who is acting on an order.
type Actor struct {
	UserID int64
	Role   enums.ActorRole
}

// IsAdmin reports whether the actor bypasses ownership checks.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.ActorRoleAdmin
}

// OrderDTO is the public shape of an order.
type OrderDTO struct {
	ID              uuid.UUID         `json:"id"`
	Status          enums.OrderStatus `json:"status"`
	Items           types.OrderItems  `json:"items"`
	DeliveryAddress string            `json:"delivery_address"`
	PhoneNumber     string            `json:"phone_number"`
	Notes           *string           `json:"notes,omitempty"`
	UserID          int64             `json:"user_id"`
	IsGuest         bool              `json:"is_guest"`
	RoundID         *uuid.UUID        `json:"round_id,omitempty"`
	RequestTime     time.Time         `json:"request_time"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// FromModel maps a persisted order into its public shape.
func FromModel(order models.Order) OrderDTO {
	userID := models.GuestUserID
	if order.UserID != nil {
		userID = *order.UserID
	}
	return OrderDTO{
		ID:              order.ID,
		Status:          order.Status,
		Items:           order.Items,
		DeliveryAddress: order.DeliveryAddress,
		PhoneNumber:     order.PhoneNumber,
		Notes:           order.Notes,
		UserID:          userID,
		IsGuest:         order.IsGuest(),
		RoundID:         order.RoundID,
		RequestTime:     order.RequestTime,
		UpdatedAt:       order.UpdatedAt,
	}
}

// FromModels maps a slice of orders, never returning nil.
func FromModels(orders []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(orders))
	for _, order := range orders {
		out = append(out, FromModel(order))
	}
	return out
}
