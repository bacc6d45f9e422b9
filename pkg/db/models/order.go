package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/angelmondragon/streetmed-backend/pkg/types"
)

// GuestUserID marks orders placed without an account.
const GuestUserID int64 = -1

// Order is a client's supply request waiting to be delivered on a round.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Items           types.OrderItems  `gorm:"column:items;type:jsonb;serializer:json;not null"`
	DeliveryAddress string            `gorm:"column:delivery_address;type:text;not null"`
	PhoneNumber     string            `gorm:"column:phone_number;type:text;not null"`
	Notes           *string           `gorm:"column:notes;type:text"`
	UserID          *int64            `gorm:"column:user_id"`
	RoundID         *uuid.UUID        `gorm:"column:round_id;type:uuid;index"`
	RequestTime     time.Time         `gorm:"column:request_time;not null;index"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// IsGuest reports whether the order was placed without an account.
func (o Order) IsGuest() bool {
	return o.UserID == nil || *o.UserID == GuestUserID
}

// OwnedBy reports whether the given account placed the order.
func (o Order) OwnedBy(userID int64) bool {
	return !o.IsGuest() && *o.UserID == userID
}
