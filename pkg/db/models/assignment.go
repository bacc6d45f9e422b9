package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/streetmed-backend/pkg/enums"
)

// Assignment records a volunteer's claim on an order. Rows are never deleted.
type Assignment struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index"`
	VolunteerID  int64                  `gorm:"column:volunteer_id;not null;index"`
	Status       enums.AssignmentStatus `gorm:"column:status;type:text;not null;default:'accepted'"`
	AcceptedAt   time.Time              `gorm:"column:accepted_at;not null"`
	StartedAt    *time.Time             `gorm:"column:started_at"`
	CompletedAt  *time.Time             `gorm:"column:completed_at"`
	CancelledAt  *time.Time             `gorm:"column:cancelled_at"`
	CancelReason *string                `gorm:"column:cancel_reason;type:text"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
