package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/streetmed-backend/pkg/enums"
)

// Signup is a volunteer's request to work a round.
type Signup struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	RoundID       uuid.UUID          `gorm:"column:round_id;type:uuid;not null;index"`
	VolunteerID   int64              `gorm:"column:volunteer_id;not null"`
	RequestedRole string             `gorm:"column:requested_role;type:text;not null"`
	Status        enums.SignupStatus `gorm:"column:status;type:text;not null;default:'waitlisted'"`
	DecidedAt     *time.Time         `gorm:"column:decided_at"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
