package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/streetmed-backend/pkg/enums"
)

// Round is a scheduled outreach shift that volunteers join and orders ride on.
// Order and participant counts are derived from child rows, never stored.
type Round struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Title           string            `gorm:"column:title;type:text;not null"`
	Status          enums.RoundStatus `gorm:"column:status;type:text;not null;default:'scheduled'"`
	Location        string            `gorm:"column:location;type:text;not null"`
	StartTime       time.Time         `gorm:"column:start_time;not null;index"`
	EndTime         time.Time         `gorm:"column:end_time;not null"`
	MaxParticipants int               `gorm:"column:max_participants;not null"`
	OrderCapacity   int               `gorm:"column:order_capacity;not null;default:20"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
