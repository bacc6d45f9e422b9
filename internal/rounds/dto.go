package rounds

import (
	"time"

	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/google/uuid"
)

// CreateRoundInput captures a new round. A nil OrderCapacity takes the configured default.
type CreateRoundInput struct {
	Title           string
	Location        string
	StartTime       time.Time
	EndTime         time.Time
	MaxParticipants int
	OrderCapacity   *int
}

// UpdateRoundInput changes only the fields that are set.
type UpdateRoundInput struct {
	Title           *string
	Location        *string
	StartTime       *time.Time
	EndTime         *time.Time
	MaxParticipants *int
	OrderCapacity   *int
}

// RoundDTO is the public shape of a round.
type RoundDTO struct {
	ID              uuid.UUID         `json:"id"`
	Title           string            `json:"title"`
	Status          enums.RoundStatus `json:"status"`
	Location        string            `json:"location"`
	StartTime       time.Time         `json:"start_time"`
	EndTime         time.Time         `json:"end_time"`
	MaxParticipants int               `json:"max_participants"`
	OrderCapacity   int               `json:"order_capacity"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// FromModel maps a persisted round into its public shape.
func FromModel(round models.Round) RoundDTO {
	return RoundDTO{
		ID:              round.ID,
		Title:           round.Title,
		Status:          round.Status,
		Location:        round.Location,
		StartTime:       round.StartTime,
		EndTime:         round.EndTime,
		MaxParticipants: round.MaxParticipants,
		OrderCapacity:   round.OrderCapacity,
		CreatedAt:       round.CreatedAt,
		UpdatedAt:       round.UpdatedAt,
	}
}

// FromModels maps a slice of rounds, never returning nil.
func FromModels(rows []models.Round) []RoundDTO {
	out := make([]RoundDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}

// CapacityStatus reports the derived counters of a round.
type CapacityStatus struct {
	RoundID             uuid.UUID         `json:"round_id"`
	Status              enums.RoundStatus `json:"status"`
	OrderCapacity       int               `json:"order_capacity"`
	CurrentOrderCount   int64             `json:"current_order_count"`
	AvailableOrderSlots int64             `json:"available_order_slots"`
	MaxParticipants     int               `json:"max_participants"`
	CurrentParticipants int64             `json:"current_participants"`
	Waitlisted          int64             `json:"waitlisted"`
	OpenSpots           int64             `json:"open_spots"`
}

// CancelResult reports what a round cancellation released.
type CancelResult struct {
	Round           RoundDTO `json:"round"`
	UnboundOrders   int64    `json:"unbound_orders"`
	RejectedSignups int64    `json:"rejected_signups"`
}
