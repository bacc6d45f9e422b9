package assignments

import (
	"time"

	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/google/uuid"
)

// AssignmentDTO is the public shape of an assignment.
type AssignmentDTO struct {
	ID           uuid.UUID              `json:"id"`
	OrderID      uuid.UUID              `json:"order_id"`
	VolunteerID  int64                  `json:"volunteer_id"`
	Status       enums.AssignmentStatus `json:"status"`
	AcceptedAt   time.Time              `json:"accepted_at"`
	StartedAt    *time.Time             `json:"started_at,omitempty"`
	CompletedAt  *time.Time             `json:"completed_at,omitempty"`
	CancelledAt  *time.Time             `json:"cancelled_at,omitempty"`
	CancelReason *string                `json:"cancel_reason,omitempty"`
}

// FromModel maps a persisted assignment into its public shape.
func FromModel(a models.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:           a.ID,
		OrderID:      a.OrderID,
		VolunteerID:  a.VolunteerID,
		Status:       a.Status,
		AcceptedAt:   a.AcceptedAt,
		StartedAt:    a.StartedAt,
		CompletedAt:  a.CompletedAt,
		CancelledAt:  a.CancelledAt,
		CancelReason: a.CancelReason,
	}
}

// FromModels maps a slice of assignments, never returning nil.
func FromModels(rows []models.Assignment) []AssignmentDTO {
	out := make([]AssignmentDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}

// StaleReport summarizes one sweep over long-held accepted assignments.
type StaleReport struct {
	Stale    int `json:"stale"`
	Released int `json:"released"`
}
