package signups

import (
	"time"

	"github.com/angelmondragon/streetmed-backend/pkg/db/models"
	"github.com/angelmondragon/streetmed-backend/pkg/enums"
	"github.com/google/uuid"
)

// DefaultRole is recorded when a volunteer does not ask for a specific role.
const DefaultRole = "general"

// SignupDTO is the public shape of a sign-up.
type SignupDTO struct {
	ID            uuid.UUID          `json:"id"`
	RoundID       uuid.UUID          `json:"round_id"`
	VolunteerID   int64              `json:"volunteer_id"`
	RequestedRole string             `json:"requested_role"`
	Status        enums.SignupStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	DecidedAt     *time.Time         `json:"decided_at,omitempty"`
}

// FromModel maps a persisted sign-up into its public shape.
func FromModel(s models.Signup) SignupDTO {
	return SignupDTO{
		ID:            s.ID,
		RoundID:       s.RoundID,
		VolunteerID:   s.VolunteerID,
		RequestedRole: s.RequestedRole,
		Status:        s.Status,
		CreatedAt:     s.CreatedAt,
		DecidedAt:     s.DecidedAt,
	}
}

// FromModels maps a slice of sign-ups, never returning nil.
func FromModels(rows []models.Signup) []SignupDTO {
	out := make([]SignupDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}
