package lottery

import (
	"github.com/angelmondragon/streetmed-backend/internal/signups"
	"github.com/google/uuid"
)

// Result describes one lottery draw.
type Result struct {
	RoundID      uuid.UUID           `json:"round_id"`
	OpenSpots    int64               `json:"open_spots"`
	Waitlisted   int                 `json:"waitlisted"`
	Selected     []uuid.UUID         `json:"selected"`
	Confirmed    []signups.SignupDTO `json:"confirmed"`
	StillWaiting int                 `json:"still_waitlisted"`
}
