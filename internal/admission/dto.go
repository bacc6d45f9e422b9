package admission

import "github.com/google/uuid"

// BindRequest is the admin payload for binding an order. A null round_id unbinds.
type BindRequest struct {
	RoundID *uuid.UUID `json:"round_id"`
}

// AutoAssignReport summarises one greedy auto-assign pass.
type AutoAssignReport struct {
	Bound            int `json:"bound"`
	Skipped          int `json:"skipped"`
	RoundsConsidered int `json:"rounds_considered"`
}
