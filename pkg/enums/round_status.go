package enums

import "fmt"

// RoundStatus tracks the lifecycle of an outreach round.
type RoundStatus string

const (
	RoundStatusScheduled  RoundStatus = "scheduled"
	RoundStatusInProgress RoundStatus = "in_progress"
	RoundStatusCompleted  RoundStatus = "completed"
	RoundStatusCancelled  RoundStatus = "cancelled"
)

var validRoundStatuses = []RoundStatus{
	RoundStatusScheduled,
	RoundStatusInProgress,
	RoundStatusCompleted,
	RoundStatusCancelled,
}

var roundTransitions = map[RoundStatus][]RoundStatus{
	RoundStatusScheduled:  {RoundStatusInProgress, RoundStatusCancelled},
	RoundStatusInProgress: {RoundStatusCompleted, RoundStatusCancelled},
}

// String implements fmt.Stringer.
func (r RoundStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RoundStatus.
func (r RoundStatus) IsValid() bool {
	for _, candidate := range validRoundStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// AcceptsOrders reports whether orders may still be bound to the round.
func (r RoundStatus) AcceptsOrders() bool {
	return r == RoundStatusScheduled || r == RoundStatusInProgress
}

// CanTransitionTo reports whether next is a legal edge from r.
func (r RoundStatus) CanTransitionTo(next RoundStatus) bool {
	for _, candidate := range roundTransitions[r] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ParseRoundStatus converts raw input into a RoundStatus.
func ParseRoundStatus(value string) (RoundStatus, error) {
	for _, candidate := range validRoundStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid round status %q", value)
}
