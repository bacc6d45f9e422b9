package enums

import "fmt"

// AssignmentStatus tracks a volunteer's hold on an order.
type AssignmentStatus string

const (
	AssignmentStatusAccepted   AssignmentStatus = "accepted"
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	AssignmentStatusCompleted  AssignmentStatus = "completed"
	AssignmentStatusCancelled  AssignmentStatus = "cancelled"
)

var validAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusAccepted,
	AssignmentStatusInProgress,
	AssignmentStatusCompleted,
	AssignmentStatusCancelled,
}

// ActiveAssignmentStatuses are the statuses that hold an order.
var ActiveAssignmentStatuses = []AssignmentStatus{
	AssignmentStatusAccepted,
	AssignmentStatusInProgress,
}

// String implements fmt.Stringer.
func (a AssignmentStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AssignmentStatus.
func (a AssignmentStatus) IsValid() bool {
	for _, candidate := range validAssignmentStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsActive reports whether the assignment still holds its order.
func (a AssignmentStatus) IsActive() bool {
	return a == AssignmentStatusAccepted || a == AssignmentStatusInProgress
}

// ParseAssignmentStatus converts raw input into an AssignmentStatus.
func ParseAssignmentStatus(value string) (AssignmentStatus, error) {
	for _, candidate := range validAssignmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid assignment status %q", value)
}
