package enums

import "fmt"

// SignupStatus tracks a volunteer's request to join a round.
type SignupStatus string

const (
	SignupStatusWaitlisted SignupStatus = "waitlisted"
	SignupStatusConfirmed  SignupStatus = "confirmed"
	SignupStatusRejected   SignupStatus = "rejected"
)

var validSignupStatuses = []SignupStatus{
	SignupStatusWaitlisted,
	SignupStatusConfirmed,
	SignupStatusRejected,
}

// String implements fmt.Stringer.
func (s SignupStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SignupStatus.
func (s SignupStatus) IsValid() bool {
	for _, candidate := range validSignupStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSignupStatus converts raw input into a SignupStatus.
func ParseSignupStatus(value string) (SignupStatus, error) {
	for _, candidate := range validSignupStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid signup status %q", value)
}
