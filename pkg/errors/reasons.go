package errors

// Reason distinguishes domain failures that share a category code.
type Reason string

const (
	ReasonOrderNotFound      Reason = "OrderNotFound"
	ReasonAssignmentNotFound Reason = "AssignmentNotFound"
	ReasonRoundNotFound      Reason = "RoundNotFound"
	ReasonSignupNotFound     Reason = "SignupNotFound"

	ReasonInvalidTransition   Reason = "InvalidTransition"
	ReasonNotTerminal         Reason = "NotTerminal"
	ReasonOrderNotPending     Reason = "OrderNotPending"
	ReasonRoundNotSchedulable Reason = "RoundNotSchedulable"
	ReasonNoActiveAssignment  Reason = "NoActiveAssignment"
	ReasonCapacityBelowUsage  Reason = "CapacityBelowUsage"

	ReasonOrderAlreadyAccepted Reason = "OrderAlreadyAccepted"
	ReasonRoundFull            Reason = "RoundFull"
	ReasonAlreadySignedUp      Reason = "AlreadySignedUp"

	ReasonAlreadyAcceptedByYou Reason = "AlreadyAcceptedByYou"

	ReasonNotOwner Reason = "NotOwner"
)

var codeByReason = map[Reason]Code{
	ReasonOrderNotFound:      CodeNotFound,
	ReasonAssignmentNotFound: CodeNotFound,
	ReasonRoundNotFound:      CodeNotFound,
	ReasonSignupNotFound:     CodeNotFound,

	ReasonInvalidTransition:   CodeStateConflict,
	ReasonNotTerminal:         CodeStateConflict,
	ReasonOrderNotPending:     CodeStateConflict,
	ReasonRoundNotSchedulable: CodeStateConflict,
	ReasonNoActiveAssignment:  CodeStateConflict,
	ReasonCapacityBelowUsage:  CodeStateConflict,

	ReasonOrderAlreadyAccepted: CodeConflict,
	ReasonRoundFull:            CodeConflict,
	ReasonAlreadySignedUp:      CodeConflict,

	ReasonAlreadyAcceptedByYou: CodeAlreadyDone,

	ReasonNotOwner: CodeForbidden,
}

// CodeFor returns the category code a reason belongs to.
func CodeFor(reason Reason) Code {
	if code, ok := codeByReason[reason]; ok {
		return code
	}
	return CodeInternal
}

// NewReason builds an error tagged with a domain reason and its category code.
func NewReason(reason Reason, message string) *Error {
	return &Error{code: CodeFor(reason), reason: reason, message: message}
}

// IsReason reports whether err carries the given domain reason anywhere in its chain.
func IsReason(err error, reason Reason) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return typed.reason == reason
}
