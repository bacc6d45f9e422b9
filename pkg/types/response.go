package types

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// SuccessEnvelope wraps every successful response. Code is set when the call was a non-fatal no-op.
type SuccessEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data"`
}

// ErrorEnvelope carries the domain reason in Code and the broad category in Kind.
type ErrorEnvelope struct {
	Status    string `json:"status"`
	Code      string `json:"code"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	Details   any    `json:"details,omitempty"`
}
