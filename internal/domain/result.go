package domain

// FailureReason classifies why a probe failed. The zero value means no failure.
type FailureReason string

const (
	ReasonNone            FailureReason = ""
	ReasonTimeout         FailureReason = "timeout"
	ReasonConnectionError FailureReason = "connection_error"
	ReasonStatusMismatch  FailureReason = "status_mismatch"
	ReasonContentMismatch FailureReason = "content_mismatch"
	ReasonTLSError        FailureReason = "tls_error"
	ReasonUnknown         FailureReason = "unknown"
)

// Detail explains a validation failure. Values are Mismatch for per-field
// differences, or plain strings for notes such as parse errors.
type Detail map[string]any

// Mismatch records one expected/actual pair.
type Mismatch struct {
	Expected any  `json:"expected"`
	Actual   any  `json:"actual"`
	Missing  bool `json:"missing,omitempty"`
}
