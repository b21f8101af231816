package domain

import "time"

type Severity string

const (
	SeverityFailure   Severity = "failure"
	SeverityRecovered Severity = "recovered"
)

// AlertEvent is the payload handed to notifiers.
type AlertEvent struct {
	ID                  string        `json:"id"`
	Severity            Severity      `json:"severity"`
	TargetID            TargetID      `json:"target_id"`
	TargetURL           string        `json:"target_url"`
	TargetKind          TargetKind    `json:"target_kind"`
	Reason              FailureReason `json:"reason,omitempty"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	Detail              Detail        `json:"detail,omitempty"`
	HTTPStatus          *int          `json:"http_status,omitempty"`
	LatencyMS           float64       `json:"latency_ms"`
	Attempts            int           `json:"attempts"`
	Error               string        `json:"error,omitempty"`
	Timestamp           time.Time     `json:"timestamp"`
}
