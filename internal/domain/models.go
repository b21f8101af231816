package domain

import (
	"fmt"
	"time"
)

type TargetID string

type TargetKind int

const (
	Website TargetKind = iota
	APIEndpoint
)

func (k TargetKind) String() string {
	switch k {
	case Website:
		return "website"
	case APIEndpoint:
		return "api"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func (k TargetKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *TargetKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "website":
		*k = Website
	case "api":
		*k = APIEndpoint
	default:
		return fmt.Errorf("unknown target kind %q", string(b))
	}
	return nil
}

// TargetSpec describes one thing to probe. ID must stay stable across runs,
// alert history is keyed by it.
type TargetSpec struct {
	ID             TargetID       `json:"id"`
	Kind           TargetKind     `json:"kind"`
	URL            string         `json:"url"`
	ExpectedStatus int            `json:"expected_status"`
	ExpectedFields map[string]any `json:"expected_fields,omitempty"` // string | float64 | bool
}

// CheckResult is the outcome of one probe cycle (all attempts) for one target.
type CheckResult struct {
	Target           *TargetSpec   `json:"-"`
	TargetID         TargetID      `json:"target_id"`
	Succeeded        bool          `json:"succeeded"`
	HTTPStatus       *int          `json:"http_status"` // nil when no response was obtained
	LatencyMS        float64       `json:"latency_ms"`
	Attempts         int           `json:"attempts"`
	FailureReason    FailureReason `json:"failure_reason,omitempty"`
	ValidationDetail Detail        `json:"validation_detail,omitempty"`
	Error            string        `json:"error,omitempty"`
	CheckedAt        time.Time     `json:"checked_at"`
}

// AlertState is the persisted per-target alerting record.
type AlertState struct {
	TargetID            TargetID   `json:"target_id"`
	LastAlertAt         *time.Time `json:"last_alert_at"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastKnownHealthy    bool       `json:"last_known_healthy"`
}

// NewAlertState is the state of a target never seen before: healthy, never alerted.
func NewAlertState(id TargetID) AlertState {
	return AlertState{TargetID: id, LastKnownHealthy: true}
}
