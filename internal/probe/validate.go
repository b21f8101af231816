package probe

import (
	"encoding/json"
	"strings"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

// Verdict is the outcome of validating one HTTP response.
type Verdict struct {
	Succeeded bool
	Reason    domain.FailureReason
	Detail    domain.Detail
}

// Evaluate checks a response against the target's expectations. The status
// code is checked first; expected fields are only looked at when it matches.
// All field mismatches are collected, not just the first.
func Evaluate(target domain.TargetSpec, httpStatus int, body []byte) Verdict {
	want := target.ExpectedStatus
	if want == 0 {
		want = 200
	}
	if httpStatus != want {
		return Verdict{
			Reason: domain.ReasonStatusMismatch,
			Detail: domain.Detail{
				"http_status": domain.Mismatch{Expected: want, Actual: httpStatus},
			},
		}
	}

	if len(target.ExpectedFields) == 0 {
		return Verdict{Succeeded: true}
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		return Verdict{
			Reason: domain.ReasonContentMismatch,
			Detail: domain.Detail{"error": "unparseable body"},
		}
	}

	detail := domain.Detail{}
	for key, expected := range target.ExpectedFields {
		actual, ok := doc[key]
		if !ok {
			detail[key] = domain.Mismatch{Expected: expected, Actual: nil, Missing: true}
			continue
		}
		if !valuesEqual(expected, actual) {
			detail[key] = domain.Mismatch{Expected: expected, Actual: actual}
		}
	}
	if len(detail) > 0 {
		return Verdict{Reason: domain.ReasonContentMismatch, Detail: detail}
	}
	return Verdict{Succeeded: true}
}

// valuesEqual compares an expected scalar with a decoded JSON value.
// Strings compare case-sensitively, numbers numerically. Booleans also
// accept the case-insensitive tokens "true" and "false" on either side.
func valuesEqual(expected, actual any) bool {
	switch e := expected.(type) {
	case string:
		switch a := actual.(type) {
		case string:
			return a == e
		case bool:
			b, ok := boolToken(e)
			return ok && b == a
		}
		return false
	case bool:
		switch a := actual.(type) {
		case bool:
			return a == e
		case string:
			b, ok := boolToken(a)
			return ok && b == e
		}
		return false
	default:
		en, ok := toFloat(expected)
		if !ok {
			return false
		}
		an, ok := actual.(float64)
		return ok && an == en
	}
}

func boolToken(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
