package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

func Subject(ev domain.AlertEvent) string {
	kind := "Website"
	if ev.TargetKind == domain.APIEndpoint {
		kind = "API"
	}
	tag := "[ALERT]"
	if ev.Severity == domain.SeverityRecovered {
		tag = "[RECOVERED]"
	}
	return fmt.Sprintf("%s %s Issue: %s", tag, kind, ev.TargetURL)
}

// Title is the short one-line headline used by chat sinks.
func Title(ev domain.AlertEvent) string {
	if ev.Severity == domain.SeverityRecovered {
		return "🟢 Target RECOVERED"
	}
	return "🔴 Target DOWN"
}

func Body(ev domain.AlertEvent) string {
	var b strings.Builder

	heading := "Website Monitoring Alert"
	label := "Website"
	if ev.TargetKind == domain.APIEndpoint {
		heading = "API Monitoring Alert"
		label = "API Endpoint"
	}
	status := "DOWN"
	if ev.Severity == domain.SeverityRecovered {
		status = "RECOVERED"
	}

	fmt.Fprintf(&b, "%s\n%s\n", heading, strings.Repeat("-", len(heading)))
	fmt.Fprintf(&b, "Time: %s\n", ev.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(&b, "%s: %s\n", label, ev.TargetURL)
	if string(ev.TargetID) != ev.TargetURL {
		fmt.Fprintf(&b, "Name: %s\n", ev.TargetID)
	}
	fmt.Fprintf(&b, "Status: %s\n", status)

	if ev.Severity == domain.SeverityFailure {
		fmt.Fprintf(&b, "Failing for %d consecutive checks\n", ev.ConsecutiveFailures)
	}

	b.WriteString("\nDetails:\n")
	if ev.Reason != domain.ReasonNone {
		fmt.Fprintf(&b, "- Reason: %s\n", ev.Reason)
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, "- Error: %s\n", ev.Error)
	}
	fmt.Fprintf(&b, "- HTTP Status: %s\n", httpText(ev.HTTPStatus))
	fmt.Fprintf(&b, "- Response Time: %.0f ms\n", ev.LatencyMS)
	fmt.Fprintf(&b, "- Attempts: %d\n", ev.Attempts)

	if len(ev.Detail) > 0 {
		b.WriteString("\nValidation:\n")
		keys := make([]string, 0, len(ev.Detail))
		for k := range ev.Detail {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, detailText(ev.Detail[k]))
		}
	}
	return b.String()
}

func httpText(status *int) string {
	if status == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *status)
}

func detailText(v any) string {
	switch m := v.(type) {
	case domain.Mismatch:
		if m.Missing {
			return fmt.Sprintf("expected %v, key missing", m.Expected)
		}
		return fmt.Sprintf("expected %v, got %v", m.Expected, m.Actual)
	case time.Time:
		return m.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
