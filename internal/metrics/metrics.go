package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

var (
	CheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitemonitor_check_latency_seconds",
			Help:    "Latency of the final attempt of each probe cycle",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"target", "kind"},
	)

	ChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitemonitor_checks_total",
			Help: "Probe cycles by outcome",
		},
		[]string{"target", "kind", "result", "reason"},
	)

	CheckAttempts = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sitemonitor_check_attempts",
			Help:    "Attempts issued per probe cycle",
			Buckets: []float64{1, 2, 3, 4, 6, 8},
		},
		[]string{"kind"},
	)

	TargetUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sitemonitor_target_up",
			Help: "1 if the last probe cycle succeeded",
		},
		[]string{"target"},
	)

	AlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitemonitor_alerts_total",
			Help: "Alert decisions by outcome (sent, suppressed, delivery_failed)",
		},
		[]string{"severity", "outcome"},
	)

	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitemonitor_tick_duration_seconds",
			Help:    "Wall-clock duration of a scheduler tick",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitemonitor_store_errors_total",
			Help: "Alert state store failures",
		},
		[]string{"operation"},
	)
)

func RecordCheck(r domain.CheckResult, kind domain.TargetKind) {
	id := string(r.TargetID)
	result := "up"
	up := 1.0
	if !r.Succeeded {
		result, up = "down", 0
	}
	ChecksTotal.WithLabelValues(id, kind.String(), result, string(r.FailureReason)).Inc()
	CheckDuration.WithLabelValues(id, kind.String()).Observe(r.LatencyMS / 1000)
	CheckAttempts.WithLabelValues(kind.String()).Observe(float64(r.Attempts))
	TargetUp.WithLabelValues(id).Set(up)
}

func RecordAlert(sev domain.Severity, outcome string) {
	AlertsTotal.WithLabelValues(string(sev), outcome).Inc()
}

func RecordTick(d time.Duration) { TickDuration.Observe(d.Seconds()) }
