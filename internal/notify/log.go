package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

// Log writes every event to the structured log. It never fails.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(_ context.Context, ev domain.AlertEvent) error {
	lg := l.Logger
	if lg == nil {
		lg = zap.L()
	}
	fields := []zap.Field{
		zap.String("event_id", ev.ID),
		zap.String("target_id", string(ev.TargetID)),
		zap.String("url", ev.TargetURL),
		zap.String("severity", string(ev.Severity)),
		zap.String("reason", string(ev.Reason)),
		zap.Int("consecutive_failures", ev.ConsecutiveFailures),
		zap.Int("attempts", ev.Attempts),
	}
	if ev.HTTPStatus != nil {
		fields = append(fields, zap.Int("http_status", *ev.HTTPStatus))
	}
	if ev.Severity == domain.SeverityRecovered {
		lg.Info("alert_recovered", fields...)
		return nil
	}
	lg.Warn("alert_failure", fields...)
	return nil
}
