package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

type AlerterConfig struct {
	Cooldown time.Duration
	// Threshold is the number of consecutive confirmed failures needed
	// before the first alert of a streak. Values below 1 mean 1.
	Threshold      int
	NotifyRecovery bool
}

// Alerter turns confirmed check results into alert decisions, keeping one
// durable AlertState per target.
type Alerter struct {
	store repo.AlertStore
	cfg   AlerterConfig
	newID func() string
}

func NewAlerter(store repo.AlertStore, cfg AlerterConfig) *Alerter {
	if cfg.Threshold < 1 {
		cfg.Threshold = 1
	}
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	return &Alerter{store: store, cfg: cfg, newID: uuid.NewString}
}

// Process applies one result observed at now. The updated state is persisted
// before Process returns; a store failure returns an error and no event.
func (a *Alerter) Process(ctx context.Context, res domain.CheckResult, now time.Time) (*domain.AlertEvent, error) {
	prev, err := a.store.Get(ctx, res.TargetID)
	if err != nil {
		return nil, fmt.Errorf("load alert state %s: %w", res.TargetID, err)
	}
	st := domain.NewAlertState(res.TargetID)
	if prev != nil {
		st = *prev
	}

	if res.Succeeded {
		if st.LastKnownHealthy {
			if prev == nil {
				return nil, a.put(ctx, st)
			}
			return nil, nil
		}
		emit := a.cfg.NotifyRecovery && (a.cfg.Threshold == 1 || st.LastAlertAt != nil)
		streak := st.ConsecutiveFailures

		st.ConsecutiveFailures = 0
		st.LastKnownHealthy = true
		st.LastAlertAt = nil
		if err := a.put(ctx, st); err != nil {
			return nil, err
		}
		if !emit {
			return nil, nil
		}
		return a.event(domain.SeverityRecovered, res, streak, now), nil
	}

	st.ConsecutiveFailures++
	st.LastKnownHealthy = false
	due := st.ConsecutiveFailures >= a.cfg.Threshold &&
		(st.LastAlertAt == nil || now.Sub(*st.LastAlertAt) >= a.cfg.Cooldown)
	if due {
		at := now
		st.LastAlertAt = &at
	}
	if err := a.put(ctx, st); err != nil {
		return nil, err
	}
	if !due {
		return nil, nil
	}
	return a.event(domain.SeverityFailure, res, st.ConsecutiveFailures, now), nil
}

func (a *Alerter) put(ctx context.Context, st domain.AlertState) error {
	if err := a.store.Put(ctx, st); err != nil {
		return fmt.Errorf("save alert state %s: %w", st.TargetID, err)
	}
	return nil
}

func (a *Alerter) event(sev domain.Severity, res domain.CheckResult, failures int, now time.Time) *domain.AlertEvent {
	ev := &domain.AlertEvent{
		ID:                  a.newID(),
		Severity:            sev,
		TargetID:            res.TargetID,
		TargetURL:           string(res.TargetID),
		Reason:              res.FailureReason,
		ConsecutiveFailures: failures,
		Detail:              res.ValidationDetail,
		HTTPStatus:          res.HTTPStatus,
		LatencyMS:           res.LatencyMS,
		Attempts:            res.Attempts,
		Error:               res.Error,
		Timestamp:           now,
	}
	if res.Target != nil {
		ev.TargetURL = res.Target.URL
		ev.TargetKind = res.Target.Kind
	}
	return ev
}
