package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/metrics"
	"github.com/hamed0406/sitemonitor/internal/notify"
	"github.com/hamed0406/sitemonitor/internal/probe"
	"github.com/hamed0406/sitemonitor/internal/repo"
)

// Summary describes one tick.
type Summary struct {
	Results          []domain.CheckResult `json:"results"`
	Healthy          int                  `json:"healthy"`
	Failed           int                  `json:"failed"`
	AlertsSent       int                  `json:"alerts_sent"`
	AlertsSuppressed int                  `json:"alerts_suppressed"`
	DeliveryFailures int                  `json:"delivery_failures"`
	StoreErrors      int                  `json:"store_errors"`
	Duration         time.Duration        `json:"duration_ns"`
}

type Scheduler struct {
	Logger   *zap.Logger
	Runner   probe.Runner
	Alerter  *Alerter
	Notifier notify.Notifier
	Results  repo.ResultStore // optional
	// Interval is the fixed delay between the end of one tick and the
	// start of the next.
	Interval time.Duration
	// Concurrency bounds checks in flight; 0 means one per target.
	Concurrency int
	Now         func() time.Time

	mu sync.Mutex // ticks never overlap
}

func New(
	logger *zap.Logger,
	runner probe.Runner,
	alerter *Alerter,
	notifier notify.Notifier,
	results repo.ResultStore,
	interval time.Duration,
	concurrency int,
) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if concurrency < 0 {
		concurrency = 0
	}
	return &Scheduler{
		Logger:      logger,
		Runner:      runner,
		Alerter:     alerter,
		Notifier:    notifier,
		Results:     results,
		Interval:    interval,
		Concurrency: concurrency,
		Now:         time.Now,
	}
}

// Run does an immediate tick, then ticks Interval after each completion.
// On cancellation the in-flight tick finishes before Run returns.
func (s *Scheduler) Run(ctx context.Context, targets []domain.TargetSpec) error {
	if s.Interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}
	s.Logger.Info("scheduler_started",
		zap.Int("targets", len(targets)),
		zap.Duration("interval", s.Interval),
	)
	for {
		if ctx.Err() != nil {
			s.Logger.Info("scheduler_stopped")
			return nil
		}
		s.Tick(context.WithoutCancel(ctx), targets)

		t := time.NewTimer(s.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			s.Logger.Info("scheduler_stopped")
			return nil
		case <-t.C:
		}
	}
}

// RunOnce performs exactly one tick and returns its results, ordered like targets.
func (s *Scheduler) RunOnce(ctx context.Context, targets []domain.TargetSpec) []domain.CheckResult {
	return s.Tick(ctx, targets).Results
}

type outcome struct {
	sent       bool
	suppressed bool
	undeliv    bool
	storeErr   bool
}

func (s *Scheduler) Tick(ctx context.Context, targets []domain.TargetSpec) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	results := make([]domain.CheckResult, len(targets))
	outcomes := make([]outcome, len(targets))

	limit := s.Concurrency
	if limit <= 0 || limit > len(targets) {
		limit = len(targets)
	}
	sem := make(chan struct{}, max(limit, 1))
	var wg sync.WaitGroup

	// acquiring in the loop keeps queued checks FIFO
	for i, tgt := range targets {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() { <-sem }()
			defer wg.Done()
			results[i], outcomes[i] = s.check(ctx, tgt)
		}()
	}
	wg.Wait()

	sum := Summary{Results: results}
	for i, r := range results {
		if r.Succeeded {
			sum.Healthy++
		} else {
			sum.Failed++
		}
		o := outcomes[i]
		switch {
		case o.sent:
			sum.AlertsSent++
		case o.suppressed:
			sum.AlertsSuppressed++
		}
		if o.undeliv {
			sum.DeliveryFailures++
		}
		if o.storeErr {
			sum.StoreErrors++
		}
	}
	sum.Duration = time.Since(start)
	metrics.RecordTick(sum.Duration)

	s.Logger.Info("tick_done",
		zap.Int("targets", len(targets)),
		zap.Int("healthy", sum.Healthy),
		zap.Int("failed", sum.Failed),
		zap.Int("alerts_sent", sum.AlertsSent),
		zap.Int("alerts_suppressed", sum.AlertsSuppressed),
		zap.Int("delivery_failures", sum.DeliveryFailures),
		zap.Duration("duration", sum.Duration),
	)
	return sum
}

func (s *Scheduler) check(ctx context.Context, tgt domain.TargetSpec) (domain.CheckResult, outcome) {
	var o outcome
	res := s.Runner.Run(ctx, tgt)
	if res.Target == nil {
		res.Target = &tgt
	}
	res.TargetID = tgt.ID
	now := s.now()

	metrics.RecordCheck(res, tgt.Kind)
	fields := []zap.Field{
		zap.String("target_id", string(tgt.ID)),
		zap.String("url", tgt.URL),
		zap.Bool("up", res.Succeeded),
		zap.Int("attempts", res.Attempts),
		zap.Float64("latency_ms", res.LatencyMS),
	}
	if res.HTTPStatus != nil {
		fields = append(fields, zap.Int("status", *res.HTTPStatus))
	}
	if res.Succeeded {
		s.Logger.Debug("check_ok", fields...)
	} else {
		s.Logger.Warn("check_failed", append(fields,
			zap.String("reason", string(res.FailureReason)),
			zap.String("error", res.Error),
		)...)
	}

	if s.Results != nil {
		if err := s.Results.Record(ctx, res); err != nil {
			s.Logger.Warn("result_record_error", zap.String("target_id", string(tgt.ID)), zap.Error(err))
		}
	}

	if s.Alerter == nil {
		return res, o
	}
	ev, err := s.Alerter.Process(ctx, res, now)
	if err != nil {
		// alert for this target is skipped this tick; others carry on
		o.storeErr = true
		metrics.StoreErrors.WithLabelValues("process").Inc()
		s.Logger.Error("alert_state_error", zap.String("target_id", string(tgt.ID)), zap.Error(err))
		return res, o
	}
	if ev == nil {
		if !res.Succeeded {
			o.suppressed = true
			metrics.RecordAlert(domain.SeverityFailure, "suppressed")
			s.Logger.Info("alert_suppressed", zap.String("target_id", string(tgt.ID)))
		}
		return res, o
	}

	o.sent = true
	metrics.RecordAlert(ev.Severity, "sent")
	if s.Notifier != nil {
		if err := s.Notifier.Send(ctx, *ev); err != nil {
			o.undeliv = true
			metrics.RecordAlert(ev.Severity, "delivery_failed")
			s.Logger.Error("alert_delivery_failed",
				zap.String("target_id", string(tgt.ID)),
				zap.String("event_id", ev.ID),
				zap.Error(err),
			)
			return res, o
		}
	}
	s.Logger.Info("alert_sent",
		zap.String("target_id", string(tgt.ID)),
		zap.String("event_id", ev.ID),
		zap.String("severity", string(ev.Severity)),
		zap.Int("consecutive_failures", ev.ConsecutiveFailures),
	)
	return res, o
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
