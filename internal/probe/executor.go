package probe

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

const maxBodyRead = 1 << 20 // 1MB

var errAttemptFailed = errors.New("attempt failed")

// Executor probes a target with bounded retries and exponential backoff.
// Total attempts never exceed MaxRetries+1.
type Executor struct {
	Client     *http.Client
	Logger     *zap.Logger
	Timeout    time.Duration // hard bound per attempt
	MaxRetries int
	BaseDelay  time.Duration // first backoff, doubled after each retry
	MaxDelay   time.Duration // 0 means uncapped
	UserAgent  string
	Diagnoser  Diagnoser
}

type ExecutorConfig struct {
	Timeout    time.Duration
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	UserAgent  string
}

func NewExecutor(client *http.Client, cfg ExecutorConfig, logger *zap.Logger) *Executor {
	if client == nil {
		client = NewHTTPClient(cfg.Timeout, false)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Executor{
		Client:     client,
		Logger:     logger,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		BaseDelay:  cfg.BaseDelay,
		MaxDelay:   cfg.MaxDelay,
		UserAgent:  cfg.UserAgent,
	}
}

type outcome struct {
	ok      bool
	status  *int
	latency float64
	reason  domain.FailureReason
	detail  domain.Detail
	err     error
}

// Run issues attempts until one validates or the retry budget is spent.
// The result describes the last attempt made.
func (e *Executor) Run(ctx context.Context, target domain.TargetSpec) domain.CheckResult {
	var (
		last     outcome
		attempts int
	)
	_ = retry.Do(ctx, e.backoff(), func(ctx context.Context) error {
		attempts++
		last = e.attempt(ctx, target)
		if last.ok {
			return nil
		}
		e.Logger.Debug("check_attempt_failed",
			zap.String("target_id", string(target.ID)),
			zap.Int("attempt", attempts),
			zap.String("reason", string(last.reason)),
			zap.Error(last.err),
		)
		return retry.RetryableError(errAttemptFailed)
	})
	if attempts == 0 {
		// ctx was already done; still report one attempt
		attempts = 1
		last = e.attempt(ctx, target)
	}

	res := domain.CheckResult{
		Target:           &target,
		TargetID:         target.ID,
		Succeeded:        last.ok,
		HTTPStatus:       last.status,
		LatencyMS:        last.latency,
		Attempts:         attempts,
		FailureReason:    last.reason,
		ValidationDetail: last.detail,
		CheckedAt:        time.Now().UTC(),
	}
	if last.err != nil {
		res.Error = last.err.Error()
	}
	if res.FailureReason == domain.ReasonConnectionError && e.Diagnoser != nil {
		if class := e.Diagnoser.Diagnose(ctx, hostOf(target.URL)); class != "" {
			if res.ValidationDetail == nil {
				res.ValidationDetail = domain.Detail{}
			}
			res.ValidationDetail["dns"] = class
		}
	}
	return res
}

func (e *Executor) backoff() retry.Backoff {
	base := e.BaseDelay
	if base <= 0 {
		base = time.Nanosecond
	}
	b := retry.NewExponential(base)
	if e.MaxDelay > 0 {
		b = retry.WithCappedDuration(e.MaxDelay, b)
	}
	retries := e.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return retry.WithMaxRetries(uint64(retries), b)
}

func (e *Executor) attempt(ctx context.Context, target domain.TargetSpec) outcome {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, target.URL, nil)
	if err != nil {
		return outcome{reason: domain.ReasonUnknown, err: err}
	}
	if e.UserAgent != "" {
		req.Header.Set("User-Agent", e.UserAgent)
	}
	if target.Kind == domain.APIEndpoint {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := e.clientFor(target).Do(req)
	if err != nil {
		return outcome{latency: sinceMS(start), reason: Classify(err), err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyRead))
	lat := sinceMS(start)
	code := resp.StatusCode
	if err != nil {
		return outcome{status: &code, latency: lat, reason: Classify(err), err: err}
	}

	v := Evaluate(target, code, body)
	return outcome{ok: v.Succeeded, status: &code, latency: lat, reason: v.Reason, detail: v.Detail}
}

// clientFor returns the website client, or a copy that does not follow
// redirects for API targets.
func (e *Executor) clientFor(target domain.TargetSpec) *http.Client {
	c := e.Client
	if c == nil {
		c = http.DefaultClient
	}
	if target.Kind != domain.APIEndpoint {
		return c
	}
	cp := *c
	cp.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &cp
}

func sinceMS(start time.Time) float64 {
	return time.Since(start).Seconds() * 1000
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
