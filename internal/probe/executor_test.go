package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

func newTestExecutor(timeout time.Duration, retries int) *Executor {
	return NewExecutor(NewHTTPClient(timeout, false), ExecutorConfig{
		Timeout:    timeout,
		MaxRetries: retries,
		BaseDelay:  time.Millisecond,
		UserAgent:  "sitemonitor-test",
	}, nil)
}

func site(url string) domain.TargetSpec {
	return domain.TargetSpec{ID: domain.TargetID(url), Kind: domain.Website, URL: url, ExpectedStatus: 200}
}

func TestExecutor_SucceedsFirstAttempt(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	}))
	defer s.Close()

	out := newTestExecutor(2*time.Second, 3).Run(context.Background(), site(s.URL))
	if !out.Succeeded || out.Attempts != 1 || hits.Load() != 1 {
		t.Fatalf("want one successful attempt, got %+v (hits=%d)", out, hits.Load())
	}
	if out.HTTPStatus == nil || *out.HTTPStatus != 200 {
		t.Fatalf("want status 200, got %v", out.HTTPStatus)
	}
	if out.FailureReason != domain.ReasonNone || out.LatencyMS < 0 {
		t.Fatalf("unexpected result: %+v", out)
	}
	if out.Target == nil || out.Target.ID != domain.TargetID(s.URL) {
		t.Fatalf("target not attached: %+v", out.Target)
	}
}

func TestExecutor_RecoversWithinRetryBudget(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			http.Error(w, "boom", 500)
			return
		}
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := newTestExecutor(2*time.Second, 3).Run(context.Background(), site(s.URL))
	if !out.Succeeded || out.Attempts != 3 {
		t.Fatalf("want success on third attempt, got %+v", out)
	}
	if out.FailureReason != domain.ReasonNone {
		t.Fatalf("want no failure reason after success, got %q", out.FailureReason)
	}
}

func TestExecutor_StatusMismatchExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out := newTestExecutor(2*time.Second, 3).Run(context.Background(), site(s.URL))
	if out.Succeeded {
		t.Fatalf("want failure, got %+v", out)
	}
	if out.Attempts != 4 || hits.Load() != 4 {
		t.Fatalf("want 4 attempts, got %d (hits=%d)", out.Attempts, hits.Load())
	}
	if out.FailureReason != domain.ReasonStatusMismatch {
		t.Fatalf("want status_mismatch, got %q", out.FailureReason)
	}
	if out.HTTPStatus == nil || *out.HTTPStatus != 500 {
		t.Fatalf("want status 500, got %v", out.HTTPStatus)
	}
}

func TestExecutor_TimeoutEveryAttempt(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := newTestExecutor(30*time.Millisecond, 3).Run(context.Background(), site(s.URL))
	if out.Succeeded {
		t.Fatalf("want failure due to timeout, got %+v", out)
	}
	if out.Attempts != 4 {
		t.Fatalf("want attempts == 4, got %d", out.Attempts)
	}
	if out.FailureReason != domain.ReasonTimeout {
		t.Fatalf("want timeout, got %q (%s)", out.FailureReason, out.Error)
	}
	if out.HTTPStatus != nil {
		t.Fatalf("want no status on transport error, got %d", *out.HTTPStatus)
	}
	if out.Error == "" {
		t.Fatalf("want non-empty error message")
	}
}

type fakeDiagnoser struct{ host string }

func (f *fakeDiagnoser) Diagnose(_ context.Context, host string) string {
	f.host = host
	return "RESOLVES"
}

func TestExecutor_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	ex := newTestExecutor(time.Second, 1)
	diag := &fakeDiagnoser{}
	ex.Diagnoser = diag

	out := ex.Run(context.Background(), site("http://"+addr))
	if out.FailureReason != domain.ReasonConnectionError || out.Attempts != 2 {
		t.Fatalf("want connection_error after 2 attempts, got %+v", out)
	}
	if diag.host != "127.0.0.1" || out.ValidationDetail["dns"] != "RESOLVES" {
		t.Fatalf("want dns diagnosis attached, got host=%q detail=%v", diag.host, out.ValidationDetail)
	}
}

func TestExecutor_UntrustedCertificateIsTLSError(t *testing.T) {
	s := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
	}))
	defer s.Close()

	out := newTestExecutor(2*time.Second, 0).Run(context.Background(), site(s.URL))
	if out.FailureReason != domain.ReasonTLSError {
		t.Fatalf("want tls_error, got %q (%s)", out.FailureReason, out.Error)
	}
	if out.Attempts != 1 {
		t.Fatalf("want 1 attempt with maxRetries=0, got %d", out.Attempts)
	}
}

func TestExecutor_APITargetsDoNotFollowRedirects(t *testing.T) {
	var accept, ua string
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		accept, ua = r.Header.Get("Accept"), r.Header.Get("User-Agent")
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	s := httptest.NewServer(mux)
	defer s.Close()

	ex := newTestExecutor(2*time.Second, 0)

	api := domain.TargetSpec{
		ID: "svc", Kind: domain.APIEndpoint, URL: s.URL + "/health",
		ExpectedStatus: 200, ExpectedFields: map[string]any{"status": "healthy"},
	}
	out := ex.Run(context.Background(), api)
	if out.FailureReason != domain.ReasonStatusMismatch || out.HTTPStatus == nil || *out.HTTPStatus != 302 {
		t.Fatalf("want 302 status mismatch for api target, got %+v", out)
	}
	if accept != "application/json" || ua != "sitemonitor-test" {
		t.Fatalf("unexpected headers accept=%q ua=%q", accept, ua)
	}

	web := ex.Run(context.Background(), site(s.URL+"/health"))
	if !web.Succeeded {
		t.Fatalf("website target should follow redirect, got %+v", web)
	}
}

func TestExecutor_ContentMismatchCarriesDetail(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy","database":"disconnected"}`))
	}))
	defer s.Close()

	api := domain.TargetSpec{
		ID: "svc", Kind: domain.APIEndpoint, URL: s.URL, ExpectedStatus: 200,
		ExpectedFields: map[string]any{"status": "healthy", "database": "connected"},
	}
	out := newTestExecutor(2*time.Second, 1).Run(context.Background(), api)
	if out.FailureReason != domain.ReasonContentMismatch || out.Attempts != 2 {
		t.Fatalf("want content_mismatch after 2 attempts, got %+v", out)
	}
	m, ok := out.ValidationDetail["database"].(domain.Mismatch)
	if !ok || m.Expected != "connected" || m.Actual != "disconnected" {
		t.Fatalf("unexpected detail: %#v", out.ValidationDetail)
	}
}

func TestExecutor_CancelledContextStillReportsOneAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := newTestExecutor(time.Second, 3).Run(ctx, site("http://127.0.0.1:1"))
	if out.Succeeded || out.Attempts != 1 {
		t.Fatalf("want a single failed attempt, got %+v", out)
	}
}

// arrivalGaps serves 500s and returns the time between consecutive requests.
func arrivalGaps(t *testing.T, ex *Executor) ([]time.Duration, domain.CheckResult) {
	t.Helper()
	var (
		mu       sync.Mutex
		arrivals []time.Time
	)
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		arrivals = append(arrivals, time.Now())
		mu.Unlock()
		http.Error(w, "down", 500)
	}))
	defer s.Close()

	out := ex.Run(context.Background(), site(s.URL))

	mu.Lock()
	defer mu.Unlock()
	gaps := make([]time.Duration, 0, len(arrivals))
	for i := 1; i < len(arrivals); i++ {
		gaps = append(gaps, arrivals[i].Sub(arrivals[i-1]))
	}
	return gaps, out
}

func TestExecutor_BackoffDoubles(t *testing.T) {
	ex := newTestExecutor(2*time.Second, 3)
	ex.BaseDelay = 40 * time.Millisecond

	gaps, out := arrivalGaps(t, ex)
	if out.Attempts != 4 || len(gaps) != 3 {
		t.Fatalf("want 4 attempts, got %d (gaps=%v)", out.Attempts, gaps)
	}
	want := []time.Duration{40 * time.Millisecond, 80 * time.Millisecond, 160 * time.Millisecond}
	for i, g := range gaps {
		if g < want[i]*9/10 {
			t.Fatalf("gap %d = %v, want at least %v (gaps=%v)", i, g, want[i], gaps)
		}
	}
	if gaps[2] < gaps[0]*2 {
		t.Fatalf("backoff is not growing: %v", gaps)
	}
}

func TestExecutor_BackoffCapped(t *testing.T) {
	ex := newTestExecutor(2*time.Second, 4)
	ex.BaseDelay = 40 * time.Millisecond
	ex.MaxDelay = 60 * time.Millisecond

	gaps, out := arrivalGaps(t, ex)
	if out.Attempts != 5 || len(gaps) != 4 {
		t.Fatalf("want 5 attempts, got %d (gaps=%v)", out.Attempts, gaps)
	}
	want := []time.Duration{40 * time.Millisecond, 60 * time.Millisecond, 60 * time.Millisecond, 60 * time.Millisecond}
	for i, g := range gaps {
		if g < want[i]*9/10 {
			t.Fatalf("gap %d = %v, want at least %v (gaps=%v)", i, g, want[i], gaps)
		}
	}
	// uncapped, the last wait would be 320ms
	if gaps[3] > 200*time.Millisecond {
		t.Fatalf("backoff exceeded cap: %v", gaps)
	}
}

func TestExecutor_NegativeRetriesMeansOneAttempt(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", 500)
	}))
	defer s.Close()

	ex := &Executor{Client: s.Client(), Logger: zap.NewNop(), Timeout: time.Second, MaxRetries: -1, BaseDelay: time.Millisecond}
	out := ex.Run(context.Background(), site(s.URL))
	if out.Attempts != 1 || hits.Load() != 1 {
		t.Fatalf("want a single attempt, got %d (hits=%d)", out.Attempts, hits.Load())
	}
}
