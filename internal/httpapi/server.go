package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	apimw "github.com/hamed0406/sitemonitor/internal/httpapi/middleware"
	"github.com/hamed0406/sitemonitor/internal/repo"
	"github.com/hamed0406/sitemonitor/internal/scheduler"
)

// Ticker runs one scheduling pass; *scheduler.Scheduler implements it.
type Ticker interface {
	Tick(ctx context.Context, targets []domain.TargetSpec) scheduler.Summary
}

type Server struct {
	Logger  *zap.Logger
	Targets []domain.TargetSpec
	Results repo.ResultStore
	Alerts  repo.AlertStore
	Ticker  Ticker
}

func NewServer(l *zap.Logger, targets []domain.TargetSpec, rs repo.ResultStore, as repo.AlertStore, t Ticker) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Targets: targets, Results: rs, Alerts: as, Ticker: t}
}

func (s *Server) Router(keys apimw.Keys, allowedOrigins []string, pubRPM, pubBurst, admRPM, admBurst int) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer)
	if len(allowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(pubRPM, pubBurst), apimw.RequireAny(keys))
		r.Get("/api/targets", s.handleListTargets)
		r.Get("/api/results/latest", s.handleLatest)
		r.Get("/api/alerts", s.handleAlerts)
	})

	r.Group(func(r chi.Router) {
		r.Use(apimw.RateLimit(admRPM, admBurst), apimw.RequireAdmin(keys))
		r.Post("/api/checks/run", s.handleRunChecks)
	})

	return r
}

func (s *Server) handleListTargets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Targets)
}

type latestRow struct {
	TargetID domain.TargetID    `json:"target_id"`
	URL      string             `json:"url"`
	Kind     domain.TargetKind  `json:"kind"`
	Result   domain.CheckResult `json:"result"`
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rows, err := s.Results.Latest(r.Context())
	if err != nil {
		s.Logger.Warn("latest_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "latest error")
		return
	}
	byID := make(map[domain.TargetID]domain.TargetSpec, len(s.Targets))
	for _, t := range s.Targets {
		byID[t.ID] = t
	}
	out := make([]latestRow, 0, len(rows))
	for _, res := range rows {
		row := latestRow{TargetID: res.TargetID, URL: string(res.TargetID), Result: res}
		if t, ok := byID[res.TargetID]; ok {
			row.URL, row.Kind = t.URL, t.Kind
		}
		out = append(out, row)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	states, err := s.Alerts.List(r.Context())
	if err != nil {
		s.Logger.Warn("alerts_error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "alerts error")
		return
	}
	if states == nil {
		states = []domain.AlertState{}
	}
	writeJSON(w, http.StatusOK, states)
}

type runResponse struct {
	Healthy          int                  `json:"healthy"`
	Failed           int                  `json:"failed"`
	AlertsSent       int                  `json:"alerts_sent"`
	AlertsSuppressed int                  `json:"alerts_suppressed"`
	DeliveryFailures int                  `json:"delivery_failures"`
	DurationMS       float64              `json:"duration_ms"`
	Results          []domain.CheckResult `json:"results"`
}

func (s *Server) handleRunChecks(w http.ResponseWriter, r *http.Request) {
	if s.Ticker == nil {
		writeError(w, http.StatusServiceUnavailable, "scheduler unavailable")
		return
	}
	// the tick outlives a dropped client so alert state stays consistent
	sum := s.Ticker.Tick(context.WithoutCancel(r.Context()), s.Targets)
	s.Logger.Info("manual_run",
		zap.String("role", string(apimw.RoleFrom(r.Context()))),
		zap.String("request_id", chimw.GetReqID(r.Context())),
		zap.Int("failed", sum.Failed),
	)
	writeJSON(w, http.StatusOK, runResponse{
		Healthy:          sum.Healthy,
		Failed:           sum.Failed,
		AlertsSent:       sum.AlertsSent,
		AlertsSuppressed: sum.AlertsSuppressed,
		DeliveryFailures: sum.DeliveryFailures,
		DurationMS:       float64(sum.Duration) / float64(time.Millisecond),
		Results:          sum.Results,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
