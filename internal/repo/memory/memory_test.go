package memory

import (
	"context"
	"testing"
	"time"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

func TestMemoryStore_GetMissingReturnsNil(t *testing.T) {
	s := New()
	st, err := s.Get(context.Background(), "nope")
	if err != nil || st != nil {
		t.Fatalf("expected nil,nil got %+v err=%v", st, err)
	}
}

func TestMemoryStore_PutUpsertsAndCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	at := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	st := domain.AlertState{TargetID: "a", LastAlertAt: &at, ConsecutiveFailures: 2}
	if err := s.Put(ctx, st); err != nil {
		t.Fatalf("Put: %v", err)
	}
	at = at.Add(time.Hour) // caller mutation must not leak into the store

	got, err := s.Get(ctx, "a")
	if err != nil || got == nil {
		t.Fatalf("Get: %+v err=%v", got, err)
	}
	if !got.LastAlertAt.Equal(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("stored time changed: %v", got.LastAlertAt)
	}

	st.ConsecutiveFailures = 0
	st.LastKnownHealthy = true
	st.LastAlertAt = nil
	if err := s.Put(ctx, st); err != nil {
		t.Fatalf("Put 2: %v", err)
	}
	got, _ = s.Get(ctx, "a")
	if got.LastAlertAt != nil || got.ConsecutiveFailures != 0 || !got.LastKnownHealthy {
		t.Fatalf("unexpected after upsert: %+v", got)
	}

	all, _ := s.List(ctx)
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
}

func TestMemoryStore_LatestKeepsNewest(t *testing.T) {
	ctx := context.Background()
	s := New()
	now := time.Now().UTC()

	_ = s.Record(ctx, domain.CheckResult{TargetID: "a", Succeeded: true, CheckedAt: now})
	_ = s.Record(ctx, domain.CheckResult{TargetID: "a", Succeeded: false, CheckedAt: now.Add(-time.Minute)})
	_ = s.Record(ctx, domain.CheckResult{TargetID: "b", Succeeded: false, CheckedAt: now})

	latest, err := s.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if len(latest) != 2 || latest[0].TargetID != "a" || !latest[0].Succeeded {
		t.Fatalf("unexpected latest: %+v", latest)
	}
}
