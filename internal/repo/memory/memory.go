package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

type Store struct {
	mu      sync.RWMutex
	states  map[domain.TargetID]domain.AlertState
	results map[domain.TargetID]domain.CheckResult
}

func New() *Store {
	return &Store{
		states:  make(map[domain.TargetID]domain.AlertState),
		results: make(map[domain.TargetID]domain.CheckResult),
	}
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.AlertState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[id]
	if !ok {
		return nil, nil
	}
	if st.LastAlertAt != nil {
		at := *st.LastAlertAt
		st.LastAlertAt = &at
	}
	return &st, nil
}

func (m *Store) Put(ctx context.Context, st domain.AlertState) error {
	if st.LastAlertAt != nil {
		at := *st.LastAlertAt
		st.LastAlertAt = &at
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.TargetID] = st
	return nil
}

func (m *Store) List(ctx context.Context) ([]domain.AlertState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.AlertState, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out, nil
}

// Record keeps only the newest result per target.
func (m *Store) Record(ctx context.Context, r domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.results[r.TargetID]; ok && cur.CheckedAt.After(r.CheckedAt) {
		return nil
	}
	m.results[r.TargetID] = r
	return nil
}

func (m *Store) Latest(ctx context.Context) ([]domain.CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.CheckResult, 0, len(m.results))
	for _, r := range m.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out, nil
}

func (m *Store) Close() error { return nil }
