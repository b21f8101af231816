// Package sqlite stores alert state in a single-file SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS alert_state (
	target_id            TEXT PRIMARY KEY,
	last_alert_at        TEXT NULL,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	last_known_healthy   INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS latest_results (
	target_id  TEXT PRIMARY KEY,
	checked_at TEXT NOT NULL,
	doc        TEXT NOT NULL
);
`

// fixed width so stored timestamps order lexically
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db *sql.DB
}

func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite store requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.AlertState, error) {
	var (
		lastAlert sql.NullString
		st        = domain.AlertState{TargetID: id}
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT last_alert_at, consecutive_failures, last_known_healthy FROM alert_state WHERE target_id = ?`,
		string(id)).Scan(&lastAlert, &st.ConsecutiveFailures, &st.LastKnownHealthy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get alert state: %w", err)
	}
	if st.LastAlertAt, err = parseTime(lastAlert); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Store) Put(ctx context.Context, st domain.AlertState) error {
	var lastAlert any
	if st.LastAlertAt != nil {
		lastAlert = st.LastAlertAt.UTC().Format(tsLayout)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alert_state (target_id, last_alert_at, consecutive_failures, last_known_healthy)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (target_id) DO UPDATE SET
			last_alert_at = excluded.last_alert_at,
			consecutive_failures = excluded.consecutive_failures,
			last_known_healthy = excluded.last_known_healthy`,
		string(st.TargetID), lastAlert, st.ConsecutiveFailures, st.LastKnownHealthy)
	if err != nil {
		return fmt.Errorf("put alert state: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.AlertState, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT target_id, last_alert_at, consecutive_failures, last_known_healthy FROM alert_state ORDER BY target_id`)
	if err != nil {
		return nil, fmt.Errorf("list alert state: %w", err)
	}
	defer rows.Close()

	var out []domain.AlertState
	for rows.Next() {
		var (
			st        domain.AlertState
			id        string
			lastAlert sql.NullString
		)
		if err := rows.Scan(&id, &lastAlert, &st.ConsecutiveFailures, &st.LastKnownHealthy); err != nil {
			return nil, fmt.Errorf("scan alert state: %w", err)
		}
		st.TargetID = domain.TargetID(id)
		if st.LastAlertAt, err = parseTime(lastAlert); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) Record(ctx context.Context, r domain.CheckResult) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO latest_results (target_id, checked_at, doc) VALUES (?, ?, ?)
		ON CONFLICT (target_id) DO UPDATE SET checked_at = excluded.checked_at, doc = excluded.doc
		WHERE excluded.checked_at >= latest_results.checked_at`,
		string(r.TargetID), r.CheckedAt.UTC().Format(tsLayout), string(doc))
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) ([]domain.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM latest_results ORDER BY target_id`)
	if err != nil {
		return nil, fmt.Errorf("latest results: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckResult
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		var r domain.CheckResult
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("decode result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func parseTime(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", v.String, err)
	}
	return &t, nil
}
