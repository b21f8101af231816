package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects, applies pending migrations and returns a ready store.
func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := Migrate(dsn); err != nil {
		return nil, err
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func Migrate(dsn string) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// ---- AlertStore ----

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.AlertState, error) {
	const q = `SELECT last_alert_at, consecutive_failures, last_known_healthy FROM alert_state WHERE target_id=$1`
	st := domain.AlertState{TargetID: id}
	err := s.pool.QueryRow(ctx, q, string(id)).Scan(&st.LastAlertAt, &st.ConsecutiveFailures, &st.LastKnownHealthy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert state: %w", err)
	}
	return &st, nil
}

func (s *Store) Put(ctx context.Context, st domain.AlertState) error {
	const q = `
		INSERT INTO alert_state (target_id, last_alert_at, consecutive_failures, last_known_healthy, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (target_id)
		DO UPDATE SET last_alert_at=EXCLUDED.last_alert_at,
		              consecutive_failures=EXCLUDED.consecutive_failures,
		              last_known_healthy=EXCLUDED.last_known_healthy,
		              updated_at=now()
	`
	if _, err := s.pool.Exec(ctx, q, string(st.TargetID), st.LastAlertAt, st.ConsecutiveFailures, st.LastKnownHealthy); err != nil {
		return fmt.Errorf("put alert state: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.AlertState, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT target_id, last_alert_at, consecutive_failures, last_known_healthy
		   FROM alert_state
		  ORDER BY target_id`)
	if err != nil {
		return nil, fmt.Errorf("list alert state: %w", err)
	}
	defer rows.Close()

	var out []domain.AlertState
	for rows.Next() {
		var (
			id string
			st domain.AlertState
		)
		if err := rows.Scan(&id, &st.LastAlertAt, &st.ConsecutiveFailures, &st.LastKnownHealthy); err != nil {
			return nil, fmt.Errorf("scan alert state: %w", err)
		}
		st.TargetID = domain.TargetID(id)
		out = append(out, st)
	}
	return out, rows.Err()
}

// ---- ResultStore ----

func (s *Store) Record(ctx context.Context, r domain.CheckResult) error {
	var detail []byte
	if len(r.ValidationDetail) > 0 {
		b, err := json.Marshal(r.ValidationDetail)
		if err != nil {
			return fmt.Errorf("marshal detail: %w", err)
		}
		detail = b
	}
	// Only the newest result per target is kept; an older one never overwrites it.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO latest_results
		   (target_id, succeeded, http_status, latency_ms, attempts, failure_reason, detail, error, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (target_id) DO UPDATE SET
		   succeeded      = EXCLUDED.succeeded,
		   http_status    = EXCLUDED.http_status,
		   latency_ms     = EXCLUDED.latency_ms,
		   attempts       = EXCLUDED.attempts,
		   failure_reason = EXCLUDED.failure_reason,
		   detail         = EXCLUDED.detail,
		   error          = EXCLUDED.error,
		   checked_at     = EXCLUDED.checked_at
		 WHERE EXCLUDED.checked_at >= latest_results.checked_at`,
		string(r.TargetID), r.Succeeded, r.HTTPStatus, r.LatencyMS, r.Attempts,
		string(r.FailureReason), detail, r.Error, r.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert result: %w", err)
	}
	return nil
}

func (s *Store) Latest(ctx context.Context) ([]domain.CheckResult, error) {
	rows, err := s.pool.Query(ctx, `
SELECT target_id, succeeded, http_status, latency_ms, attempts,
       failure_reason, detail, error, checked_at
  FROM latest_results
 ORDER BY target_id`)
	if err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}
	defer rows.Close()

	var out []domain.CheckResult
	for rows.Next() {
		var (
			r      domain.CheckResult
			id     string
			reason string
			detail []byte
		)
		if err := rows.Scan(&id, &r.Succeeded, &r.HTTPStatus, &r.LatencyMS, &r.Attempts,
			&reason, &detail, &r.Error, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan latest: %w", err)
		}
		r.TargetID = domain.TargetID(id)
		r.FailureReason = domain.FailureReason(reason)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &r.ValidationDetail); err != nil {
				return nil, fmt.Errorf("decode detail: %w", err)
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
