// Package bolt is the default embedded alert store.
package bolt

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

var (
	alertStateBucket = []byte("alert_state")
	latestBucket     = []byte("latest_results")
)

type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("bolt store requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{alertStateBucket, latestBucket} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(ctx context.Context, id domain.TargetID) (*domain.AlertState, error) {
	var st *domain.AlertState
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(alertStateBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		st = new(domain.AlertState)
		return json.Unmarshal(v, st)
	})
	if err != nil {
		return nil, fmt.Errorf("get alert state %s: %w", id, err)
	}
	return st, nil
}

func (s *Store) Put(ctx context.Context, st domain.AlertState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal alert state: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(alertStateBucket).Put([]byte(st.TargetID), data)
	})
}

func (s *Store) List(ctx context.Context) ([]domain.AlertState, error) {
	var out []domain.AlertState
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(alertStateBucket).ForEach(func(k, v []byte) error {
			var st domain.AlertState
			if err := json.Unmarshal(v, &st); err != nil {
				return fmt.Errorf("unmarshal alert state %s: %w", k, err)
			}
			out = append(out, st)
			return nil
		})
	})
	return out, err
}

// Record overwrites the target's latest result unless a newer one is stored.
func (s *Store) Record(ctx context.Context, r domain.CheckResult) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(latestBucket)
		if v := b.Get([]byte(r.TargetID)); v != nil {
			var cur domain.CheckResult
			if err := json.Unmarshal(v, &cur); err == nil && cur.CheckedAt.After(r.CheckedAt) {
				return nil
			}
		}
		return b.Put([]byte(r.TargetID), data)
	})
}

func (s *Store) Latest(ctx context.Context) ([]domain.CheckResult, error) {
	var out []domain.CheckResult
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(latestBucket).ForEach(func(k, v []byte) error {
			var r domain.CheckResult
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal result %s: %w", k, err)
			}
			out = append(out, r)
			return nil
		})
	})
	return out, err
}
