package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/sitemonitor/internal/domain"
	"github.com/hamed0406/sitemonitor/internal/repo/bolt"
	"github.com/hamed0406/sitemonitor/internal/repo/memory"
	"github.com/hamed0406/sitemonitor/internal/repo/postgres"
	"github.com/hamed0406/sitemonitor/internal/repo/sqlite"
)

// Ports (interfaces). Every adapter below implements all of them.

// AlertStore persists per-target alert state across runs.
type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, id domain.TargetID) (*domain.AlertState, error)
	// Put upserts the whole record atomically.
	Put(ctx context.Context, st domain.AlertState) error
	List(ctx context.Context) ([]domain.AlertState, error)
}

type ResultStore interface {
	Record(ctx context.Context, r domain.CheckResult) error
	// Latest returns the most recent result per target.
	Latest(ctx context.Context) ([]domain.CheckResult, error)
}

type Store interface {
	AlertStore
	ResultStore
	Close() error
}

var ErrUnknownDriver = errors.New("unknown store driver")

type Options struct {
	Driver string // memory | bolt | sqlite | postgres
	Path   string // file path for bolt and sqlite
	DSN    string // postgres connection string
}

// Open picks the adapter. An empty driver means postgres when a DSN is
// configured and bolt otherwise.
func Open(ctx context.Context, opts Options, log *zap.Logger) (Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver == "" {
		driver = "bolt"
		if opts.DSN != "" {
			driver = "postgres"
		}
	}

	var (
		s   Store
		err error
	)
	switch driver {
	case "memory":
		s = memory.New()
	case "bolt":
		s, err = bolt.Open(opts.Path)
	case "sqlite":
		s, err = sqlite.Open(ctx, opts.Path)
	case "postgres":
		if opts.DSN == "" {
			return nil, errors.New("postgres store requires DATABASE_URL")
		}
		s, err = postgres.New(ctx, opts.DSN, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	log.Info("store_opened", zap.String("driver", driver))
	return s, nil
}
