package repo_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hamed0406/sitemonitor/internal/repo"
	"github.com/hamed0406/sitemonitor/internal/repo/bolt"
	"github.com/hamed0406/sitemonitor/internal/repo/memory"
	pg "github.com/hamed0406/sitemonitor/internal/repo/postgres"
	"github.com/hamed0406/sitemonitor/internal/repo/sqlite"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.Store = memory.New()
	var _ repo.Store = (*bolt.Store)(nil)
	var _ repo.Store = (*sqlite.Store)(nil)
	var _ repo.Store = (*pg.Store)(nil)
}

func TestOpen_Drivers(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	for _, d := range []string{"memory", "bolt", "sqlite", ""} {
		s, err := repo.Open(ctx, repo.Options{Driver: d, Path: filepath.Join(dir, d+"x.db")}, nil)
		if err != nil {
			t.Fatalf("open %q: %v", d, err)
		}
		if err := s.Close(); err != nil {
			t.Fatalf("close %q: %v", d, err)
		}
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := repo.Open(context.Background(), repo.Options{Driver: "redis"}, nil)
	if !errors.Is(err, repo.ErrUnknownDriver) {
		t.Fatalf("want ErrUnknownDriver, got %v", err)
	}
}

func TestOpen_PostgresNeedsDSN(t *testing.T) {
	if _, err := repo.Open(context.Background(), repo.Options{Driver: "postgres"}, nil); err == nil {
		t.Fatalf("want error without DSN")
	}
}
