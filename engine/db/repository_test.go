package db

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/liuran001/TrackFetch-Go/engine"
	logpkg "github.com/liuran001/TrackFetch-Go/engine/logger"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T, path string) *Repository {
	t.Helper()
	base := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	repo, err := Open(Options{Path: path, Logger: logpkg.NewGormLogger(base, logger.Silent, 0)})
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo
}

func TestCachedFileIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	repo := newTestRepo(t, path)
	ctx := context.Background()

	older := time.Now().Add(-time.Hour).UTC()
	newer := time.Now().UTC()
	if err := repo.UpsertCachedFile(ctx, &engine.CachedFile{Key: "b", Path: "/c/b.cache", Size: 20, CreatedAt: newer}); err != nil {
		t.Fatalf("upsert b: %v", err)
	}
	if err := repo.UpsertCachedFile(ctx, &engine.CachedFile{Key: "a", Path: "/c/a.cache", Size: 10, CreatedAt: older}); err != nil {
		t.Fatalf("upsert a: %v", err)
	}
	if err := repo.UpsertCachedFile(ctx, &engine.CachedFile{Key: "a", Path: "/c/a.cache", Size: 15, CreatedAt: older}); err != nil {
		t.Fatalf("re-upsert a: %v", err)
	}

	files, err := repo.ListCachedFiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].Key != "a" || files[0].Size != 15 {
		t.Fatalf("expected oldest entry a with size 15, got %+v", files[0])
	}

	if err := repo.DeleteCachedFile(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := newTestRepo(t, path)
	defer reopened.Close()
	files, err = reopened.ListCachedFiles(ctx)
	if err != nil {
		t.Fatalf("list after reopen: %v", err)
	}
	if len(files) != 1 || files[0].Key != "b" {
		t.Fatalf("unexpected files after reopen: %+v", files)
	}

	if err := reopened.ClearCachedFiles(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	files, _ = reopened.ListCachedFiles(ctx)
	if len(files) != 0 {
		t.Fatalf("expected empty index, got %d", len(files))
	}
}

func TestStatsIncrement(t *testing.T) {
	repo := newTestRepo(t, filepath.Join(t.TempDir(), "stats.db"))
	defer repo.Close()
	ctx := context.Background()

	if v, err := repo.Get(ctx, engine.StatCompleted); err != nil || v != 0 {
		t.Fatalf("expected zero counter, got %d (%v)", v, err)
	}
	for i := 0; i < 3; i++ {
		if err := repo.Increment(ctx, engine.StatCompleted, 1); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := repo.Increment(ctx, engine.StatFailed, 2); err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	if v, _ := repo.Get(ctx, engine.StatCompleted); v != 3 {
		t.Fatalf("completed = %d, want 3", v)
	}
	if v, _ := repo.Get(ctx, engine.StatFailed); v != 2 {
		t.Fatalf("failed = %d, want 2", v)
	}
}
