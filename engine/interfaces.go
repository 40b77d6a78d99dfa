package engine

import "context"

// Logger is the minimal logging abstraction used across modules.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
}

// Config provides typed access to configuration values.
type Config interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
	GetIntSlice(key string) []int
}

// WorkerPool runs download execution units with bounded concurrency.
type WorkerPool interface {
	Submit(unit func()) error
	Shutdown(ctx context.Context) error
	Size() int
}

// StatsRecorder keeps lifetime download counters that outlive the in-memory queue.
type StatsRecorder interface {
	Increment(ctx context.Context, key string, delta int64) error
	Get(ctx context.Context, key string) (int64, error)
}

// CacheIndex persists the file cache bookkeeping so the aggregate size
// survives restarts without rescanning the cache directory.
type CacheIndex interface {
	UpsertCachedFile(ctx context.Context, file *CachedFile) error
	DeleteCachedFile(ctx context.Context, key string) error
	ListCachedFiles(ctx context.Context) ([]CachedFile, error)
	ClearCachedFiles(ctx context.Context) error
}

// Lifetime counter keys.
const (
	StatCompleted = "downloads_completed"
	StatFailed    = "downloads_failed"
)
