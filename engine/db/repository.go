package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/liuran001/TrackFetch-Go/engine"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Repository stores the file cache index and lifetime statistics.
type Repository struct {
	db *gorm.DB
}

var (
	_ engine.CacheIndex    = (*Repository)(nil)
	_ engine.StatsRecorder = (*Repository)(nil)
)

// Options configures the SQLite repository.
type Options struct {
	Path   string
	Logger logger.Interface
	// Connection pool limits. Zero keeps the single-connection default that
	// SQLite writers need; negative values leave database/sql defaults.
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open creates the cache index and stats tables in a SQLite file.
func Open(opts Options) (*Repository, error) {
	if opts.Path == "" {
		return nil, errors.New("database path required")
	}
	gormLogger := opts.Logger
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	if dir := filepath.Dir(opts.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(opts.Path), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Path, err)
	}
	if err := applySQLitePragmas(db); err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&CachedFileModel{}, &StatModel{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(poolLimit(opts.MaxOpenConns, 1))
	sqlDB.SetMaxIdleConns(poolLimit(opts.MaxIdleConns, 1))
	lifetime := opts.ConnMaxLifetime
	if lifetime == 0 {
		lifetime = time.Hour
	}
	if lifetime > 0 {
		sqlDB.SetConnMaxLifetime(lifetime)
	}
	return &Repository{db: db}, nil
}

func poolLimit(v, def int) int {
	switch {
	case v == 0:
		return def
	case v < 0:
		return 0
	default:
		return v
	}
}

// UpsertCachedFile records or replaces the index row for a cached blob.
func (r *Repository) UpsertCachedFile(ctx context.Context, file *engine.CachedFile) error {
	if file == nil || file.Key == "" {
		return errors.New("cached file key required")
	}
	model := cachedFileFromInternal(file)
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"path", "size", "created_at"}),
	}).Create(&model).Error
}

// DeleteCachedFile removes the index row for key. Missing rows are not an error.
func (r *Repository) DeleteCachedFile(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("key = ?", key).Delete(&CachedFileModel{}).Error
}

// ListCachedFiles returns every indexed blob, oldest first.
func (r *Repository) ListCachedFiles(ctx context.Context) ([]engine.CachedFile, error) {
	var models []CachedFileModel
	if err := r.db.WithContext(ctx).Order("created_at asc, id asc").Find(&models).Error; err != nil {
		return nil, err
	}
	files := make([]engine.CachedFile, 0, len(models))
	for _, model := range models {
		files = append(files, cachedFileToInternal(model))
	}
	return files, nil
}

// ClearCachedFiles drops the whole index.
func (r *Repository) ClearCachedFiles(ctx context.Context) error {
	return r.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&CachedFileModel{}).Error
}

// Increment adds delta to the named counter, creating it on first use.
func (r *Repository) Increment(ctx context.Context, key string, delta int64) error {
	stat := StatModel{Key: key, Value: delta}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"value": gorm.Expr("value + ?", delta), "updated_at": time.Now()}),
	}).Create(&stat).Error
}

// Get returns the named counter, zero when it was never incremented.
func (r *Repository) Get(ctx context.Context, key string) (int64, error) {
	var stat StatModel
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return stat.Value, nil
}

func applySQLitePragmas(db *gorm.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-64000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, stmt := range pragmas {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
