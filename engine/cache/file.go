package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/liuran001/TrackFetch-Go/engine"
)

// ErrTooLarge is returned when a single blob exceeds the whole cache budget.
var ErrTooLarge = errors.New("cache: entry larger than cache budget")

const fileSuffix = ".cache"

// FileCache stores blobs on disk under a fixed aggregate size budget. When a
// write would exceed the budget the oldest entries are evicted first.
type FileCache struct {
	dir     string
	maxSize int64
	index   engine.CacheIndex
	logger  engine.Logger
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]engine.CachedFile
	current int64
}

// FileCacheOptions configures a FileCache.
type FileCacheOptions struct {
	Dir     string
	MaxSize int64
	// Index is optional; without it the cache rebuilds its bookkeeping by
	// scanning Dir once at open.
	Index  engine.CacheIndex
	Logger engine.Logger
}

// NewFileCache opens (or creates) a file cache rooted at opts.Dir.
func NewFileCache(ctx context.Context, opts FileCacheOptions) (*FileCache, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("cache dir required")
	}
	if opts.MaxSize <= 0 {
		return nil, errors.New("cache max size must be positive")
	}
	if err := os.MkdirAll(opts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	c := &FileCache{
		dir:     opts.Dir,
		maxSize: opts.MaxSize,
		index:   opts.Index,
		logger:  opts.Logger,
		now:     time.Now,
		entries: make(map[string]engine.CachedFile),
	}
	if err := c.load(ctx); err != nil {
		return nil, err
	}

	// The budget may have shrunk since the index was written.
	c.mu.Lock()
	evicted := c.makeRoomLocked(ctx, 0)
	c.mu.Unlock()
	if c.logger != nil {
		c.logger.Info("file cache opened", "dir", c.dir, "entries", c.Len(),
			"size", humanize.IBytes(uint64(c.Size())), "max", humanize.IBytes(uint64(c.maxSize)), "evicted", evicted)
	}
	return c, nil
}

// makeRoomLocked evicts oldest entries until extra more bytes fit in the
// budget and returns how many were evicted.
func (c *FileCache) makeRoomLocked(ctx context.Context, extra int64) int {
	evicted := 0
	for c.current+extra > c.maxSize {
		oldest, ok := c.oldestLocked()
		if !ok {
			break
		}
		if c.logger != nil {
			c.logger.Debug("evicting cache entry", "key", oldest.Key, "size", humanize.IBytes(uint64(oldest.Size)))
		}
		c.removeLocked(ctx, oldest)
		evicted++
	}
	return evicted
}

func (c *FileCache) load(ctx context.Context) error {
	if c.index != nil {
		files, err := c.index.ListCachedFiles(ctx)
		if err != nil {
			return fmt.Errorf("load cache index: %w", err)
		}
		for _, file := range files {
			if _, err := os.Stat(file.Path); err != nil {
				_ = c.index.DeleteCachedFile(ctx, file.Key)
				continue
			}
			c.entries[file.Key] = file
			c.current += file.Size
		}
		return nil
	}

	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("scan cache dir: %w", err)
	}
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileSuffix) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		key := strings.TrimSuffix(de.Name(), fileSuffix)
		c.entries[key] = engine.CachedFile{
			Key:       key,
			Path:      filepath.Join(c.dir, de.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		}
		c.current += info.Size()
	}
	return nil
}

// Put writes data under key, evicting the oldest entries until it fits.
func (c *FileCache) Put(ctx context.Context, key string, data []byte) error {
	name := fileKey(key)
	size := int64(len(data))
	if size > c.maxSize {
		return fmt.Errorf("%w: %s > %s", ErrTooLarge, humanize.IBytes(uint64(size)), humanize.IBytes(uint64(c.maxSize)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[name]; ok {
		c.removeLocked(ctx, old)
	}

	c.makeRoomLocked(ctx, size)

	path := filepath.Join(c.dir, name+fileSuffix)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	entry := engine.CachedFile{Key: name, Path: path, Size: size, CreatedAt: c.now()}
	c.entries[name] = entry
	c.current += size

	if c.index != nil {
		if err := c.index.UpsertCachedFile(ctx, &entry); err != nil && c.logger != nil {
			c.logger.Warn("cache index update failed", "key", name, "error", err)
		}
	}
	return nil
}

// Get returns the blob stored under key.
func (c *FileCache) Get(key string) ([]byte, bool) {
	name := fileKey(key)
	c.mu.Lock()
	entry, ok := c.entries[name]
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Remove deletes key from the cache.
func (c *FileCache) Remove(ctx context.Context, key string) {
	name := fileKey(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[name]; ok {
		c.removeLocked(ctx, entry)
	}
}

// Clear deletes every cached blob.
func (c *FileCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, entry := range c.entries {
		if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	c.entries = make(map[string]engine.CachedFile)
	c.current = 0
	if c.index != nil {
		if err := c.index.ClearCachedFiles(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Size returns the aggregate size of cached blobs in bytes.
func (c *FileCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// MaxSize returns the configured budget in bytes.
func (c *FileCache) MaxSize() int64 {
	return c.maxSize
}

// Len returns the number of cached blobs.
func (c *FileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *FileCache) oldestLocked() (engine.CachedFile, bool) {
	if len(c.entries) == 0 {
		return engine.CachedFile{}, false
	}
	files := make([]engine.CachedFile, 0, len(c.entries))
	for _, entry := range c.entries {
		files = append(files, entry)
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].CreatedAt.Equal(files[j].CreatedAt) {
			return files[i].Key < files[j].Key
		}
		return files[i].CreatedAt.Before(files[j].CreatedAt)
	})
	return files[0], true
}

func (c *FileCache) removeLocked(ctx context.Context, entry engine.CachedFile) {
	if err := os.Remove(entry.Path); err != nil && !os.IsNotExist(err) && c.logger != nil {
		c.logger.Warn("remove cache file failed", "path", entry.Path, "error", err)
	}
	delete(c.entries, entry.Key)
	c.current -= entry.Size
	if c.current < 0 {
		c.current = 0
	}
	if c.index != nil {
		if err := c.index.DeleteCachedFile(ctx, entry.Key); err != nil && c.logger != nil {
			c.logger.Warn("cache index delete failed", "key", entry.Key, "error", err)
		}
	}
}

// fileKey maps an arbitrary cache key onto a safe file name.
func fileKey(key string) string {
	if key != "" && !strings.ContainsAny(key, `/\:*?"<>|. `) && len(key) <= 128 {
		return key
	}
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}
