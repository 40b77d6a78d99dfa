package cache

import (
	"context"
	"sync"
	"time"
)

// Entry wraps a cached value with its lifetime, in seconds since the epoch.
type Entry[T any] struct {
	Value     T
	CreatedAt int64
	ExpiresAt int64
}

// NewEntry creates an entry that expires ttl after now. A ttl of zero or
// less produces an entry that is already expired.
func NewEntry[T any](value T, ttl time.Duration, now time.Time) Entry[T] {
	created := now.Unix()
	expires := now.Add(ttl).Unix()
	if ttl <= 0 {
		expires = created - 1
	}
	return Entry[T]{Value: value, CreatedAt: created, ExpiresAt: expires}
}

// IsExpired reports whether at is past the entry's expiry.
func (e Entry[T]) IsExpired(at time.Time) bool {
	return at.Unix() > e.ExpiresAt
}

// MetadataCache is an in-memory key/value cache with per-entry TTL. It has no
// size bound; it holds search and extraction results only.
type MetadataCache[T any] struct {
	mu      sync.RWMutex
	entries map[string]Entry[T]
	now     func() time.Time
}

// NewMetadataCache creates an empty cache.
func NewMetadataCache[T any]() *MetadataCache[T] {
	return &MetadataCache[T]{
		entries: make(map[string]Entry[T]),
		now:     time.Now,
	}
}

// Set stores value under key for ttl.
func (c *MetadataCache[T]) Set(key string, value T, ttl time.Duration) {
	entry := NewEntry(value, ttl, c.now())
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()
}

// Get returns the value for key when present and not expired. Expired
// entries are dropped on read.
func (c *MetadataCache[T]) Get(key string) (T, bool) {
	var zero T

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}

	if entry.IsExpired(c.now()) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.ExpiresAt == entry.ExpiresAt {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return entry.Value, true
}

// Delete removes key.
func (c *MetadataCache[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// ClearExpired removes every expired entry and returns how many were dropped.
func (c *MetadataCache[T]) ClearExpired() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, entry := range c.entries {
		if entry.IsExpired(now) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

// Clear drops every entry.
func (c *MetadataCache[T]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry[T])
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired or not.
func (c *MetadataCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// StartJanitor sweeps expired entries every interval until ctx is done.
func (c *MetadataCache[T]) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.ClearExpired()
			}
		}
	}()
}
