package cache

import (
	"testing"
	"time"
)

func TestEntryZeroTTLIsExpired(t *testing.T) {
	now := time.Now()
	entry := NewEntry("v", 0, now)
	if !entry.IsExpired(now) {
		t.Fatal("zero ttl entry should be expired immediately")
	}
	if entry.ExpiresAt >= entry.CreatedAt {
		t.Fatalf("ExpiresAt = %d, want before CreatedAt %d", entry.ExpiresAt, entry.CreatedAt)
	}
}

func TestMetadataCacheExpiry(t *testing.T) {
	c := NewMetadataCache[string]()
	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }

	c.Set("search:daft punk:1", "abc", time.Hour)
	got, ok := c.Get("search:daft punk:1")
	if !ok || got != "abc" {
		t.Fatalf("Get = %q, %v; want abc, true", got, ok)
	}

	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	if _, ok := c.Get("search:daft punk:1"); ok {
		t.Fatal("expired entry returned")
	}
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, expired entry should be dropped on read", c.Len())
	}
}

func TestMetadataCacheZeroTTLNeverReturned(t *testing.T) {
	c := NewMetadataCache[int]()
	c.Set("k", 42, 0)
	if _, ok := c.Get("k"); ok {
		t.Fatal("zero ttl entry returned")
	}
}

func TestMetadataCacheClearExpired(t *testing.T) {
	c := NewMetadataCache[int]()
	base := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return base }

	c.Set("short", 1, time.Minute)
	c.Set("long", 2, 24*time.Hour)
	c.Set("gone", 3, 0)

	c.now = func() time.Time { return base.Add(10 * time.Minute) }
	if n := c.ClearExpired(); n != 2 {
		t.Fatalf("ClearExpired() = %d, want 2", n)
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}
	if v, ok := c.Get("long"); !ok || v != 2 {
		t.Fatalf("Get(long) = %d, %v; want 2, true", v, ok)
	}

	c.Delete("long")
	if c.Len() != 0 {
		t.Fatalf("Len() after delete = %d, want 0", c.Len())
	}
}
