package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/liuran001/TrackFetch-Go/engine/logger"
)

func TestPoolConcurrencyLimit(t *testing.T) {
	pool := New(Options{Size: 2})
	defer func() {
		_ = pool.Shutdown(context.Background())
	}()

	var current int32
	var peak int32

	unit := func() {
		val := atomic.AddInt32(&current, 1)
		for {
			prev := atomic.LoadInt32(&peak)
			if val <= prev {
				break
			}
			if atomic.CompareAndSwapInt32(&peak, prev, val) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&current, -1)
	}

	for i := 0; i < 4; i++ {
		if err := pool.Submit(unit); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}

	_ = pool.Shutdown(context.Background())
	if peak > 2 {
		t.Fatalf("expected peak concurrency <= 2, got %d", peak)
	}
}

func TestPoolSubmitAfterShutdown(t *testing.T) {
	pool := New(Options{Size: 1})
	_ = pool.Shutdown(context.Background())
	if err := pool.Submit(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Fatalf("expected ErrPoolClosed, got %v", err)
	}
}

func TestPoolRecoversPanickingUnit(t *testing.T) {
	pool := New(Options{Size: 1, Logger: logger.Discard()})

	if err := pool.Submit(func() { panic("boom") }); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	done := make(chan struct{})
	if err := pool.Submit(func() { close(done) }); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking unit")
	}
	_ = pool.Shutdown(context.Background())
	if got := pool.Panics(); got != 1 {
		t.Fatalf("Panics() = %d, want 1", got)
	}
}

func TestPoolShutdownTimeout(t *testing.T) {
	pool := New(Options{Size: 1})
	release := make(chan struct{})
	defer close(release)
	_ = pool.Submit(func() { <-release })

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := pool.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context deadline exceeded, got %v", err)
	}
}

func TestPoolRunningAndQueued(t *testing.T) {
	pool := New(Options{Size: 2, QueueSize: 4})
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	for i := 0; i < 3; i++ {
		_ = pool.Submit(func() {
			started <- struct{}{}
			<-release
		})
	}
	<-started
	<-started
	if got := pool.Running(); got != 2 {
		t.Fatalf("Running() = %d, want 2", got)
	}
	if got := pool.Queued(); got != 1 {
		t.Fatalf("Queued() = %d, want 1", got)
	}
	close(release)
	_ = pool.Shutdown(context.Background())
	if got := pool.Running(); got != 0 {
		t.Fatalf("Running() after shutdown = %d, want 0", got)
	}
}
