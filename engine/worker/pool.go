package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/liuran001/TrackFetch-Go/engine"
)

var ErrPoolClosed = errors.New("worker pool closed")

// Options configures a Pool.
type Options struct {
	// Size is the number of execution units that may run at once.
	Size int
	// QueueSize bounds units waiting for a worker. Defaults to 8 per worker.
	QueueSize int
	Logger    engine.Logger
}

// Pool runs download execution units on a fixed set of workers. A unit that
// panics is recovered and logged; the worker keeps serving.
type Pool struct {
	units    chan func()
	wg       sync.WaitGroup
	shutdown chan struct{}
	mu       sync.RWMutex
	closed   bool
	size     int
	running  atomic.Int32
	panics   atomic.Int64
	logger   engine.Logger
}

// New starts a pool with opts.Size workers.
func New(opts Options) *Pool {
	size := opts.Size
	if size <= 0 {
		size = 1
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = max(size*8, 8)
	}

	p := &Pool{
		units:    make(chan func(), queueSize),
		shutdown: make(chan struct{}),
		size:     size,
		logger:   opts.Logger,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

func (p *Pool) work() {
	defer p.wg.Done()
	for unit := range p.units {
		if unit != nil {
			p.run(unit)
		}
	}
}

func (p *Pool) run(unit func()) {
	p.running.Add(1)
	defer p.running.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			if p.logger != nil {
				p.logger.Error("execution unit panicked", "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
			}
		}
	}()
	unit()
}

// Submit queues a unit. It blocks while the queue is full and fails once the
// pool is shut down.
func (p *Pool) Submit(unit func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	select {
	case <-p.shutdown:
		return ErrPoolClosed
	case p.units <- unit:
		return nil
	}
}

// Shutdown stops accepting units and waits for queued and running ones until
// ctx is done.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.close()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

// StopNow closes the pool without waiting for units to finish.
func (p *Pool) StopNow() {
	p.close()
}

func (p *Pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.shutdown)
		close(p.units)
	}
}

// Size returns the worker count.
func (p *Pool) Size() int {
	return p.size
}

// Running returns the number of units currently executing.
func (p *Pool) Running() int {
	return int(p.running.Load())
}

// Queued returns the number of units waiting for a worker.
func (p *Pool) Queued() int {
	return len(p.units)
}

// Panics returns how many units have panicked since the pool started.
func (p *Pool) Panics() int64 {
	return p.panics.Load()
}
