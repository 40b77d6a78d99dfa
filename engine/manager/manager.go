// Package manager owns the download queue: the task table, its state
// machine, the concurrency ceiling and the loop that promotes pending tasks.
package manager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/audio"
	"github.com/liuran001/TrackFetch-Go/engine/cache"
	"github.com/liuran001/TrackFetch-Go/engine/downloader"
	"github.com/liuran001/TrackFetch-Go/engine/embed"
	"github.com/liuran001/TrackFetch-Go/engine/logger"
	"github.com/samber/lo"
)

var (
	// ErrAlreadyDownloaded is returned by Submit when the destination already
	// holds a valid audio file. No task is created.
	ErrAlreadyDownloaded = errors.New("track already downloaded")

	ErrTaskNotFound      = errors.New("task not found")
	ErrInvalidTransition = errors.New("invalid task state transition")
)

// minExistingSize is the size below which an existing destination is treated
// as a leftover rather than a finished download.
const minExistingSize = 1024

// MetadataSearcher looks up tags and lyrics for a track.
type MetadataSearcher interface {
	Search(ctx context.Context, artist, title, album string) (*engine.MetadataRecord, error)
	SearchLyrics(ctx context.Context, artist, title string) (string, error)
}

// Options configures a Manager.
type Options struct {
	MaxConcurrent int
	// AutoStart is polled on every promotion pass; nil means always on.
	AutoStart    func() bool
	TickInterval time.Duration
	Strategies   *downloader.Set
	Metadata     MetadataSearcher
	Embedder     embed.Embedder
	Covers       downloader.CoverFetcher
	CoverCache   *cache.FileCache
	CoverMaxPx   int
	// Probe checks whether an existing destination is valid audio; defaults
	// to audio.IsValidAudio.
	Probe  func(path string) bool
	Pool   engine.WorkerPool
	Stats  engine.StatsRecorder
	Logger engine.Logger
}

type runningTask struct {
	strategy downloader.Strategy
	run      uint64
}

// Manager schedules downloads under a concurrency ceiling.
type Manager struct {
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	tasks   map[string]*Task
	running map[string]runningTask
	active  int
	seq     uint64

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	loopDone chan struct{}

	units      sync.WaitGroup
	unitCtx    context.Context
	cancelUnit context.CancelFunc
}

// New creates a manager. Call Start to run the promotion loop.
func New(opts Options) *Manager {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = 500 * time.Millisecond
	}
	if opts.Probe == nil {
		opts.Probe = audio.IsValidAudio
	}
	if opts.Strategies == nil {
		opts.Strategies = downloader.NewSet(nil, nil)
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		opts:       opts,
		now:        time.Now,
		tasks:      make(map[string]*Task),
		running:    make(map[string]runningTask),
		wake:       make(chan struct{}, 1),
		stop:       make(chan struct{}),
		loopDone:   make(chan struct{}),
		unitCtx:    ctx,
		cancelUnit: cancel,
	}
}

// Submit queues a track. It returns ErrAlreadyDownloaded without creating a
// task when destPath already holds a valid file.
func (m *Manager) Submit(ref engine.TrackRef, destPath string, autoStart bool, order int) (string, error) {
	if m.alreadyDownloaded(destPath) {
		if m.opts.Logger != nil {
			m.opts.Logger.Info("skipping existing file", "path", destPath)
		}
		return "", ErrAlreadyDownloaded
	}

	m.mu.Lock()
	m.seq++
	task := &Task{
		ID:        uuid.NewString(),
		Track:     ref,
		DestPath:  destPath,
		Status:    StatusPending,
		CreatedAt: m.now(),
		Order:     order,
		AutoStart: autoStart,
		seq:       m.seq,
	}
	m.tasks[task.ID] = task
	m.mu.Unlock()

	if m.opts.Logger != nil {
		m.opts.Logger.Debug("task submitted", "task", task.ID, "artist", ref.Artist, "title", ref.Title, "order", order)
	}
	if autoStart {
		m.promote()
	} else {
		m.signal()
	}
	return task.ID, nil
}

func (m *Manager) alreadyDownloaded(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() < minExistingSize {
		return false
	}
	return m.opts.Probe(path)
}

// Start runs the promotion loop until ctx is done or Stop is called.
func (m *Manager) Start(ctx context.Context) {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	go m.loop(ctx)
}

func (m *Manager) loop(ctx context.Context) {
	defer close(m.loopDone)
	ticker := time.NewTicker(m.opts.TickInterval)
	defer ticker.Stop()

	m.promote()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-ticker.C:
			m.promote()
		case <-m.wake:
			m.promote()
		}
	}
}

// Stop ends the promotion loop. Running tasks are not interrupted.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) stopped() bool {
	select {
	case <-m.stop:
		return true
	default:
		return false
	}
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) autoStartEnabled() bool {
	return m.opts.AutoStart == nil || m.opts.AutoStart()
}

// promote moves pending tasks into the active set while slots are free.
// With auto-start off an idle queue only starts tasks submitted with
// auto-start; once something is active the rest of the queue follows.
func (m *Manager) promote() {
	auto := m.autoStartEnabled()

	m.mu.Lock()
	var batch []*Task
	for m.active < m.opts.MaxConcurrent {
		next := m.nextPendingLocked(auto || m.active > 0)
		if next == nil {
			break
		}
		m.activateLocked(next)
		batch = append(batch, next.clone())
	}
	m.mu.Unlock()

	for _, task := range batch {
		m.dispatch(task)
	}
}

func (m *Manager) nextPendingLocked(anyEligible bool) *Task {
	var next *Task
	for _, t := range m.tasks {
		if t.Status != StatusPending || !(anyEligible || t.AutoStart) {
			continue
		}
		if next == nil || t.before(next) {
			next = t
		}
	}
	return next
}

func (m *Manager) activateLocked(t *Task) {
	started := m.now()
	t.Status = StatusDownloading
	t.StartedAt = &started
	t.CompletedAt = nil
	t.Progress = 0
	t.Error = ""
	t.run++
	m.active++
}

// dispatch hands one execution unit to the worker pool, falling back to a
// plain goroutine when the pool refuses it.
func (m *Manager) dispatch(task *Task) {
	m.units.Add(1)
	unit := func() {
		defer m.units.Done()
		m.execute(task)
	}
	if m.opts.Pool != nil {
		if err := m.opts.Pool.Submit(unit); err == nil {
			return
		} else if m.opts.Logger != nil {
			m.opts.Logger.Warn("worker pool rejected task, running unpooled", "task", task.ID, "error", err)
		}
	}
	go unit()
}

// StartTask starts one pending task now if a slot is free, regardless of
// the auto-start setting. With the ceiling reached the task is marked for
// auto-start and promoted when a slot frees up.
func (m *Manager) StartTask(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if t.Status != StatusPending {
		m.mu.Unlock()
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, t.Status)
	}
	t.AutoStart = true
	if m.active >= m.opts.MaxConcurrent {
		m.mu.Unlock()
		return nil
	}
	m.activateLocked(t)
	task := t.clone()
	m.mu.Unlock()

	m.dispatch(task)
	return nil
}

// Pause marks a downloading task paused and signals its strategy.
func (m *Manager) Pause(id string) error {
	strategy, err := m.transition(id, StatusPaused, func(t *Task) bool { return t.Status == StatusDownloading })
	if err != nil {
		return err
	}
	m.notifyStrategy("pause", id, strategy, downloader.Strategy.Pause)
	return nil
}

// Resume requeues a paused task.
func (m *Manager) Resume(id string) error {
	strategy, err := m.transition(id, StatusPending, nil)
	if err != nil {
		return err
	}
	m.notifyStrategy("resume", id, strategy, downloader.Strategy.Resume)
	m.signal()
	return nil
}

// Cancel marks any unfinished task cancelled and signals its strategy.
func (m *Manager) Cancel(id string) error {
	strategy, err := m.transition(id, StatusCancelled, nil)
	if err != nil {
		return err
	}
	m.notifyStrategy("cancel", id, strategy, downloader.Strategy.Cancel)
	m.signal()
	return nil
}

// Retry resets a finished task to pending.
func (m *Manager) Retry(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	if !t.Status.IsTerminal() {
		m.mu.Unlock()
		return fmt.Errorf("%w: retry from %s", ErrInvalidTransition, t.Status)
	}
	t.Status = StatusPending
	t.Error = ""
	t.Progress = 0
	t.StartedAt = nil
	t.CompletedAt = nil
	t.Strategy = ""
	m.mu.Unlock()

	m.signal()
	return nil
}

// Remove evicts a task, cancelling it first when it has not finished.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return ErrTaskNotFound
	}
	var strategy downloader.Strategy
	if !t.Status.IsTerminal() {
		t.Status = StatusCancelled
		strategy = m.running[id].strategy
	}
	delete(m.tasks, id)
	m.mu.Unlock()

	if strategy != nil {
		m.notifyStrategy("cancel", id, strategy, downloader.Strategy.Cancel)
	}
	return nil
}

// transition applies a state change under the lock. allowed, when set,
// narrows the transition table.
func (m *Manager) transition(id string, to Status, allowed func(*Task) bool) (downloader.Strategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if !CanTransition(t.Status, to) || t.Status.IsTerminal() || (allowed != nil && !allowed(t)) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, t.Status, to)
	}
	t.Status = to
	if to == StatusPending {
		t.Progress = 0
	}
	return m.running[id].strategy, nil
}

func (m *Manager) notifyStrategy(action, id string, strategy downloader.Strategy, call func(downloader.Strategy, string) error) {
	if strategy == nil {
		return
	}
	if err := call(strategy, id); err != nil && !errors.Is(err, downloader.ErrUnsupported) && m.opts.Logger != nil {
		m.opts.Logger.Debug("strategy signal ignored", "action", action, "task", id, "strategy", strategy.Name(), "error", err)
	}
}

// Get returns a copy of one task.
func (m *Manager) Get(id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return t.clone(), nil
}

// ListAll returns copies of every task ordered by status priority then
// creation time, with Position set to the rank within the result.
func (m *Manager) ListAll() []*Task {
	m.mu.Lock()
	list := make([]*Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		list = append(list, t.clone())
	}
	m.mu.Unlock()

	sort.SliceStable(list, func(i, j int) bool {
		pi, pj := listPriority[list[i].Status], listPriority[list[j].Status]
		if pi != pj {
			return pi < pj
		}
		return list[i].before(list[j])
	})
	for i, t := range list {
		t.Position = i + 1
	}
	return list
}

// Progress returns the running strategy's snapshot when it has one and the
// task's own state otherwise.
func (m *Manager) Progress(id string) (downloader.Progress, error) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	if !ok {
		m.mu.Unlock()
		return downloader.Progress{}, ErrTaskNotFound
	}
	fallback := downloader.Progress{TaskID: id, Status: t.Status.String(), Progress: t.Progress}
	strategy := m.running[id].strategy
	status := t.Status
	m.mu.Unlock()

	if strategy != nil && status == StatusDownloading {
		if snap, err := strategy.Progress(id); err == nil {
			return snap, nil
		}
	}
	return fallback, nil
}

// Stats counts tasks by status and adds the lifetime counters.
func (m *Manager) Stats(ctx context.Context) Stats {
	m.mu.Lock()
	statuses := make([]Status, 0, len(m.tasks))
	for _, t := range m.tasks {
		statuses = append(statuses, t.Status)
	}
	m.mu.Unlock()

	counts := lo.CountValues(statuses)
	stats := Stats{
		Total:       len(statuses),
		Pending:     counts[StatusPending],
		Downloading: counts[StatusDownloading],
		Paused:      counts[StatusPaused],
		Processing:  counts[StatusProcessing],
		Completed:   counts[StatusCompleted],
		Failed:      counts[StatusFailed],
		Cancelled:   counts[StatusCancelled],
	}
	if finished := stats.Completed + stats.Failed; finished > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(finished)
	}
	if m.opts.Stats != nil {
		if n, err := m.opts.Stats.Get(ctx, engine.StatCompleted); err == nil {
			stats.LifetimeCompleted = n
		}
		if n, err := m.opts.Stats.Get(ctx, engine.StatFailed); err == nil {
			stats.LifetimeFailed = n
		}
	}
	return stats
}

// ActiveCount returns the number of occupied slots.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Shutdown stops the loop and waits for running execution units until ctx
// is done, after which their contexts are cancelled.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.Stop()
	if m.started.Load() {
		select {
		case <-m.loopDone:
		case <-ctx.Done():
		}
	}

	done := make(chan struct{})
	go func() {
		m.units.Wait()
		close(done)
	}()
	select {
	case <-done:
		m.cancelUnit()
		return nil
	case <-ctx.Done():
		m.cancelUnit()
		return ctx.Err()
	}
}
