package manager

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/cache"
	"github.com/liuran001/TrackFetch-Go/engine/downloader"
	"github.com/liuran001/TrackFetch-Go/engine/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedStrategy blocks every fetch until its gate is closed.
type gatedStrategy struct {
	gate     chan struct{}
	embedded bool
	failOnce atomic.Bool

	inFlight atomic.Int32
	peak     atomic.Int32
	fetches  atomic.Int32

	mu      sync.Mutex
	signals []string
}

func newGatedStrategy() *gatedStrategy {
	return &gatedStrategy{gate: make(chan struct{})}
}

func (s *gatedStrategy) Name() string                       { return "gated" }
func (s *gatedStrategy) SupportsFormat(engine.Format) bool { return true }

func (s *gatedStrategy) Fetch(ctx context.Context, job *downloader.Job, progress downloader.ProgressFunc) (*downloader.Result, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	s.fetches.Add(1)
	if progress != nil {
		progress(downloader.Progress{TaskID: job.ID, Status: downloader.PhaseDownloading, Progress: 150})
	}
	select {
	case <-s.gate:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.failOnce.CompareAndSwap(true, false) {
		return nil, errors.New("fetch tool exited with status 1")
	}
	return &downloader.Result{Path: job.DestPath, Size: 2048, Embedded: s.embedded}, nil
}

func (s *gatedStrategy) signal(action, id string) error {
	s.mu.Lock()
	s.signals = append(s.signals, action+":"+id)
	s.mu.Unlock()
	return nil
}

func (s *gatedStrategy) signalled(want string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, got := range s.signals {
		if got == want {
			return true
		}
	}
	return false
}

func (s *gatedStrategy) Pause(id string) error  { return s.signal("pause", id) }
func (s *gatedStrategy) Resume(id string) error { return s.signal("resume", id) }
func (s *gatedStrategy) Cancel(id string) error { return s.signal("cancel", id) }
func (s *gatedStrategy) Progress(string) (downloader.Progress, error) {
	return downloader.Progress{}, downloader.ErrUnsupported
}

func (s *gatedStrategy) open() { close(s.gate) }

type memoryStats struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (m *memoryStats) Increment(_ context.Context, key string, delta int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int64)
	}
	m.counts[key] += delta
	return nil
}

func (m *memoryStats) Get(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key], nil
}

func newTestManager(t *testing.T, strategy downloader.Strategy, max int, mutate func(*Options)) *Manager {
	t.Helper()
	opts := Options{
		MaxConcurrent: max,
		TickInterval:  10 * time.Millisecond,
		Strategies:    downloader.NewSet(strategy, nil),
		Probe:         func(string) bool { return true },
	}
	if mutate != nil {
		mutate(&opts)
	}
	m := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	t.Cleanup(func() {
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
		defer done()
		_ = m.Shutdown(shutdownCtx)
	})
	return m
}

func countStatus(m *Manager, status Status) int {
	n := 0
	for _, task := range m.ListAll() {
		if task.Status == status {
			n++
		}
	}
	return n
}

func submitN(t *testing.T, m *Manager, n int, autoStart bool) []string {
	t.Helper()
	dir := t.TempDir()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := m.Submit(engine.TrackRef{Artist: "Daft Punk", Title: "Track", Format: engine.FormatMP3}, filepath.Join(dir, "track"+string(rune('a'+i))+".mp3"), autoStart, i+1)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestConcurrencyCeiling(t *testing.T) {
	strategy := newGatedStrategy()
	m := newTestManager(t, strategy, 2, nil)

	submitN(t, m, 5, true)

	require.Eventually(t, func() bool { return strategy.inFlight.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, countStatus(m, StatusDownloading))
	assert.Equal(t, 3, countStatus(m, StatusPending))
	assert.Equal(t, 2, m.ActiveCount())

	strategy.open()
	require.Eventually(t, func() bool { return countStatus(m, StatusCompleted) == 5 }, 2*time.Second, 5*time.Millisecond)
	assert.LessOrEqual(t, strategy.peak.Load(), int32(2))
	require.Eventually(t, func() bool { return m.ActiveCount() == 0 }, time.Second, 5*time.Millisecond)
}

// taskGates blocks each fetch on a gate of its own.
type taskGates struct {
	*gatedStrategy
	mu    sync.Mutex
	gates map[string]chan struct{}
}

func newTaskGates() *taskGates {
	return &taskGates{gatedStrategy: newGatedStrategy(), gates: make(map[string]chan struct{})}
}

func (s *taskGates) gateFor(id string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.gates[id]
	if !ok {
		g = make(chan struct{})
		s.gates[id] = g
	}
	return g
}

func (s *taskGates) Fetch(ctx context.Context, job *downloader.Job, _ downloader.ProgressFunc) (*downloader.Result, error) {
	s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	select {
	case <-s.gateFor(job.ID):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &downloader.Result{Path: job.DestPath, Size: 2048}, nil
}

func (s *taskGates) release(id string) { close(s.gateFor(id)) }

func TestFinishedTasksPromoteExactlyTheFreedSlots(t *testing.T) {
	strategy := newTaskGates()
	m := newTestManager(t, strategy, 2, nil)
	submitN(t, m, 5, true)

	require.Eventually(t, func() bool { return strategy.inFlight.Load() == 2 }, time.Second, 5*time.Millisecond)
	var first []string
	for _, task := range m.ListAll() {
		if task.Status == StatusDownloading {
			first = append(first, task.ID)
		}
	}
	require.Len(t, first, 2)

	for _, id := range first {
		strategy.release(id)
	}
	require.Eventually(t, func() bool {
		return countStatus(m, StatusCompleted) == 2 && countStatus(m, StatusDownloading) == 2
	}, 2*time.Second, 5*time.Millisecond)

	// Give the loop a few more ticks to overshoot if it were going to.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, countStatus(m, StatusDownloading))
	assert.Equal(t, 1, countStatus(m, StatusPending))
	assert.Equal(t, 2, countStatus(m, StatusCompleted))
	assert.Equal(t, 2, m.ActiveCount())
	for _, id := range first {
		task, err := m.Get(id)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, task.Status)
	}

	for _, task := range m.ListAll() {
		if task.Status != StatusCompleted {
			strategy.release(task.ID)
		}
	}
}

func TestProgressIsCappedUntilCompleted(t *testing.T) {
	strategy := newGatedStrategy()
	m := newTestManager(t, strategy, 1, nil)
	ids := submitN(t, m, 1, true)

	require.Eventually(t, func() bool {
		task, err := m.Get(ids[0])
		return err == nil && task.Progress == 99
	}, time.Second, 5*time.Millisecond)

	strategy.open()
	require.Eventually(t, func() bool {
		task, _ := m.Get(ids[0])
		return task.Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)

	task, err := m.Get(ids[0])
	require.NoError(t, err)
	assert.Equal(t, 100.0, task.Progress)
	assert.NotNil(t, task.CompletedAt)
	assert.Equal(t, "gated", task.Strategy)
}

func TestSubmitSkipsExistingFile(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "done.mp3")
	require.NoError(t, os.WriteFile(dest, make([]byte, 4096), 0644))

	m := newTestManager(t, newGatedStrategy(), 2, nil)
	for i := 0; i < 2; i++ {
		id, err := m.Submit(engine.TrackRef{Artist: "A", Title: "B"}, dest, true, 1)
		assert.ErrorIs(t, err, ErrAlreadyDownloaded)
		assert.Empty(t, id)
	}
	assert.Empty(t, m.ListAll())
}

func TestSubmitIgnoresTinyOrInvalidFile(t *testing.T) {
	dir := t.TempDir()
	tiny := filepath.Join(dir, "tiny.mp3")
	require.NoError(t, os.WriteFile(tiny, make([]byte, 10), 0644))
	broken := filepath.Join(dir, "broken.mp3")
	require.NoError(t, os.WriteFile(broken, make([]byte, 4096), 0644))

	m := newTestManager(t, newGatedStrategy(), 2, func(o *Options) {
		o.AutoStart = func() bool { return false }
		o.Probe = func(path string) bool { return path != broken }
	})
	_, err := m.Submit(engine.TrackRef{Title: "x"}, tiny, false, 1)
	assert.NoError(t, err)
	_, err = m.Submit(engine.TrackRef{Title: "y"}, broken, false, 2)
	assert.NoError(t, err)
	assert.Len(t, m.ListAll(), 2)
}

func TestAutoStartOffWaitsForManualStart(t *testing.T) {
	strategy := newGatedStrategy()
	m := newTestManager(t, strategy, 2, func(o *Options) {
		o.AutoStart = func() bool { return false }
	})
	ids := submitN(t, m, 3, false)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, countStatus(m, StatusPending))
	assert.Zero(t, m.ActiveCount())

	require.NoError(t, m.StartTask(ids[2]))
	// the manual start pulls the earliest pending task along
	require.Eventually(t, func() bool { return countStatus(m, StatusDownloading) == 2 }, time.Second, 5*time.Millisecond)
	first, _ := m.Get(ids[0])
	assert.Equal(t, StatusDownloading, first.Status)

	strategy.open()
	require.Eventually(t, func() bool { return countStatus(m, StatusCompleted) == 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestPauseKeepsUserStatus(t *testing.T) {
	strategy := newGatedStrategy()
	m := newTestManager(t, strategy, 1, nil)
	ids := submitN(t, m, 1, true)
	require.Eventually(t, func() bool { return strategy.inFlight.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Pause(ids[0]))
	assert.ErrorIs(t, m.Pause(ids[0]), ErrInvalidTransition)
	strategy.open()
	require.Eventually(t, func() bool { return m.ActiveCount() == 0 }, time.Second, 5*time.Millisecond)

	task, err := m.Get(ids[0])
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, task.Status)
	assert.True(t, strategy.signalled("pause:"+ids[0]))

	require.NoError(t, m.Resume(ids[0]))
	require.Eventually(t, func() bool {
		task, _ := m.Get(ids[0])
		return task.Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 2, strategy.fetches.Load())
}

func TestCancelPendingAndActive(t *testing.T) {
	strategy := newGatedStrategy()
	m := newTestManager(t, strategy, 1, nil)
	ids := submitN(t, m, 2, true)
	require.Eventually(t, func() bool { return strategy.inFlight.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Cancel(ids[1]))
	require.NoError(t, m.Cancel(ids[0]))
	assert.ErrorIs(t, m.Cancel(ids[0]), ErrInvalidTransition)
	assert.ErrorIs(t, m.Cancel("missing"), ErrTaskNotFound)

	strategy.open()
	require.Eventually(t, func() bool { return m.ActiveCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, countStatus(m, StatusCancelled))
	assert.EqualValues(t, 1, strategy.fetches.Load(), "a cancelled pending task is never promoted")
}

func TestFailureThenRetry(t *testing.T) {
	strategy := newGatedStrategy()
	strategy.failOnce.Store(true)
	strategy.open()
	stats := &memoryStats{}
	m := newTestManager(t, strategy, 1, func(o *Options) { o.Stats = stats })
	ids := submitN(t, m, 1, true)

	require.Eventually(t, func() bool {
		task, _ := m.Get(ids[0])
		return task.Status == StatusFailed
	}, time.Second, 5*time.Millisecond)
	task, _ := m.Get(ids[0])
	assert.Contains(t, task.Error, "status 1")
	assert.Less(t, task.Progress, 100.0)

	require.NoError(t, m.Retry(ids[0]))
	require.Eventually(t, func() bool {
		task, _ := m.Get(ids[0])
		return task.Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)
	task, _ = m.Get(ids[0])
	assert.Empty(t, task.Error)

	s := m.Stats(context.Background())
	assert.Equal(t, 1, s.Completed)
	assert.Equal(t, 1.0, s.SuccessRate)
	assert.EqualValues(t, 1, s.LifetimeCompleted)
	assert.EqualValues(t, 1, s.LifetimeFailed)

	assert.ErrorIs(t, m.Retry("missing"), ErrTaskNotFound)
}

func TestSuccessRateIsARatio(t *testing.T) {
	strategy := newGatedStrategy()
	strategy.failOnce.Store(true)
	strategy.open()
	m := newTestManager(t, strategy, 1, nil)
	submitN(t, m, 2, true)

	require.Eventually(t, func() bool {
		return countStatus(m, StatusFailed) == 1 && countStatus(m, StatusCompleted) == 1
	}, time.Second, 5*time.Millisecond)
	s := m.Stats(context.Background())
	assert.InDelta(t, 0.5, s.SuccessRate, 1e-9)
	assert.Equal(t, 2, s.Total)
}

func TestRetryRejectsUnfinishedTask(t *testing.T) {
	m := newTestManager(t, newGatedStrategy(), 1, func(o *Options) { o.AutoStart = func() bool { return false } })
	ids := submitN(t, m, 1, false)
	assert.ErrorIs(t, m.Retry(ids[0]), ErrInvalidTransition)
	assert.ErrorIs(t, m.Resume(ids[0]), ErrInvalidTransition)
}

func TestRemoveEvictsTask(t *testing.T) {
	strategy := newGatedStrategy()
	m := newTestManager(t, strategy, 1, nil)
	ids := submitN(t, m, 1, true)
	require.Eventually(t, func() bool { return strategy.inFlight.Load() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, m.Remove(ids[0]))
	_, err := m.Get(ids[0])
	assert.ErrorIs(t, err, ErrTaskNotFound)
	assert.True(t, strategy.signalled("cancel:"+ids[0]))

	strategy.open()
	require.Eventually(t, func() bool { return m.ActiveCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, m.Remove(ids[0]), ErrTaskNotFound)
}

func TestListAllOrdersByPriorityWithoutMutating(t *testing.T) {
	m := New(Options{MaxConcurrent: 1})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	add := func(id string, status Status, offset int) {
		m.tasks[id] = &Task{ID: id, Status: status, CreatedAt: base.Add(time.Duration(offset) * time.Second), Order: offset}
	}
	add("cancelled", StatusCancelled, 0)
	add("pending-late", StatusPending, 5)
	add("completed", StatusCompleted, 1)
	add("pending-early", StatusPending, 2)
	add("downloading", StatusDownloading, 9)
	add("failed", StatusFailed, 3)
	add("processing", StatusProcessing, 4)
	add("paused", StatusPaused, 6)

	list := m.ListAll()
	var ids []string
	for i, task := range list {
		ids = append(ids, task.ID)
		assert.Equal(t, i+1, task.Position)
	}
	assert.Equal(t, []string{"downloading", "pending-early", "pending-late", "paused", "processing", "completed", "failed", "cancelled"}, ids)
	for _, task := range m.tasks {
		assert.Zero(t, task.Position)
	}
	assert.Equal(t, 5, m.tasks["pending-late"].Order)
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusDownloading, true},
		{StatusPending, StatusCompleted, false},
		{StatusDownloading, StatusPaused, true},
		{StatusDownloading, StatusProcessing, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusPaused, false},
		{StatusPaused, StatusPending, true},
		{StatusPaused, StatusDownloading, false},
		{StatusCompleted, StatusPending, true},
		{StatusCompleted, StatusCancelled, false},
		{StatusFailed, StatusPending, true},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

type recordingEmbedder struct {
	mu       sync.Mutex
	metadata *engine.MetadataRecord
	cover    []byte
	mime     string
	lyrics   string
	checked  engine.Format
}

func (r *recordingEmbedder) EmbedMetadata(_ context.Context, _ string, rec *engine.MetadataRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata = rec
	return nil
}

func (r *recordingEmbedder) EmbedLyrics(_ context.Context, _ string, lyrics string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lyrics = lyrics
	return nil
}

func (r *recordingEmbedder) EmbedCoverArt(_ context.Context, _ string, data []byte, mime string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cover, r.mime = data, mime
	return nil
}

func (r *recordingEmbedder) ReadMetadata(context.Context, string) (*engine.MetadataRecord, error) {
	return nil, errors.New("read_metadata unsupported")
}

func (r *recordingEmbedder) Validate(_ context.Context, _ string, format engine.Format) (*embed.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checked = format
	return &embed.Report{Valid: true}, nil
}

type stubMetadata struct {
	record *engine.MetadataRecord
	lyrics string
}

func (s *stubMetadata) Search(context.Context, string, string, string) (*engine.MetadataRecord, error) {
	return s.record, nil
}

func (s *stubMetadata) SearchLyrics(context.Context, string, string) (string, error) {
	return s.lyrics, nil
}

func TestExecuteEmbedsWithSubmittedOrder(t *testing.T) {
	strategy := newGatedStrategy()
	strategy.open()
	shared := &engine.MetadataRecord{Title: "Digital Love", Artist: "Daft Punk", Album: "Discovery", CoverArtURL: "https://img.example/cover.jpg"}
	embedder := &recordingEmbedder{}
	coverBytes := []byte("\xff\xd8\xff\xe0fake-jpeg")
	var coverFetches atomic.Int32

	coverCache, err := cache.NewFileCache(context.Background(), cache.FileCacheOptions{Dir: t.TempDir(), MaxSize: 1 << 20})
	require.NoError(t, err)

	m := newTestManager(t, strategy, 1, func(o *Options) {
		o.Metadata = &stubMetadata{record: shared, lyrics: "[00:01.00]Digital love"}
		o.Embedder = embedder
		o.CoverCache = coverCache
		o.Covers = func(context.Context, string) ([]byte, error) {
			coverFetches.Add(1)
			return coverBytes, nil
		}
	})

	dest := filepath.Join(t.TempDir(), "Digital Love.flac")
	id, err := m.Submit(engine.TrackRef{Artist: "Daft Punk", Title: "Digital Love", Format: engine.FormatFLAC, Year: 2001}, dest, true, 3)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		task, _ := m.Get(id)
		return task.Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)

	embedder.mu.Lock()
	defer embedder.mu.Unlock()
	require.NotNil(t, embedder.metadata)
	assert.Equal(t, 3, embedder.metadata.TrackNumber)
	assert.Equal(t, 2001, embedder.metadata.Year)
	assert.Equal(t, "Discovery", embedder.metadata.Album)
	assert.Zero(t, shared.TrackNumber, "the looked-up record must not be modified")
	assert.Equal(t, coverBytes, embedder.cover)
	assert.Equal(t, "image/jpeg", embedder.mime)
	assert.Equal(t, "[00:01.00]Digital love", embedder.lyrics)
	assert.Equal(t, engine.FormatFLAC, embedder.checked)

	cached, ok := coverCache.Get("cover:https://img.example/cover.jpg")
	assert.True(t, ok)
	assert.Equal(t, coverBytes, cached)
	assert.EqualValues(t, 1, coverFetches.Load())
}

func TestExecuteFallsBackToHintsWithoutMetadata(t *testing.T) {
	strategy := newGatedStrategy()
	strategy.open()
	embedder := &recordingEmbedder{}
	m := newTestManager(t, strategy, 1, func(o *Options) {
		o.Metadata = &stubMetadata{}
		o.Embedder = embedder
	})

	id, err := m.Submit(engine.TrackRef{Title: "Channel - Daft Punk - Veridis Quo (Official Audio)", Genre: "House"}, filepath.Join(t.TempDir(), "v.mp3"), true, 9)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		task, _ := m.Get(id)
		return task.Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)

	embedder.mu.Lock()
	defer embedder.mu.Unlock()
	require.NotNil(t, embedder.metadata)
	assert.Equal(t, "Daft Punk", embedder.metadata.Artist)
	assert.Equal(t, "Veridis Quo", embedder.metadata.Title)
	assert.Equal(t, "House", embedder.metadata.Genre)
	assert.Equal(t, 9, embedder.metadata.TrackNumber)
}

func TestSelfEmbeddingStrategySkipsEmbedding(t *testing.T) {
	strategy := newGatedStrategy()
	strategy.embedded = true
	strategy.open()
	embedder := &recordingEmbedder{}
	m := newTestManager(t, strategy, 1, func(o *Options) {
		o.Metadata = &stubMetadata{record: &engine.MetadataRecord{Title: "x", Artist: "y"}}
		o.Embedder = embedder
	})
	ids := submitN(t, m, 1, true)
	require.Eventually(t, func() bool {
		task, _ := m.Get(ids[0])
		return task.Status == StatusCompleted
	}, time.Second, 5*time.Millisecond)

	embedder.mu.Lock()
	defer embedder.mu.Unlock()
	assert.Nil(t, embedder.metadata)
}

func TestNoDownloaderFailsTask(t *testing.T) {
	m := New(Options{MaxConcurrent: 1, Probe: func(string) bool { return false }})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	id, err := m.Submit(engine.TrackRef{Title: "x"}, filepath.Join(t.TempDir(), "x.mp3"), true, 1)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		task, _ := m.Get(id)
		return task.Status == StatusFailed
	}, time.Second, 5*time.Millisecond)
	task, _ := m.Get(id)
	assert.Contains(t, task.Error, downloader.ErrNoDownloader.Error())
	require.Eventually(t, func() bool { return m.ActiveCount() == 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, m.Shutdown(context.Background()))
}
