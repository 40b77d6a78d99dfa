package downloader

import "sync"

// trackedTask is one run of a task. A task that is paused and resumed while
// its old run is still finishing gets a fresh entry; the old run keeps its
// own pointer and can no longer touch the new one.
type trackedTask struct {
	id        string
	snapshot  Progress
	paused    bool
	cancelled bool
}

// tracker holds the per-task progress snapshots of one strategy.
type tracker struct {
	mu    sync.RWMutex
	tasks map[string]*trackedTask
}

func newTracker() *tracker {
	return &tracker{tasks: make(map[string]*trackedTask)}
}

// start registers a new run of id and returns its entry.
func (t *tracker) start(id string) *trackedTask {
	run := &trackedTask{id: id, snapshot: Progress{TaskID: id, Status: PhaseQueued}}
	t.mu.Lock()
	t.tasks[id] = run
	t.mu.Unlock()
	return run
}

// update stores p on run and reports whether it should be forwarded. Paused
// and cancelled runs keep going but stop reporting, and so do runs that were
// superseded.
func (t *tracker) update(run *trackedTask, p Progress) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tasks[run.id] != run || run.cancelled || run.paused {
		return false
	}
	run.snapshot = p
	return true
}

func (t *tracker) get(id string) (Progress, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	run, ok := t.tasks[id]
	if !ok {
		return Progress{}, ErrUnknownTask
	}
	snap := run.snapshot
	if run.paused {
		snap.Status = PhasePaused
	}
	return snap, nil
}

func (t *tracker) setPaused(id string, paused bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.tasks[id]
	if !ok {
		return ErrUnknownTask
	}
	run.paused = paused
	return nil
}

func (t *tracker) cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	run, ok := t.tasks[id]
	if !ok {
		return ErrUnknownTask
	}
	run.cancelled = true
	return nil
}

// cancelled reports whether run was cancelled or replaced by a newer run.
func (t *tracker) cancelled(run *trackedTask) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return run.cancelled || t.tasks[run.id] != run
}

// finish drops run, leaving a newer run of the same id in place.
func (t *tracker) finish(run *trackedTask) {
	t.mu.Lock()
	if t.tasks[run.id] == run {
		delete(t.tasks, run.id)
	}
	t.mu.Unlock()
}

// report updates the snapshot and forwards it to fn when allowed.
func (t *tracker) report(run *trackedTask, fn ProgressFunc, p Progress) {
	if t.update(run, p) && fn != nil {
		fn(p)
	}
}
