package manager

import (
	"time"

	"github.com/liuran001/TrackFetch-Go/engine"
)

// Status is the lifecycle state of a task.
type Status int

const (
	StatusPending Status = iota
	StatusDownloading
	StatusPaused
	// StatusProcessing follows a successful fetch while tags are embedded.
	// The task still holds its active slot.
	StatusProcessing
	StatusCompleted
	StatusFailed
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusPending:     "pending",
	StatusDownloading: "downloading",
	StatusPaused:      "paused",
	StatusProcessing:  "processing",
	StatusCompleted:   "completed",
	StatusFailed:      "failed",
	StatusCancelled:   "cancelled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether the task finished, successfully or not.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// IsActive reports whether the task holds an active slot.
func (s Status) IsActive() bool {
	return s == StatusDownloading || s == StatusProcessing
}

// listPriority orders ListAll output.
var listPriority = map[Status]int{
	StatusDownloading: 0,
	StatusPending:     1,
	StatusPaused:      2,
	StatusProcessing:  3,
	StatusCompleted:   4,
	StatusFailed:      5,
	StatusCancelled:   6,
}

var transitions = map[Status][]Status{
	StatusPending:     {StatusDownloading, StatusCancelled},
	StatusDownloading: {StatusProcessing, StatusCompleted, StatusFailed, StatusPaused, StatusCancelled},
	StatusProcessing:  {StatusCompleted, StatusFailed, StatusCancelled},
	StatusPaused:      {StatusPending, StatusCancelled},
	StatusCompleted:   {StatusPending},
	StatusFailed:      {StatusPending},
	StatusCancelled:   {StatusPending},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Task is one queued download. Values handed out by the manager are copies.
type Task struct {
	ID          string
	Track       engine.TrackRef
	DestPath    string
	Status      Status
	Progress    float64
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	// Order is the submitted position. It is embedded as the track number
	// and never rewritten.
	Order int
	// Position is the dense 1-based rank within a ListAll result. It is only
	// set on the returned copies.
	Position int
	// Strategy names the downloader that last ran the task.
	Strategy  string
	AutoStart bool

	seq uint64
	// run increments on every promotion so a stale execution unit can tell
	// that the task was requeued behind its back.
	run uint64
}

func (t *Task) clone() *Task {
	c := *t
	if t.StartedAt != nil {
		started := *t.StartedAt
		c.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		c.CompletedAt = &completed
	}
	return &c
}

// before orders tasks by creation time, submission sequence breaking ties.
func (t *Task) before(other *Task) bool {
	if !t.CreatedAt.Equal(other.CreatedAt) {
		return t.CreatedAt.Before(other.CreatedAt)
	}
	return t.seq < other.seq
}

// Stats summarises the queue.
type Stats struct {
	Total       int
	Pending     int
	Downloading int
	Paused      int
	Processing  int
	Completed   int
	Failed      int
	Cancelled   int
	// SuccessRate is the ratio completed / (completed + failed), zero when
	// nothing has finished.
	SuccessRate float64
	// Lifetime counters survive restarts.
	LifetimeCompleted int64
	LifetimeFailed    int64
}
