// Package downloader contains the fetch strategies: a primary strategy that
// runs yt-dlp in-process and a fallback that hands the whole pipeline to the
// external processor script.
package downloader

import (
	"context"
	"errors"
	"time"

	"github.com/liuran001/TrackFetch-Go/engine"
)

var (
	// ErrNoResults is returned when a search for the track finds nothing.
	ErrNoResults = errors.New("no results found for track")

	// ErrNoDownloader is returned when the strategy set is empty.
	ErrNoDownloader = errors.New("no downloader available")

	// ErrToolMissing is returned when the external fetch tool cannot be started.
	ErrToolMissing = errors.New("fetch tool not found")

	// ErrUnsupported is returned by strategies that do not implement an operation.
	ErrUnsupported = errors.New("operation not supported by this downloader")

	// ErrCancelled is returned when a run was cancelled or superseded before
	// its file reached the destination.
	ErrCancelled = errors.New("fetch cancelled")
	// ErrUnknownTask is returned for ids the strategy has never seen.
	ErrUnknownTask = errors.New("task not tracked by this downloader")
)

// Job is one fetch request.
type Job struct {
	ID       string
	Track    engine.TrackRef
	DestPath string
}

// Result describes the file a strategy produced.
type Result struct {
	Path      string
	Size      int64
	Duration  time.Duration
	SourceURL string
	// Embedded is true when the strategy already wrote the tags itself.
	Embedded bool
}

// Phase names reported in Progress.Status.
const (
	PhaseQueued      = "queued"
	PhaseSearching   = "searching"
	PhaseDownloading = "downloading"
	PhaseValidating  = "validating"
	PhaseMoving      = "moving"
	PhaseEmbedding   = "embedding"
	PhaseCompleted   = "completed"
	PhasePaused      = "paused"
)

// Progress is a snapshot of one running fetch.
type Progress struct {
	TaskID          string
	Status          string
	Progress        float64
	Speed           string
	ETA             time.Duration
	DownloadedBytes int64
	TotalBytes      int64
}

// ProgressFunc receives snapshots while a fetch runs.
type ProgressFunc func(Progress)

// Strategy is one way of fetching a track.
//
// Pause, Resume and Cancel are best-effort and never preempt a running
// subprocess: they record intent and stop further progress reports. Callers
// poll task status rather than assume an immediate stop.
type Strategy interface {
	Name() string
	SupportsFormat(format engine.Format) bool
	Fetch(ctx context.Context, job *Job, progress ProgressFunc) (*Result, error)
	Pause(id string) error
	Resume(id string) error
	Cancel(id string) error
	Progress(id string) (Progress, error)
}

// SelfEmbedding is implemented by strategies whose Fetch also embeds
// metadata, so callers can skip their own metadata lookup.
type SelfEmbedding interface {
	EmbedsMetadata() bool
}
