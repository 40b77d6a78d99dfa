package downloader

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/liuran001/TrackFetch-Go/engine"
	"github.com/liuran001/TrackFetch-Go/engine/audio"
)

// ErrLikelyAlbum marks a file too large or too long to be a single track.
var ErrLikelyAlbum = errors.New("file is likely a whole album, not a single track")

// ValidationError describes why a fetched file was rejected.
type ValidationError struct {
	Reason   string
	Path     string
	Size     int64
	Duration time.Duration
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrLikelyAlbum, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrLikelyAlbum
}

// Limits are the single-track ceilings.
type Limits struct {
	MaxLossySize    int64
	MaxLosslessSize int64
	MaxDuration     time.Duration
}

// DefaultLimits: 60 MB lossy, 200 MB lossless, 20 minutes.
var DefaultLimits = Limits{
	MaxLossySize:    60 * 1024 * 1024,
	MaxLosslessSize: 200 * 1024 * 1024,
	MaxDuration:     20 * time.Minute,
}

// Validator rejects files that are unlikely to be one track.
type Validator struct {
	limits Limits
	probe  func(path string) (time.Duration, error)
}

// NewValidator creates a validator; zero limits fall back to DefaultLimits.
func NewValidator(limits Limits) *Validator {
	if limits.MaxLossySize <= 0 {
		limits.MaxLossySize = DefaultLimits.MaxLossySize
	}
	if limits.MaxLosslessSize <= 0 {
		limits.MaxLosslessSize = DefaultLimits.MaxLosslessSize
	}
	if limits.MaxDuration <= 0 {
		limits.MaxDuration = DefaultLimits.MaxDuration
	}
	return &Validator{limits: limits, probe: probeDuration}
}

func probeDuration(path string) (time.Duration, error) {
	info, err := audio.Probe(path)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}

// Validate checks size first, then duration. Both are hard failures. A file
// whose duration cannot be probed passes on size alone.
func (v *Validator) Validate(path string, format engine.Format) (int64, time.Duration, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return 0, 0, fmt.Errorf("stat downloaded file: %w", err)
	}
	size := stat.Size()

	limit := v.limits.MaxLossySize
	if format.IsLossless() {
		limit = v.limits.MaxLosslessSize
	}
	if size > limit {
		return size, 0, &ValidationError{
			Reason: fmt.Sprintf("size %s exceeds %s", humanize.Bytes(uint64(size)), humanize.Bytes(uint64(limit))),
			Path:   path,
			Size:   size,
		}
	}

	duration, err := v.probe(path)
	if err != nil {
		return size, 0, nil
	}
	if duration > v.limits.MaxDuration {
		return size, duration, &ValidationError{
			Reason:   fmt.Sprintf("duration %s exceeds %s", duration.Round(time.Second), v.limits.MaxDuration),
			Path:     path,
			Size:     size,
			Duration: duration,
		}
	}
	return size, duration, nil
}
