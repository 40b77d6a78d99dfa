package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// MoveError is returned when the destination stayed locked for the whole
// retry budget.
type MoveError struct {
	Attempts int
	Err      error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *MoveError) Unwrap() error {
	return e.Err
}

const (
	moveAttempts  = 10
	moveBaseDelay = 100 * time.Millisecond
	moveMaxDelay  = 2 * time.Second
)

type renameFunc func(src, dst string) error

// MoveWithBackoff renames src to dst, retrying with exponential backoff while
// the filesystem reports lock contention. Any other error is returned at once.
func MoveWithBackoff(ctx context.Context, src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}
	return moveWith(ctx, os.Rename, src, dst, moveAttempts, moveBaseDelay)
}

func moveWith(ctx context.Context, rename renameFunc, src, dst string, attempts int, base time.Duration) error {
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := rename(src, dst)
		if err == nil {
			return nil
		}
		if errors.Is(err, syscall.EXDEV) {
			return copyAndRemove(src, dst)
		}
		if !isContention(err) {
			return err
		}
		lastErr = err

		if attempt == attempts-1 {
			break
		}
		delay := base << attempt
		if delay > moveMaxDelay {
			delay = moveMaxDelay
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return &MoveError{Attempts: attempts, Err: lastErr}
}

func isContention(err error) bool {
	return errors.Is(err, os.ErrPermission) ||
		errors.Is(err, os.ErrExist) ||
		errors.Is(err, syscall.EBUSY) ||
		errors.Is(err, syscall.ETXTBSY)
}

// copyAndRemove handles renames across filesystems.
func copyAndRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Remove(src)
}
