package ingest

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/codescope/codescope/internal/errors"
)

// lockFileName is created under the data directory to serialize runs.
const lockFileName = "ingest.lock"

// runLock is a cross-process file lock scoped to one data directory.
// Only ingest-vs-ingest exclusion: queries are never blocked.
type runLock struct {
	flock  *flock.Flock
	locked bool
}

func newRunLock(dataDir string) *runLock {
	return &runLock{flock: flock.New(filepath.Join(dataDir, lockFileName))}
}

// acquire takes the lock without blocking. A lock held elsewhere means
// another ingestion run is in flight.
func (l *runLock) acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.flock.Path()), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire ingest lock: %w", err)
	}
	if !acquired {
		return errors.New(errors.ErrCodeIngestLocked,
			"another ingestion run is already in progress", nil)
	}
	l.locked = true
	return nil
}

// release is safe to call on an unheld lock.
func (l *runLock) release() {
	if !l.locked {
		return
	}
	if err := l.flock.Unlock(); err != nil {
		slog.Warn("ingest_lock_release_failed",
			slog.String("path", l.flock.Path()),
			slog.String("error", err.Error()))
	}
	l.locked = false
}
