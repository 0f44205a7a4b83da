package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/codescope/codescope/internal/scanner"
)

// Watcher watches a directory tree with fsnotify and emits debounced
// batches of relevant events. Directories on the scanner denylist (and
// any Options.IgnoreDirs) are never added to the watch set.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debouncer *Debouncer
	events    chan []FileEvent
	errs      chan error
	stopCh    chan struct{}
	root      string
	opts      Options

	mu      sync.RWMutex
	stopped bool
	dropped atomic.Uint64
}

// New creates a watcher with the given options.
func New(opts Options) (*Watcher, error) {
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsw:       fsw,
		debouncer: NewDebouncer(opts.Debounce),
		events:    make(chan []FileEvent, opts.EventBufferSize),
		errs:      make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
	}, nil
}

// Start watches the given directory recursively until the context is
// canceled or Stop is called. It blocks; run it in a goroutine.
func (w *Watcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	w.root = absPath

	if err := w.addRecursive(absPath); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	go w.forwardBatches(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// handleEvent converts, filters, and debounces one fsnotify event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	relPath, err := filepath.Rel(w.root, event.Name)
	if err != nil {
		relPath = event.Name
	}

	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if w.ignored(relPath) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create != 0:
		op = OpCreate
		// New directories join the watch set so their contents are seen.
		if isDir {
			_ = w.fsw.Add(event.Name)
		}
	case event.Op&fsnotify.Write != 0:
		op = OpModify
	case event.Op&fsnotify.Remove != 0:
		op = OpDelete
	case event.Op&fsnotify.Rename != 0:
		op = OpRename
	default:
		// Chmod and other noise.
		return
	}

	if !w.relevant(relPath, isDir, op) {
		return
	}

	w.debouncer.Add(FileEvent{
		Path:      relPath,
		Operation: op,
		IsDir:     isDir,
		Timestamp: time.Now(),
	})
}

// relevant reports whether an event can change what ingestion would index.
// Directory events count: a renamed or deleted directory moves indexable
// files without emitting per-file events. For files, only indexable
// extensions and .gitignore edits count.
func (w *Watcher) relevant(relPath string, isDir bool, op Operation) bool {
	if isDir {
		return true
	}
	// Deletes cannot be stat'ed, so a removed directory arrives with
	// isDir=false. Treat extensionless deletes as potential directories.
	ext := strings.ToLower(filepath.Ext(relPath))
	if ext == "" && (op == OpDelete || op == OpRename) {
		return true
	}
	if filepath.Base(relPath) == ".gitignore" {
		return true
	}
	return scanner.AllowedExtension(ext)
}

// ignored reports whether any path segment is a denylisted or ignored
// directory name.
func (w *Watcher) ignored(relPath string) bool {
	if relPath == "." || relPath == "" {
		return true
	}
	for _, seg := range strings.Split(filepath.ToSlash(relPath), "/") {
		if scanner.DeniedDir(seg) {
			return true
		}
		for _, ignore := range w.opts.IgnoreDirs {
			if seg == ignore {
				return true
			}
		}
	}
	return false
}

// forwardBatches moves debounced batches to the output channel.
func (w *Watcher) forwardBatches(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case events, ok := <-w.debouncer.Output():
			if !ok {
				return
			}
			if len(events) == 0 {
				continue
			}
			w.emitBatch(events)
		}
	}
}

// addRecursive adds all non-ignored directories under root to the watch set.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}

		relPath, _ := filepath.Rel(root, path)
		if relPath == "." {
			return w.fsw.Add(path)
		}
		if w.ignored(relPath) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

// emitBatch sends a batch without blocking the event loop.
func (w *Watcher) emitBatch(events []FileEvent) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case w.events <- events:
	default:
		count := w.dropped.Add(1)
		slog.Warn("watch_batch_dropped",
			slog.Int("batch_size", len(events)),
			slog.Uint64("total_dropped", count))
	}
}

// emitError sends a non-fatal error without blocking.
func (w *Watcher) emitError(err error) {
	w.mu.RLock()
	stopped := w.stopped
	w.mu.RUnlock()
	if stopped {
		return
	}

	select {
	case w.errs <- err:
	default:
	}
}

// Stop stops the watcher and releases resources. Safe to call multiple
// times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	w.debouncer.Stop()
	_ = w.fsw.Close()

	close(w.events)
	close(w.errs)
	return nil
}

// Events returns the channel of debounced event batches. It is closed
// when the watcher stops.
func (w *Watcher) Events() <-chan []FileEvent {
	return w.events
}

// Errors returns the channel of non-fatal watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errs
}

// DroppedBatches returns how many batches were discarded because the
// events channel was full.
func (w *Watcher) DroppedBatches() uint64 {
	return w.dropped.Load()
}
