// Package watcher observes a repository for file changes and emits
// debounced event batches. Watch mode consumes one batch as one signal to
// re-ingest the whole repository; the batch contents exist for logging,
// not for delta indexing.
package watcher

import "time"

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted.
	OpDelete
	// OpRename indicates a file or directory was renamed.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a single observed change.
type FileEvent struct {
	// Path is relative to the watched root.
	Path string

	// Operation is the type of file system operation.
	Operation Operation

	// IsDir indicates if the event is for a directory.
	IsDir bool

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Options configures the watcher.
type Options struct {
	// Debounce is the time to wait before emitting a coalesced batch.
	// Default: 500ms.
	Debounce time.Duration

	// EventBufferSize is the capacity of the batch channel. Default: 64.
	EventBufferSize int

	// IgnoreDirs are directory names to skip in addition to the scanner
	// denylist. The store data directory belongs here so index writes do
	// not retrigger ingestion.
	IgnoreDirs []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		Debounce:        500 * time.Millisecond,
		EventBufferSize: 64,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.Debounce == 0 {
		o.Debounce = defaults.Debounce
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}
