// Package ingest runs the full indexing cycle: walk the repository,
// chunk and enrich every loadable file, then replace the store's
// collection with the fresh records.
//
// Progress is a consumable-once stream: Run returns a channel that
// delivers human-readable status updates and closes when the cycle
// finishes. The terminal update carries either the run summary or the
// fatal error. Queries may observe a partially-replaced store while a
// run is in flight; concurrent runs against the same data directory are
// serialized by a file lock.
package ingest

import "time"

// Stage identifies the pipeline phase a progress update belongs to.
type Stage string

const (
	StageScanning   Stage = "scanning"
	StageChunking   Stage = "chunking"
	StageExtracting Stage = "extracting"
	StageReplacing  Stage = "replacing"
	StageDone       Stage = "done"
)

// Progress is one status update from an ingestion run.
type Progress struct {
	Stage Stage

	// Message is the display string for this update.
	Message string

	// Current and Total describe stage completion when known.
	Current int
	Total   int

	// Warn marks a non-fatal problem the run proceeded past.
	Warn bool

	// Summary is set on the terminal update of a successful run.
	Summary *Summary

	// Err is set on the terminal update of a failed run.
	Err error
}

// Summary describes a completed ingestion run.
type Summary struct {
	// RunID tags the run's log events.
	RunID string

	// Files is the number of files that were loaded and chunked.
	Files int

	// Skipped is the number of files that could not be loaded.
	Skipped int

	// Chunks is the number of records written to the index.
	Chunks int

	// Warnings counts non-fatal problems (skipped files excluded).
	Warnings int

	Duration time.Duration
}
