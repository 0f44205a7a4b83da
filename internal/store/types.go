// Package store persists indexed chunks and answers vector similarity
// queries over them.
//
// A Store holds exactly one logical collection describing one repository
// snapshot. Ingestion replaces the whole collection on every run; there is
// no versioning and no multi-repository coexistence.
//
// Two backends implement the same interface:
//   - LocalStore: SQLite (modernc.org/sqlite, WAL) for record text and
//     metadata, coder/hnsw for vectors, persisted under the data directory.
//   - PostgresStore: pgx/v5 + pgvector for shared deployments.
//
// Embedding happens inside the store: Add receives plain text records and
// runs them through the configured embedder before persisting.
package store

import (
	"context"
	"fmt"
)

// Record is one persisted chunk. The ID is content-derived (assigned at
// chunk creation) and stays stable across ingestion runs as long as the
// chunk text does not change.
type Record struct {
	// ID uniquely identifies the record within the collection.
	ID string

	// Content is the chunk text, embedded verbatim.
	Content string

	// Metadata carries the chunk's descriptive fields (source path,
	// language, serialized entities, ...).
	Metadata map[string]string

	// Embedding is computed by the store during Add. Records returned by
	// GetAll leave it empty.
	Embedding []float32
}

// Result pairs a record with its cosine distance to the query. Smaller
// distance means closer.
type Result struct {
	Record   Record
	Distance float64
}

// Store is the index collection interface shared by all backends.
type Store interface {
	// Add embeds and persists records. Existing IDs are overwritten.
	Add(ctx context.Context, records []Record) error

	// GetAll returns every record (ID, content, metadata; no embeddings),
	// ordered by ID.
	GetAll(ctx context.Context) ([]Record, error)

	// Delete removes records by ID. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []string) error

	// SimilaritySearch embeds the query and returns up to k records
	// ordered by ascending distance.
	SimilaritySearch(ctx context.Context, query string, k int) ([]Result, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context) (int, error)

	// Close releases backend resources. Further calls fail.
	Close() error
}

// Backend names accepted by New.
const (
	BackendLocal    = "local"
	BackendPostgres = "postgres"
)

// ErrDimensionMismatch reports a vector whose length does not match the
// index dimensionality.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}
