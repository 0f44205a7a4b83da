package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/codescope/codescope/internal/embed"
)

// File names inside the data directory.
const (
	recordsDBFile = "records.db"
	vectorsFile   = "vectors.hnsw"
)

// LocalStore keeps record text and metadata in SQLite and vectors in a
// coder/hnsw graph, both persisted under the data directory.
type LocalStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	vectors  *hnswIndex
	embedder embed.Embedder
	dir      string
	closed   bool
}

var _ Store = (*LocalStore)(nil)

// validateRecordsDB checks the SQLite file before opening it for real.
// Returns nil when the file is absent (it will be created) or healthy.
func validateRecordsDB(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
	                   WHERE type='table' AND name='records'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("records table missing")
	}
	return nil
}

// NewLocalStore opens (or creates) the local backend under dataDir. The
// embedder determines the vector dimensionality; changing embedders
// invalidates persisted vectors but keeps the records.
func NewLocalStore(dataDir string, embedder embed.Embedder) (*LocalStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dataDir, err)
	}

	dbPath := filepath.Join(dataDir, recordsDBFile)
	if validErr := validateRecordsDB(dbPath); validErr != nil {
		slog.Warn("record_store_corrupted",
			slog.String("path", dbPath),
			slog.String("error", validErr.Error()))
		if removeErr := os.Remove(dbPath); removeErr != nil && !os.IsNotExist(removeErr) {
			return nil, fmt.Errorf("record store corrupted at %s and cannot remove: %w (original error: %v)", dbPath, removeErr, validErr)
		}
		_ = os.Remove(dbPath + "-wal")
		_ = os.Remove(dbPath + "-shm")
		slog.Info("record_store_cleared",
			slog.String("path", dbPath),
			slog.String("reason", "corruption detected, please re-ingest"))
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	// Single writer keeps SQLite lock contention out of the picture.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite ignores journal parameters in the DSN; set the
	// pragmas explicitly.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS records (
		id         TEXT PRIMARY KEY,
		content    TEXT NOT NULL,
		metadata   TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize record schema: %w", err)
	}

	vectors, err := newHNSWIndex(filepath.Join(dataDir, vectorsFile), embedder.Dimensions())
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open vector index: %w", err)
	}

	return &LocalStore{
		db:       db,
		vectors:  vectors,
		embedder: embedder,
		dir:      dataDir,
	}, nil
}

// Add embeds the record contents and persists text, metadata, and vectors.
// Existing IDs are overwritten.
func (s *LocalStore) Add(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	texts := make([]string, len(records))
	for i, r := range records {
		texts[i] = r.Content
	}
	vecs, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed records: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO records(id, content, metadata) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Content, string(meta)); err != nil {
			return fmt.Errorf("insert record %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit records: %w", err)
	}

	for i, r := range records {
		if err := s.vectors.add(r.ID, vecs[i]); err != nil {
			return fmt.Errorf("index vector for %s: %w", r.ID, err)
		}
	}
	if err := s.vectors.save(); err != nil {
		return fmt.Errorf("persist vector index: %w", err)
	}
	return nil
}

// GetAll returns every record ordered by ID, without embeddings.
func (s *LocalStore) GetAll(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, metadata FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var meta string
		if err := rows.Scan(&r.ID, &r.Content, &meta); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Delete removes records by ID. Unknown IDs are ignored.
func (s *LocalStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM records WHERE id IN (%s)",
		strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}

	s.vectors.delete(ids)
	if err := s.vectors.save(); err != nil {
		return fmt.Errorf("persist vector index: %w", err)
	}
	return nil
}

// SimilaritySearch embeds the query and returns up to k records ordered by
// ascending cosine distance.
func (s *LocalStore) SimilaritySearch(ctx context.Context, query string, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	if strings.TrimSpace(query) == "" || k <= 0 {
		return []Result{}, nil
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ids, distances, err := s.vectors.search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(ids) == 0 {
		return []Result{}, nil
	}

	byID, err := s.fetchRecords(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(ids))
	for i, id := range ids {
		rec, ok := byID[id]
		if !ok {
			continue // vector without a row; skip rather than fail the query
		}
		results = append(results, Result{Record: rec, Distance: distances[i]})
	}
	return results, nil
}

// fetchRecords loads the given IDs into a map. Caller holds the lock.
func (s *LocalStore) fetchRecords(ctx context.Context, ids []string) (map[string]Record, error) {
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("SELECT id, content, metadata FROM records WHERE id IN (%s)",
		strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]Record, len(ids))
	for rows.Next() {
		var r Record
		var meta string
		if err := rows.Scan(&r.ID, &r.Content, &meta); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", r.ID, err)
		}
		byID[r.ID] = r
	}
	return byID, rows.Err()
}

// Count returns the number of records.
func (s *LocalStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// Close persists the vector index, checkpoints the WAL, and closes the
// database. Idempotent.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.vectors.save(); err != nil {
		slog.Warn("vector_index_save_failed", slog.String("error", err.Error()))
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// LocalIndexExists reports whether a local index has been created under
// dataDir.
func LocalIndexExists(dataDir string) bool {
	info, err := os.Stat(filepath.Join(dataDir, recordsDBFile))
	return err == nil && !info.IsDir()
}

// CountLocalRecords counts indexed records under dataDir without opening
// the full store. Opening the store loads (and on embedder change,
// resets) the vector index, which read-only inspection must not do.
func CountLocalRecords(dataDir string) (int, error) {
	dbPath := filepath.Join(dataDir, recordsDBFile)
	if _, err := os.Stat(dbPath); err != nil {
		return 0, fmt.Errorf("no local index at %s: %w", dataDir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		return 0, fmt.Errorf("open record store: %w", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}
