package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/codescope/codescope/internal/embed"
)

// PostgresStore keeps the collection in a single Postgres table with a
// pgvector embedding column. Cosine distance via the <=> operator.
type PostgresStore struct {
	mu       sync.RWMutex
	pool     *pgxpool.Pool
	embedder embed.Embedder
	closed   bool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to dsn, verifies the connection, and ensures
// the schema. The embedding column is sized to the embedder's
// dimensionality at creation; an existing table with different dimensions
// surfaces as insert errors and needs a manual migration.
func NewPostgresStore(ctx context.Context, dsn string, embedder embed.Embedder) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &PostgresStore{pool: pool, embedder: embedder}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("enable pgvector extension: %w", err)
	}

	// Dimensions cannot be parameterized in DDL.
	ddl := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS records (
		id         TEXT PRIMARY KEY,
		content    TEXT NOT NULL,
		metadata   JSONB NOT NULL DEFAULT '{}',
		embedding  vector(%d),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, s.embedder.Dimensions())
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create records table: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `
	CREATE INDEX IF NOT EXISTS records_embedding_idx
	ON records USING hnsw (embedding vector_cosine_ops)`); err != nil {
		return fmt.Errorf("create embedding index: %w", err)
	}
	return nil
}

// Add embeds the record contents and upserts them in one batch round trip.
func (s *PostgresStore) Add(ctx context.Context, records []Record) error {
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

	batch := &pgx.Batch{}
	for i, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", r.ID, err)
		}
		batch.Queue(`
		INSERT INTO records (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding`,
			r.ID, r.Content, meta, pgvector.NewVector(vecs[i]))
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := range records {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert record %s: %w", records[i].ID, err)
		}
	}
	return nil
}

// GetAll returns every record ordered by ID, without embeddings.
func (s *PostgresStore) GetAll(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, content, metadata FROM records ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Delete removes records by ID. Unknown IDs are ignored.
func (s *PostgresStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	if _, err := s.pool.Exec(ctx,
		`DELETE FROM records WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

// SimilaritySearch embeds the query and returns up to k records ordered by
// ascending cosine distance.
func (s *PostgresStore) SimilaritySearch(ctx context.Context, query string, k int) ([]Result, error) {
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

	rows, err := s.pool.Query(ctx, `
	SELECT id, content, metadata, embedding <=> $1 AS distance
	FROM records
	WHERE embedding IS NOT NULL
	ORDER BY embedding <=> $1
	LIMIT $2`, pgvector.NewVector(vec), k)
	if err != nil {
		return nil, fmt.Errorf("similarity query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Record
		var meta []byte
		var distance float64
		if err := rows.Scan(&r.ID, &r.Content, &meta, &distance); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal(meta, &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata for %s: %w", r.ID, err)
		}
		results = append(results, Result{Record: r, Distance: distance})
	}
	if results == nil {
		results = []Result{}
	}
	return results, rows.Err()
}

// Count returns the number of records.
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// Close releases the connection pool. Idempotent.
func (s *PostgresStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.pool.Close()
	return nil
}

func scanRecord(rows pgx.Rows) (Record, error) {
	var r Record
	var meta []byte
	if err := rows.Scan(&r.ID, &r.Content, &meta); err != nil {
		return Record{}, fmt.Errorf("scan record: %w", err)
	}
	if err := json.Unmarshal(meta, &r.Metadata); err != nil {
		return Record{}, fmt.Errorf("unmarshal metadata for %s: %w", r.ID, err)
	}
	return r, nil
}
