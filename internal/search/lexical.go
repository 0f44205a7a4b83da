package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/whitespace"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/codescope/codescope/internal/store"
)

// lexicalAnalyzerName identifies the lowercase whitespace analyzer
// applied to both documents and queries.
const lexicalAnalyzerName = "lowercase_whitespace"

// lexicalBatchSize bounds how many documents go into one bleve batch
// during a rebuild.
const lexicalBatchSize = 1000

// lexicalDoc is the document shape handed to bleve.
type lexicalDoc struct {
	Content string `json:"content"`
}

// lexicalIndex is an in-memory keyword index over the current corpus.
// It is rebuilt wholesale when the corpus changes. Alongside the bleve
// index it keeps a record snapshot so keyword-only hits can be returned
// without another store round trip.
type lexicalIndex struct {
	mu      sync.RWMutex
	index   bleve.Index
	records map[string]store.Record
	closed  bool
}

func newLexicalIndex() (*lexicalIndex, error) {
	idx, err := newBleveIndex()
	if err != nil {
		return nil, err
	}
	return &lexicalIndex{
		index:   idx,
		records: make(map[string]store.Record),
	}, nil
}

func newBleveIndex() (bleve.Index, error) {
	m, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("create keyword index: %w", err)
	}
	return idx, nil
}

// buildIndexMapping wires the lowercase whitespace analyzer into the
// default mapping so document content and query terms tokenize the same
// way.
func buildIndexMapping() (mapping.IndexMapping, error) {
	m := bleve.NewIndexMapping()
	err := m.AddCustomAnalyzer(lexicalAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     whitespace.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("register analyzer: %w", err)
	}
	m.DefaultAnalyzer = lexicalAnalyzerName
	return m, nil
}

// rebuild replaces the whole index with the given records. The old index
// is swapped out only once the replacement is fully built, so a failed
// rebuild leaves the previous corpus searchable.
func (l *lexicalIndex) rebuild(ctx context.Context, records []store.Record) error {
	next, err := newBleveIndex()
	if err != nil {
		return err
	}

	batch := next.NewBatch()
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			_ = next.Close()
			return err
		}
		if err := batch.Index(rec.ID, lexicalDoc{Content: rec.Content}); err != nil {
			_ = next.Close()
			return fmt.Errorf("index record %s: %w", rec.ID, err)
		}
		if batch.Size() >= lexicalBatchSize {
			if err := next.Batch(batch); err != nil {
				_ = next.Close()
				return fmt.Errorf("apply keyword batch: %w", err)
			}
			batch = next.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := next.Batch(batch); err != nil {
			_ = next.Close()
			return fmt.Errorf("apply keyword batch: %w", err)
		}
	}

	snapshot := make(map[string]store.Record, len(records))
	for _, rec := range records {
		snapshot[rec.ID] = rec
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		_ = next.Close()
		return fmt.Errorf("keyword index is closed")
	}
	old := l.index
	l.index = next
	l.records = snapshot
	if old != nil {
		_ = old.Close()
	}
	return nil
}

// search returns raw keyword scores for records matching the query, best
// first. Scores are bleve's relevance scores and are not yet normalized.
func (l *lexicalIndex) search(ctx context.Context, query string, limit int) ([]scored, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return nil, fmt.Errorf("keyword index is closed")
	}
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []scored{}, nil
	}

	match := bleve.NewMatchQuery(query)
	match.SetField("content")

	req := bleve.NewSearchRequest(match)
	req.Size = limit

	res, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]scored, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, scored{ID: hit.ID, Score: hit.Score})
	}
	return hits, nil
}

// count reports how many records the index currently holds.
func (l *lexicalIndex) count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// record returns the snapshot record behind a keyword hit.
func (l *lexicalIndex) record(id string) (store.Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	return rec, ok
}

func (l *lexicalIndex) close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	l.records = nil
	if l.index != nil {
		return l.index.Close()
	}
	return nil
}
