package search

import (
	"context"
	"crypto/sha256"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/store"
)

const (
	// defaultLimit is used when the caller passes a non-positive k.
	defaultLimit = 8

	// maxLimit caps how many results one query can request.
	maxLimit = 100

	// candidateMultiplier sizes each retriever's candidate pool relative
	// to the requested result count, so fusion sees records that only
	// one retriever ranked highly.
	candidateMultiplier = 2

	// defaultCacheSize is the query cache capacity in entries.
	defaultCacheSize = 128
)

// ErrNilDependency is returned when the engine is constructed without a
// required dependency.
var ErrNilDependency = stderrors.New("nil dependency")

// Engine ranks records for a query by fusing vector similarity from the
// store with keyword relevance from an in-memory lexical index.
//
// The lexical index is synced lazily: each search compares the indexed
// record count against the store and rebuilds on mismatch, so the engine
// converges on the current corpus without explicit wiring to ingestion.
// Ingestion should still call Invalidate after replacing the corpus,
// because a replacement can leave the record count unchanged.
type Engine struct {
	store   store.Store
	lexical *lexicalIndex
	weights Weights

	cacheSize int
	cache     *lru.Cache[[32]byte, []Result]

	// rebuildMu serializes lexical rebuilds; dirty forces one regardless
	// of the record count.
	rebuildMu sync.Mutex
	dirty     bool
}

// EngineOption customizes engine construction.
type EngineOption func(*Engine)

// WithWeights overrides the default fusion weights.
func WithWeights(w Weights) EngineOption {
	return func(e *Engine) { e.weights = w }
}

// WithCacheSize overrides the query cache capacity.
func WithCacheSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.cacheSize = n
		}
	}
}

// NewEngine creates a hybrid search engine over the given store. The
// store is shared with the caller; the engine never closes it.
func NewEngine(st store.Store, opts ...EngineOption) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: store is required", ErrNilDependency)
	}

	e := &Engine{
		store:     st,
		weights:   DefaultWeights(),
		cacheSize: defaultCacheSize,
	}
	for _, opt := range opts {
		opt(e)
	}

	lex, err := newLexicalIndex()
	if err != nil {
		return nil, err
	}
	e.lexical = lex

	cache, err := lru.New[[32]byte, []Result](e.cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	e.cache = cache

	return e, nil
}

// Search returns the top k records for the query, ranked by fused score.
// An empty query or an empty corpus yields no results. A vector search
// failure surfaces as a retrieval error; a keyword failure degrades to
// semantic-only ranking.
func (e *Engine) Search(ctx context.Context, query string, k int) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}
	if k <= 0 {
		k = defaultLimit
	}
	if k > maxLimit {
		k = maxLimit
	}

	count, err := e.store.Count(ctx)
	if err != nil {
		return nil, errors.Retrieval(err)
	}
	if count == 0 {
		return []Result{}, nil
	}

	key := cacheKey(query, k, count)
	if cached, ok := e.cache.Get(key); ok {
		return cloneResults(cached), nil
	}

	if err := e.syncLexical(ctx, count); err != nil {
		return nil, errors.Retrieval(err)
	}

	pool := k * candidateMultiplier

	var (
		semHits []store.Result
		lexHits []scored
		semErr  error
		lexErr  error
	)

	// Each branch records its own error instead of failing the group, so
	// one retriever finishing is never cut short by the other failing.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		semHits, semErr = e.store.SimilaritySearch(gctx, query, pool)
		return nil
	})
	g.Go(func() error {
		lexHits, lexErr = e.lexical.search(gctx, query, pool)
		return nil
	})
	_ = g.Wait()

	if semErr != nil {
		return nil, errors.Retrieval(semErr)
	}
	if lexErr != nil {
		slog.Warn("keyword_search_failed",
			slog.String("query", query),
			slog.String("error", lexErr.Error()))
		lexHits = nil
	}

	semantic := make([]scored, len(semHits))
	records := make(map[string]store.Record, len(semHits))
	for i, hit := range semHits {
		semantic[i] = scored{ID: hit.Record.ID, Score: similarityFromDistance(hit.Distance)}
		records[hit.Record.ID] = hit.Record
	}

	ranked := fuse(semantic, normalizeByMax(lexHits), e.weights)

	results := make([]Result, 0, min(k, len(ranked)))
	for _, f := range ranked {
		if len(results) == k {
			break
		}
		rec, ok := records[f.ID]
		if !ok {
			rec, ok = e.lexical.record(f.ID)
		}
		if !ok {
			// The record vanished between retrieval and enrichment.
			slog.Debug("search_result_record_missing", slog.String("id", f.ID))
			continue
		}
		results = append(results, Result{
			Record:   rec,
			Score:    f.Score,
			Semantic: f.Semantic,
			Lexical:  f.Lexical,
		})
	}

	e.cache.Add(key, cloneResults(results))
	return results, nil
}

// Invalidate drops cached query results and forces a keyword index
// rebuild on the next search.
func (e *Engine) Invalidate() {
	e.rebuildMu.Lock()
	e.dirty = true
	e.rebuildMu.Unlock()
	e.cache.Purge()
}

// Close releases the in-memory keyword index. The underlying store stays
// open; it belongs to the caller.
func (e *Engine) Close() error {
	e.cache.Purge()
	return e.lexical.close()
}

// syncLexical rebuilds the keyword index when its snapshot no longer
// matches the store's record count, or when Invalidate marked it stale.
func (e *Engine) syncLexical(ctx context.Context, count int) error {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()

	if !e.dirty && e.lexical.count() == count {
		return nil
	}

	records, err := e.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load corpus for keyword index: %w", err)
	}
	if err := e.lexical.rebuild(ctx, records); err != nil {
		return fmt.Errorf("rebuild keyword index: %w", err)
	}

	slog.Debug("keyword_index_rebuilt", slog.Int("records", len(records)))
	e.dirty = false
	return nil
}

// cacheKey folds the query, requested size, and corpus generation into a
// fixed-size cache key. Using the record count as the generation means
// cached entries stop matching as soon as the corpus changes size.
func cacheKey(query string, k, generation int) [32]byte {
	return sha256.Sum256(fmt.Appendf(nil, "%d\x00%d\x00%s", k, generation, query))
}

// cloneResults copies the slice so callers and the cache never alias the
// same backing array.
func cloneResults(results []Result) []Result {
	out := make([]Result, len(results))
	copy(out, results)
	return out
}
