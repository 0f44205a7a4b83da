package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/embed"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(t.TempDir(), embed.NewStaticEmbedder())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testRecords() []Record {
	return []Record{
		{
			ID:       "chunk-parse",
			Content:  "func parseConfig loads the yaml configuration file",
			Metadata: map[string]string{"relative_path": "config/parse.go", "language": "go"},
		},
		{
			ID:       "chunk-tree",
			Content:  "binary tree rotation keeps the search tree balanced",
			Metadata: map[string]string{"relative_path": "algo/tree.py", "language": "python"},
		},
		{
			ID:       "chunk-http",
			Content:  "the http server listens on the configured port",
			Metadata: map[string]string{"relative_path": "server/http.go", "language": "go"},
		},
	}
}

// fixedDimEmbedder produces deterministic vectors of a chosen width. Used
// to simulate switching to an embedding model with different dimensions.
type fixedDimEmbedder struct {
	dims int
}

func (f *fixedDimEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, f.dims)
	for i, b := range []byte(text) {
		vec[(i+int(b))%f.dims]++
	}
	return vec, nil
}

func (f *fixedDimEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

func (f *fixedDimEmbedder) Dimensions() int                  { return f.dims }
func (f *fixedDimEmbedder) ModelName() string                { return "fixed" }
func (f *fixedDimEmbedder) Available(_ context.Context) bool { return true }
func (f *fixedDimEmbedder) Close() error                     { return nil }

// ============================================================================
// Add, Count, GetAll
// ============================================================================

func TestLocalStore_AddAndCount(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, testRecords()))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestLocalStore_AddEmptyBatch(t *testing.T) {
	s := newTestLocalStore(t)
	require.NoError(t, s.Add(context.Background(), nil))
}

func TestLocalStore_GetAll_OrderedWithMetadata(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, testRecords()))

	records, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "chunk-http", records[0].ID)
	assert.Equal(t, "chunk-parse", records[1].ID)
	assert.Equal(t, "chunk-tree", records[2].ID)

	assert.Equal(t, "config/parse.go", records[1].Metadata["relative_path"])
	assert.Equal(t, "go", records[1].Metadata["language"])
	assert.Empty(t, records[1].Embedding)
}

func TestLocalStore_Add_UpsertsExistingID(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, []Record{{ID: "x", Content: "first version"}}))
	require.NoError(t, s.Add(ctx, []Record{{ID: "x", Content: "second version"}}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	records, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "second version", records[0].Content)
}

// ============================================================================
// Delete
// ============================================================================

func TestLocalStore_Delete(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, testRecords()))
	require.NoError(t, s.Delete(ctx, []string{"chunk-parse", "chunk-tree", "never-existed"}))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	records, err := s.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "chunk-http", records[0].ID)
}

func TestLocalStore_ReplaceFlow(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, testRecords()))

	existing, err := s.GetAll(ctx)
	require.NoError(t, err)
	ids := make([]string, len(existing))
	for i, r := range existing {
		ids[i] = r.ID
	}
	require.NoError(t, s.Delete(ctx, ids))

	count, err := s.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, count)

	require.NoError(t, s.Add(ctx, []Record{
		{ID: "new-1", Content: "fresh websocket handler upgrades the connection"},
		{ID: "new-2", Content: "fresh database migration applies pending schema changes"},
	}))

	count, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	results, err := s.SimilaritySearch(ctx, "websocket handler", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "new-1", results[0].Record.ID)
	for _, res := range results {
		assert.NotContains(t, []string{"chunk-parse", "chunk-tree", "chunk-http"}, res.Record.ID)
	}
}

// ============================================================================
// Similarity search
// ============================================================================

func TestLocalStore_SimilaritySearch_RanksByRelevance(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, testRecords()))

	results, err := s.SimilaritySearch(ctx, "parseConfig yaml configuration", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "chunk-parse", results[0].Record.ID)
	assert.Equal(t, "func parseConfig loads the yaml configuration file", results[0].Record.Content)
	assert.Equal(t, "config/parse.go", results[0].Record.Metadata["relative_path"])

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Distance, results[i].Distance)
	}
}

func TestLocalStore_SimilaritySearch_EmptyStore(t *testing.T) {
	s := newTestLocalStore(t)

	results, err := s.SimilaritySearch(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLocalStore_SimilaritySearch_BlankQuery(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, testRecords()))

	results, err := s.SimilaritySearch(ctx, "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLocalStore_SimilaritySearch_KExceedsCorpus(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.Add(ctx, testRecords()[:2]))

	results, err := s.SimilaritySearch(ctx, "tree", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

// ============================================================================
// Persistence
// ============================================================================

func TestLocalStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewLocalStore(dir, embed.NewStaticEmbedder())
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, testRecords()))
	require.NoError(t, s.Close())

	reopened, err := NewLocalStore(dir, embed.NewStaticEmbedder())
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	results, err := reopened.SimilaritySearch(ctx, "parseConfig yaml configuration", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "chunk-parse", results[0].Record.ID)
}

func TestLocalStore_EmbedderChangeKeepsRecordsDropsVectors(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewLocalStore(dir, &fixedDimEmbedder{dims: 4})
	require.NoError(t, err)
	require.NoError(t, s.Add(ctx, testRecords()))
	require.NoError(t, s.Close())

	reopened, err := NewLocalStore(dir, &fixedDimEmbedder{dims: 8})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count, "records survive an embedder change")

	results, err := reopened.SimilaritySearch(ctx, "parseConfig", 3)
	require.NoError(t, err)
	assert.Empty(t, results, "stale vectors are discarded until re-ingestion")
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestLocalStore_ClosedRejectsRequests(t *testing.T) {
	s := newTestLocalStore(t)
	ctx := context.Background()

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	err := s.Add(ctx, testRecords())
	assert.ErrorContains(t, err, "closed")

	_, err = s.GetAll(ctx)
	assert.ErrorContains(t, err, "closed")

	_, err = s.SimilaritySearch(ctx, "q", 1)
	assert.ErrorContains(t, err, "closed")

	_, err = s.Count(ctx)
	assert.ErrorContains(t, err, "closed")

	err = s.Delete(ctx, []string{"x"})
	assert.ErrorContains(t, err, "closed")
}
