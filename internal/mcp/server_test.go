package mcp

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/chunk"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/embed"
	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/search"
	"github.com/codescope/codescope/internal/store"
)

type fakeSearcher struct {
	results   []search.Result
	err       error
	lastQuery string
	lastK     int
}

func (f *fakeSearcher) Search(_ context.Context, query string, k int) ([]search.Result, error) {
	f.lastQuery = query
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeAsker struct {
	answer       string
	err          error
	lastQuestion string
}

func (f *fakeAsker) AskString(_ context.Context, question string) (string, error) {
	f.lastQuestion = question
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

// countingStore is a minimal store.Store for status checks.
type countingStore struct {
	count    int
	countErr error
}

func (s *countingStore) Add(context.Context, []store.Record) error        { return nil }
func (s *countingStore) GetAll(context.Context) ([]store.Record, error)   { return nil, nil }
func (s *countingStore) Delete(context.Context, []string) error           { return nil }
func (s *countingStore) Count(context.Context) (int, error)               { return s.count, s.countErr }
func (s *countingStore) Close() error                                     { return nil }
func (s *countingStore) SimilaritySearch(context.Context, string, int) ([]store.Result, error) {
	return nil, nil
}

func newTestMCPServer(t *testing.T, searcher Searcher, asker Asker, st store.Store, embedder embed.Embedder, cfg *config.Config) *Server {
	t.Helper()

	if searcher == nil {
		searcher = &fakeSearcher{}
	}
	if asker == nil {
		asker = &fakeAsker{}
	}
	if st == nil {
		st = &countingStore{}
	}

	s, err := NewServer(searcher, asker, st, embedder, cfg)
	require.NoError(t, err)
	return s
}

func mcpRecord(id, relPath string) store.Record {
	return store.Record{
		ID:      id,
		Content: "func main() {}",
		Metadata: map[string]string{
			chunk.MetaRelPath:  relPath,
			chunk.MetaLanguage: "Go",
		},
	}
}

func TestNewServer_Validation(t *testing.T) {
	searcher := &fakeSearcher{}
	asker := &fakeAsker{}
	st := &countingStore{}

	_, err := NewServer(nil, asker, st, nil, nil)
	assert.ErrorContains(t, err, "searcher")

	_, err = NewServer(searcher, nil, st, nil, nil)
	assert.ErrorContains(t, err, "asker")

	_, err = NewServer(searcher, asker, nil, nil, nil)
	assert.ErrorContains(t, err, "store")

	// Nil config falls back to defaults, nil embedder is tolerated.
	s, err := NewServer(searcher, asker, st, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, s.MCPServer())
}

func TestSearchHandler(t *testing.T) {
	searcher := &fakeSearcher{results: []search.Result{
		{Record: mcpRecord("c1", "internal/auth/login.go"), Score: 0.9, Semantic: 0.8, Lexical: 1.0},
		{Record: mcpRecord("c2", "internal/auth/token.go"), Score: 0.5, Semantic: 0.5, Lexical: 0.0},
	}}
	s := newTestMCPServer(t, searcher, nil, nil, nil, nil)

	_, out, err := s.searchHandler(context.Background(), nil, SearchInput{Query: "auth flow"})
	require.NoError(t, err)

	assert.Equal(t, "auth flow", searcher.lastQuery)
	assert.Equal(t, defaultSearchLimit, searcher.lastK)

	require.Len(t, out.Results, 2)
	assert.Equal(t, "internal/auth/login.go", out.Results[0].Path)
	assert.Equal(t, "Go", out.Results[0].Language)
	assert.InDelta(t, 0.9, out.Results[0].Score, 1e-9)
	assert.InDelta(t, 0.8, out.Results[0].Semantic, 1e-9)
	assert.InDelta(t, 1.0, out.Results[0].Lexical, 1e-9)
	assert.Equal(t, "func main() {}", out.Results[0].Content)
}

func TestSearchHandler_ClampsLimit(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"zero uses default", 0, 10},
		{"negative uses default", -5, 10},
		{"in range passes through", 7, 7},
		{"over max clamps", 500, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{}
			s := newTestMCPServer(t, searcher, nil, nil, nil, nil)

			_, _, err := s.searchHandler(context.Background(), nil, SearchInput{Query: "q", Limit: tt.in})
			require.NoError(t, err)
			assert.Equal(t, tt.want, searcher.lastK)
		})
	}
}

func TestSearchHandler_EmptyQuery(t *testing.T) {
	s := newTestMCPServer(t, nil, nil, nil, nil, nil)

	_, _, err := s.searchHandler(context.Background(), nil, SearchInput{Query: "  \t"})
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestSearchHandler_SearchError(t *testing.T) {
	searcher := &fakeSearcher{err: errors.Retrieval(fmt.Errorf("index gone"))}
	s := newTestMCPServer(t, searcher, nil, nil, nil, nil)

	_, _, err := s.searchHandler(context.Background(), nil, SearchInput{Query: "q"})
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInternalError, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "retrieval failed")
}

func TestAskHandler(t *testing.T) {
	asker := &fakeAsker{answer: "**Sources:**\n- `a.go`\n\nIt parses config."}
	s := newTestMCPServer(t, nil, asker, nil, nil, nil)

	_, out, err := s.askHandler(context.Background(), nil, AskInput{Question: "  what does a.go do? "})
	require.NoError(t, err)
	assert.Equal(t, asker.answer, out.Answer)
	assert.Equal(t, "what does a.go do?", asker.lastQuestion)
}

func TestAskHandler_EmptyQuestion(t *testing.T) {
	s := newTestMCPServer(t, nil, nil, nil, nil, nil)

	_, _, err := s.askHandler(context.Background(), nil, AskInput{})
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeInvalidParams, mcpErr.Code)
}

func TestAskHandler_GenerationDown(t *testing.T) {
	asker := &fakeAsker{err: errors.GenerationUnavailable(fmt.Errorf("connection refused"))}
	s := newTestMCPServer(t, nil, asker, nil, nil, nil)

	_, _, err := s.askHandler(context.Background(), nil, AskInput{Question: "anything"})
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, ErrCodeGenerationUnavailable, mcpErr.Code)
	assert.Contains(t, mcpErr.Message, "generation backend unavailable")
	assert.Contains(t, mcpErr.Message, "ollama serve", "the suggestion should reach the client")
}

func TestIndexStatusHandler(t *testing.T) {
	t.Run("local backend with static embedder", func(t *testing.T) {
		st := &countingStore{count: 42}
		s := newTestMCPServer(t, nil, nil, st, embed.NewStaticEmbedder(), nil)

		_, out, err := s.indexStatusHandler(context.Background(), nil, IndexStatusInput{})
		require.NoError(t, err)

		assert.Equal(t, 42, out.Records)
		assert.Equal(t, "local", out.Backend)
		assert.Equal(t, "static", out.Embeddings.Provider)
		assert.True(t, out.Embeddings.Available)
	})

	t.Run("configured backend is normalized", func(t *testing.T) {
		cfg := config.NewConfig()
		cfg.Store.Backend = "POSTGRES"
		s := newTestMCPServer(t, nil, nil, nil, nil, cfg)

		_, out, err := s.indexStatusHandler(context.Background(), nil, IndexStatusInput{})
		require.NoError(t, err)
		assert.Equal(t, "postgres", out.Backend)
	})

	t.Run("missing embedder reports none", func(t *testing.T) {
		s := newTestMCPServer(t, nil, nil, nil, nil, nil)

		_, out, err := s.indexStatusHandler(context.Background(), nil, IndexStatusInput{})
		require.NoError(t, err)
		assert.Equal(t, "none", out.Embeddings.Provider)
	})

	t.Run("count failure maps to an MCP error", func(t *testing.T) {
		st := &countingStore{countErr: fmt.Errorf("db closed")}
		s := newTestMCPServer(t, nil, nil, st, nil, nil)

		_, _, err := s.indexStatusHandler(context.Background(), nil, IndexStatusInput{})
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrCodeInternalError, mcpErr.Code)
	})
}
