package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/chunk"
	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/search"
	"github.com/codescope/codescope/internal/store"
)

type fakeRetriever struct {
	results []search.Result
	err     error
	calls   int
	lastK   int
}

func (r *fakeRetriever) Search(ctx context.Context, query string, k int) ([]search.Result, error) {
	r.calls++
	r.lastK = k
	if r.err != nil {
		return nil, r.err
	}
	return r.results, nil
}

type fakeProvider struct {
	tokens      []string
	generateErr error
	prompts     []string
}

func (p *fakeProvider) Generate(ctx context.Context, prompt string, onDelta func(string) error) error {
	p.prompts = append(p.prompts, prompt)
	if p.generateErr != nil {
		return p.generateErr
	}
	for _, tok := range p.tokens {
		if err := onDelta(tok); err != nil {
			return err
		}
	}
	return nil
}

func (p *fakeProvider) ModelName() string { return "fake-model" }

func (p *fakeProvider) UnavailableMessage() string { return "model is down, start it" }

// chatStore stubs the store calls the service makes: Count for the
// empty-corpus check and SimilaritySearch for the retrieval fallback.
type chatStore struct {
	count    int
	countErr error
	hits     []store.Result
	simErr   error
	simCalls int
}

var _ store.Store = (*chatStore)(nil)

func (s *chatStore) Add(ctx context.Context, records []store.Record) error { return nil }

func (s *chatStore) GetAll(ctx context.Context) ([]store.Record, error) { return nil, nil }

func (s *chatStore) Delete(ctx context.Context, ids []string) error { return nil }

func (s *chatStore) SimilaritySearch(ctx context.Context, query string, k int) ([]store.Result, error) {
	s.simCalls++
	if s.simErr != nil {
		return nil, s.simErr
	}
	return s.hits, nil
}

func (s *chatStore) Count(ctx context.Context) (int, error) { return s.count, s.countErr }

func (s *chatStore) Close() error { return nil }

func chatRecord(id, relPath, content string) store.Record {
	return store.Record{
		ID:      id,
		Content: content,
		Metadata: map[string]string{
			chunk.MetaRelPath: relPath,
		},
	}
}

func rankedResults(records ...store.Record) []search.Result {
	results := make([]search.Result, len(records))
	for i, rec := range records {
		results[i] = search.Result{Record: rec}
	}
	return results
}

// collect runs Ask and gathers every streamed delta.
func collect(t *testing.T, s *Service, question string) ([]string, error) {
	t.Helper()

	var deltas []string
	err := s.Ask(context.Background(), question, func(delta string) error {
		deltas = append(deltas, delta)
		return nil
	})
	return deltas, err
}

func TestNewService_Validation(t *testing.T) {
	retriever := &fakeRetriever{}
	st := &chatStore{}
	provider := &fakeProvider{}

	_, err := NewService(nil, st, provider)
	assert.ErrorContains(t, err, "retriever")

	_, err = NewService(retriever, nil, provider)
	assert.ErrorContains(t, err, "store")

	_, err = NewService(retriever, st, nil)
	assert.ErrorContains(t, err, "provider")
}

func TestAsk_EmptyQuestion(t *testing.T) {
	s, err := NewService(&fakeRetriever{}, &chatStore{count: 1}, &fakeProvider{})
	require.NoError(t, err)

	_, askErr := collect(t, s, "   ")
	assert.ErrorContains(t, askErr, "question is empty")
}

func TestAsk_EmptyCorpus(t *testing.T) {
	retriever := &fakeRetriever{}
	provider := &fakeProvider{tokens: []string{"never"}}
	s, err := NewService(retriever, &chatStore{count: 0}, provider)
	require.NoError(t, err)

	deltas, askErr := collect(t, s, "where is the config loaded?")
	require.NoError(t, askErr)

	require.Len(t, deltas, 1)
	assert.Contains(t, deltas[0], "index is empty")
	assert.Contains(t, deltas[0], "codescope ingest")
	assert.Zero(t, retriever.calls)
	assert.Empty(t, provider.prompts)
}

func TestAsk_NoRelevantResults(t *testing.T) {
	provider := &fakeProvider{tokens: []string{"never"}}
	s, err := NewService(&fakeRetriever{}, &chatStore{count: 10}, provider)
	require.NoError(t, err)

	deltas, askErr := collect(t, s, "quantum flux capacitors")
	require.NoError(t, askErr)

	require.Len(t, deltas, 1)
	assert.Contains(t, deltas[0], "couldn't find anything")
	assert.NotContains(t, deltas[0], "index is empty")
	assert.Empty(t, provider.prompts)
}

func TestAsk_StreamsCitationsThenAnswer(t *testing.T) {
	retriever := &fakeRetriever{results: rankedResults(
		chatRecord("c1", "internal/config/config.go", "func Load(dir string)"),
		chatRecord("c2", "internal/config/config.go", "func (c *Config) Validate()"),
		chatRecord("c3", "cmd/root.go", "cfg, err := config.Load(dir)"),
	)}
	provider := &fakeProvider{tokens: []string{"The config ", "is loaded in Load."}}
	s, err := NewService(retriever, &chatStore{count: 10}, provider)
	require.NoError(t, err)

	deltas, askErr := collect(t, s, "where is the config loaded?")
	require.NoError(t, askErr)

	// Citations arrive first, deduplicated by path, retrieval order kept.
	require.GreaterOrEqual(t, len(deltas), 3)
	assert.Equal(t, "**Sources:**\n- `internal/config/config.go`\n- `cmd/root.go`\n\n", deltas[0])
	assert.Equal(t, "The config ", deltas[1])
	assert.Equal(t, "is loaded in Load.", deltas[2])

	require.Len(t, provider.prompts, 1)
	prompt := provider.prompts[0]
	assert.Contains(t, prompt, "func Load(dir string)")
	assert.Contains(t, prompt, "File: cmd/root.go")
	assert.Contains(t, prompt, "where is the config loaded?")
	assert.Equal(t, defaultContextChunks, retriever.lastK)
}

func TestAsk_CitationFallsBackToSourceThenID(t *testing.T) {
	abs := store.Record{
		ID:       "c1",
		Content:  "x",
		Metadata: map[string]string{chunk.MetaSource: "/repo/app/main.py"},
	}
	bare := store.Record{ID: "c2", Content: "y"}

	retriever := &fakeRetriever{results: rankedResults(abs, bare)}
	s, err := NewService(retriever, &chatStore{count: 2}, &fakeProvider{})
	require.NoError(t, err)

	deltas, askErr := collect(t, s, "what does main do?")
	require.NoError(t, askErr)
	assert.Contains(t, deltas[0], "`/repo/app/main.py`")
	assert.Contains(t, deltas[0], "`c2`")
}

func TestAsk_WithContextChunks(t *testing.T) {
	retriever := &fakeRetriever{results: rankedResults(chatRecord("c1", "a.go", "x"))}
	s, err := NewService(retriever, &chatStore{count: 5}, &fakeProvider{}, WithContextChunks(3))
	require.NoError(t, err)

	_, askErr := collect(t, s, "anything")
	require.NoError(t, askErr)
	assert.Equal(t, 3, retriever.lastK)
}

func TestAsk_FallsBackToSimilaritySearch(t *testing.T) {
	retriever := &fakeRetriever{err: errors.Retrieval(fmt.Errorf("index corrupt"))}
	st := &chatStore{
		count: 4,
		hits: []store.Result{
			{Record: chatRecord("c9", "pkg/walk/walk.go", "func Walk()")},
		},
	}
	provider := &fakeProvider{tokens: []string{"Walk walks."}}
	s, err := NewService(retriever, st, provider)
	require.NoError(t, err)

	deltas, askErr := collect(t, s, "how does the walker work?")
	require.NoError(t, askErr)

	assert.Equal(t, 1, st.simCalls)
	assert.Contains(t, deltas[0], "`pkg/walk/walk.go`")
	assert.Equal(t, "Walk walks.", deltas[len(deltas)-1])
}

func TestAsk_RetrievalAndFallbackBothFail(t *testing.T) {
	retriever := &fakeRetriever{err: fmt.Errorf("engine down")}
	st := &chatStore{count: 4, simErr: fmt.Errorf("store down")}
	s, err := NewService(retriever, st, &fakeProvider{})
	require.NoError(t, err)

	_, askErr := collect(t, s, "anything")
	require.Error(t, askErr)
	assert.True(t, errors.CodeIs(askErr, errors.ErrCodeRetrieval))
}

func TestAsk_CountFailureStillRetrieves(t *testing.T) {
	retriever := &fakeRetriever{results: rankedResults(chatRecord("c1", "a.go", "x"))}
	s, err := NewService(retriever, &chatStore{countErr: fmt.Errorf("locked")}, &fakeProvider{tokens: []string{"ok"}})
	require.NoError(t, err)

	deltas, askErr := collect(t, s, "anything")
	require.NoError(t, askErr)
	assert.Equal(t, 1, retriever.calls)
	assert.Equal(t, "ok", deltas[len(deltas)-1])
}

func TestAsk_GenerationUnavailableStreamsInstructions(t *testing.T) {
	retriever := &fakeRetriever{results: rankedResults(chatRecord("c1", "a.go", "x"))}
	provider := &fakeProvider{generateErr: errors.GenerationUnavailable(fmt.Errorf("connection refused"))}
	s, err := NewService(retriever, &chatStore{count: 1}, provider)
	require.NoError(t, err)

	deltas, askErr := collect(t, s, "anything")
	require.NoError(t, askErr)

	last := deltas[len(deltas)-1]
	assert.Contains(t, last, "model is down, start it")
	assert.NotContains(t, last, "connection refused")
}

func TestAsk_GenerationFailureStaysFriendly(t *testing.T) {
	retriever := &fakeRetriever{results: rankedResults(chatRecord("c1", "a.go", "x"))}
	provider := &fakeProvider{generateErr: fmt.Errorf("model exploded")}
	s, err := NewService(retriever, &chatStore{count: 1}, provider)
	require.NoError(t, err)

	deltas, askErr := collect(t, s, "anything")
	require.NoError(t, askErr)
	assert.Contains(t, deltas[len(deltas)-1], "**An error occurred:**")
}

func TestAsk_CanceledContextSurfaces(t *testing.T) {
	retriever := &fakeRetriever{results: rankedResults(chatRecord("c1", "a.go", "x"))}
	provider := &fakeProvider{generateErr: context.Canceled}
	s, err := NewService(retriever, &chatStore{count: 1}, provider)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	askErr := s.Ask(ctx, "anything", func(string) error { return nil })
	assert.ErrorIs(t, askErr, context.Canceled)
}

func TestAsk_DeltaErrorAborts(t *testing.T) {
	retriever := &fakeRetriever{results: rankedResults(chatRecord("c1", "a.go", "x"))}
	provider := &fakeProvider{tokens: []string{"never"}}
	s, err := NewService(retriever, &chatStore{count: 1}, provider)
	require.NoError(t, err)

	sinkErr := fmt.Errorf("client went away")
	askErr := s.Ask(context.Background(), "anything", func(string) error { return sinkErr })
	assert.ErrorIs(t, askErr, sinkErr)
	assert.Empty(t, provider.prompts)
}

func TestAskString(t *testing.T) {
	retriever := &fakeRetriever{results: rankedResults(chatRecord("c1", "a.go", "x"))}
	provider := &fakeProvider{tokens: []string{"Hello", " world"}}
	s, err := NewService(retriever, &chatStore{count: 1}, provider)
	require.NoError(t, err)

	out, askErr := s.AskString(context.Background(), "anything")
	require.NoError(t, askErr)
	assert.True(t, strings.HasPrefix(out, "**Sources:**"))
	assert.True(t, strings.HasSuffix(out, "Hello world"))
}
