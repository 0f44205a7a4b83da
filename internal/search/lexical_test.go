package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/store"
)

func newTestLexicalIndex(t *testing.T, records []store.Record) *lexicalIndex {
	t.Helper()

	idx, err := newLexicalIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.close() })

	require.NoError(t, idx.rebuild(context.Background(), records))
	return idx
}

func lexicalCorpus() []store.Record {
	return []store.Record{
		{ID: "rec-config", Content: "parse the yaml configuration file at startup"},
		{ID: "rec-server", Content: "the http server listens on the configured port"},
		{ID: "rec-tree", Content: "binary tree rotation keeps lookups balanced"},
	}
}

func TestLexicalIndex_SearchMatchesKeywords(t *testing.T) {
	idx := newTestLexicalIndex(t, lexicalCorpus())

	hits, err := idx.search(context.Background(), "yaml configuration", 10)
	require.NoError(t, err)

	require.NotEmpty(t, hits)
	assert.Equal(t, "rec-config", hits[0].ID)
	assert.Positive(t, hits[0].Score)

	for i := 1; i < len(hits); i++ {
		assert.LessOrEqual(t, hits[i].Score, hits[i-1].Score)
	}
}

func TestLexicalIndex_CaseInsensitive(t *testing.T) {
	idx := newTestLexicalIndex(t, []store.Record{
		{ID: "rec-mixed", Content: "ParseConfig loads the YAML settings"},
	})

	hits, err := idx.search(context.Background(), "PARSECONFIG", 10)
	require.NoError(t, err)

	require.Len(t, hits, 1)
	assert.Equal(t, "rec-mixed", hits[0].ID)
}

func TestLexicalIndex_SearchHonorsLimit(t *testing.T) {
	idx := newTestLexicalIndex(t, []store.Record{
		{ID: "rec-1", Content: "shared token alpha"},
		{ID: "rec-2", Content: "shared token beta"},
		{ID: "rec-3", Content: "shared token gamma"},
	})

	hits, err := idx.search(context.Background(), "shared token", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestLexicalIndex_BlankQueryAndNoMatches(t *testing.T) {
	idx := newTestLexicalIndex(t, lexicalCorpus())

	hits, err := idx.search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = idx.search(context.Background(), "zebra quasar", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalIndex_RebuildReplacesCorpus(t *testing.T) {
	idx := newTestLexicalIndex(t, lexicalCorpus())
	require.Equal(t, 3, idx.count())

	replacement := []store.Record{
		{ID: "rec-ws", Content: "websocket handler upgrades the connection"},
	}
	require.NoError(t, idx.rebuild(context.Background(), replacement))
	require.Equal(t, 1, idx.count())

	hits, err := idx.search(context.Background(), "websocket handler", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "rec-ws", hits[0].ID)

	// The previous corpus is gone.
	hits, err = idx.search(context.Background(), "yaml configuration", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalIndex_RebuildEmptyCorpus(t *testing.T) {
	idx := newTestLexicalIndex(t, lexicalCorpus())

	require.NoError(t, idx.rebuild(context.Background(), nil))
	assert.Equal(t, 0, idx.count())

	hits, err := idx.search(context.Background(), "yaml", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestLexicalIndex_RecordSnapshot(t *testing.T) {
	idx := newTestLexicalIndex(t, lexicalCorpus())

	rec, ok := idx.record("rec-tree")
	require.True(t, ok)
	assert.Equal(t, "binary tree rotation keeps lookups balanced", rec.Content)

	_, ok = idx.record("rec-missing")
	assert.False(t, ok)
}

func TestLexicalIndex_ClosedRejectsRequests(t *testing.T) {
	idx := newTestLexicalIndex(t, lexicalCorpus())
	require.NoError(t, idx.close())

	_, err := idx.search(context.Background(), "yaml", 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")

	err = idx.rebuild(context.Background(), lexicalCorpus())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "closed")

	// Closing twice is fine.
	require.NoError(t, idx.close())
}
