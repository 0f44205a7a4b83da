package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescope/codescope/internal/errors"
)

// newGenerateServer fakes /api/generate, streaming the given chunks as
// NDJSON and capturing the request body.
func newGenerateServer(t *testing.T, chunks []ollamaGenerateChunk, captured *ollamaGenerateRequest) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))

		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		for _, chunk := range chunks {
			_ = enc.Encode(chunk)
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func collectTokens(t *testing.T, p *OllamaProvider, prompt string) ([]string, error) {
	t.Helper()

	var tokens []string
	err := p.Generate(context.Background(), prompt, func(delta string) error {
		tokens = append(tokens, delta)
		return nil
	})
	return tokens, err
}

func TestOllamaProvider_StreamsTokens(t *testing.T) {
	var captured ollamaGenerateRequest
	server := newGenerateServer(t, []ollamaGenerateChunk{
		{Response: "Hello"},
		{Response: " world"},
		{Done: true},
	}, &captured)

	p := NewOllamaProvider(server.URL, "")
	tokens, err := collectTokens(t, p, "say hello")
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello", " world"}, tokens)
	assert.Equal(t, DefaultOllamaModel, captured.Model)
	assert.Equal(t, "say hello", captured.Prompt)
	assert.True(t, captured.Stream)
}

func TestOllamaProvider_StopsAtDone(t *testing.T) {
	var captured ollamaGenerateRequest
	server := newGenerateServer(t, []ollamaGenerateChunk{
		{Response: "answer"},
		{Done: true},
		{Response: "trailing garbage"},
	}, &captured)

	p := NewOllamaProvider(server.URL, "llama3")
	tokens, err := collectTokens(t, p, "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"answer"}, tokens)
}

func TestOllamaProvider_MidStreamError(t *testing.T) {
	var captured ollamaGenerateRequest
	server := newGenerateServer(t, []ollamaGenerateChunk{
		{Response: "partial"},
		{Error: "out of memory"},
	}, &captured)

	p := NewOllamaProvider(server.URL, "llama3")
	tokens, err := collectTokens(t, p, "q")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "out of memory")
	assert.False(t, errors.CodeIs(err, errors.ErrCodeGenerationUnavailable))
	assert.Equal(t, []string{"partial"}, tokens)
}

func TestOllamaProvider_MissingModelIsUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model 'llama3' not found"}`, http.StatusNotFound)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	p := NewOllamaProvider(server.URL, "llama3")
	_, err := collectTokens(t, p, "q")
	require.Error(t, err)
	assert.True(t, errors.CodeIs(err, errors.ErrCodeGenerationUnavailable))
}

func TestOllamaProvider_ServerErrorIsNotUnavailable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	p := NewOllamaProvider(server.URL, "llama3")
	_, err := collectTokens(t, p, "q")
	require.Error(t, err)

	assert.Contains(t, err.Error(), "status 500")
	assert.False(t, errors.CodeIs(err, errors.ErrCodeGenerationUnavailable))
}

func TestOllamaProvider_UnreachableHost(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	p := NewOllamaProvider(url, "llama3")
	_, err := collectTokens(t, p, "q")
	require.Error(t, err)
	assert.True(t, errors.CodeIs(err, errors.ErrCodeGenerationUnavailable))
}

func TestOllamaProvider_DeltaErrorAborts(t *testing.T) {
	var captured ollamaGenerateRequest
	server := newGenerateServer(t, []ollamaGenerateChunk{
		{Response: "a"},
		{Response: "b"},
		{Done: true},
	}, &captured)

	p := NewOllamaProvider(server.URL, "llama3")
	sinkErr := fmt.Errorf("writer closed")
	err := p.Generate(context.Background(), "q", func(string) error { return sinkErr })
	assert.ErrorIs(t, err, sinkErr)
}

func TestOllamaProvider_Defaults(t *testing.T) {
	p := NewOllamaProvider("", "")

	assert.Equal(t, DefaultOllamaModel, p.ModelName())
	assert.Contains(t, p.UnavailableMessage(), "ollama pull llama3")
	assert.Contains(t, p.UnavailableMessage(), "https://ollama.com")
}
