package chat

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/codescope/codescope/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default generation model.
	DefaultOllamaModel = "llama3"

	ollamaIdleTimeout = 30 * time.Second
)

// ollamaGenerateRequest is the /api/generate request body.
type ollamaGenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// ollamaGenerateChunk is one streamed /api/generate response object.
// Ollama reports mid-stream failures as an error field on a 200 response.
type ollamaGenerateChunk struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// OllamaProvider generates answers through Ollama's /api/generate
// streaming endpoint.
type OllamaProvider struct {
	client *http.Client
	host   string
	model  string
}

var _ Provider = (*OllamaProvider)(nil)

// NewOllamaProvider creates an Ollama generation provider. No probe is
// made; reachability is discovered on the first request.
func NewOllamaProvider(host, model string) *OllamaProvider {
	if host == "" {
		host = DefaultOllamaHost
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	return &OllamaProvider{
		// No client timeout: generation runs until the stream ends or the
		// context is canceled.
		client: &http.Client{Transport: &http.Transport{IdleConnTimeout: ollamaIdleTimeout}},
		host:   host,
		model:  model,
	}
}

// Generate streams the completion for prompt, invoking onDelta per token
// fragment. An unreachable host or a missing model wraps into a
// generation-unavailable error.
func (p *OllamaProvider) Generate(ctx context.Context, prompt string, onDelta func(string) error) error {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if isConnectionError(err) {
			return errors.GenerationUnavailable(err)
		}
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		cause := fmt.Errorf("generate failed with status %d: %s", resp.StatusCode, string(respBody))
		// 404 means the model is not installed, which the user fixes the
		// same way as a stopped server.
		if resp.StatusCode == http.StatusNotFound {
			return errors.GenerationUnavailable(cause)
		}
		return cause
	}

	dec := json.NewDecoder(resp.Body)
	for {
		var chunk ollamaGenerateChunk
		if err := dec.Decode(&chunk); err != nil {
			if stderrors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to decode stream: %w", err)
		}
		if chunk.Error != "" {
			return fmt.Errorf("generation failed: %s", chunk.Error)
		}
		if chunk.Response != "" {
			if err := onDelta(chunk.Response); err != nil {
				return err
			}
		}
		if chunk.Done {
			return nil
		}
	}
}

// ModelName returns the generation model.
func (p *OllamaProvider) ModelName() string {
	return p.model
}

// UnavailableMessage returns the Ollama setup instructions.
func (p *OllamaProvider) UnavailableMessage() string {
	return fmt.Sprintf(`**Error: the generation model is not reachable.**

CodeScope needs a local model running via Ollama:

1. Download Ollama from https://ollama.com
2. Install and start it.
3. Pull the model: `+"`ollama pull %s`"+`
4. Ask again.`, p.model)
}

// isConnectionError reports whether err is a transport-level failure
// (refused, unreachable, DNS) rather than an API-level one.
func isConnectionError(err error) bool {
	var urlErr *url.Error
	return stderrors.As(err, &urlErr)
}
