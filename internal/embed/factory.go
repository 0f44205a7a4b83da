package embed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/codescope/codescope/internal/config"
)

// New creates the embedder selected by cfg, wrapped with the query cache.
// An empty provider auto-detects: Ollama when reachable, otherwise the
// static fallback.
func New(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	var (
		inner Embedder
		err   error
	)

	switch strings.ToLower(cfg.Provider) {
	case "ollama":
		inner, err = newOllama(ctx, cfg)
	case "openai":
		inner, err = newOpenAI(cfg)
	case "static":
		inner = NewStaticEmbedder()
	case "":
		inner = autodetect(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return NewCachedEmbedder(inner, DefaultEmbeddingCacheSize), nil
}

// autodetect prefers Ollama and degrades to static embeddings when it is
// not reachable, so indexing works offline out of the box.
func autodetect(ctx context.Context, cfg config.EmbeddingsConfig) Embedder {
	embedder, err := newOllama(ctx, cfg)
	if err != nil {
		slog.Warn("ollama unreachable, using static embeddings",
			slog.String("error", err.Error()))
		return NewStaticEmbedder()
	}
	return embedder
}

func newOllama(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	ocfg := DefaultOllamaConfig()
	if cfg.OllamaHost != "" {
		ocfg.Host = cfg.OllamaHost
	}
	if cfg.Model != "" {
		ocfg.Model = cfg.Model
	}
	if cfg.Dimensions > 0 {
		ocfg.Dimensions = cfg.Dimensions
	}
	if cfg.BatchSize > 0 {
		ocfg.BatchSize = cfg.BatchSize
	}

	embedder, err := NewOllamaEmbedder(ctx, ocfg)
	if err != nil {
		return nil, fmt.Errorf("ollama unavailable: %w (start it with: ollama serve, or set embeddings.provider to static)", err)
	}
	return embedder, nil
}

func newOpenAI(cfg config.EmbeddingsConfig) (Embedder, error) {
	ocfg := OpenAIConfig{
		APIKey:     os.Getenv("OPENAI_API_KEY"),
		BaseURL:    cfg.OpenAIBaseURL,
		Dimensions: cfg.Dimensions,
		BatchSize:  cfg.BatchSize,
	}
	// The shared model setting defaults to an Ollama model name; only pass
	// it through when it names an OpenAI embedding model.
	if strings.HasPrefix(cfg.Model, "text-embedding") {
		ocfg.Model = cfg.Model
	}

	return NewOpenAIEmbedder(ocfg)
}

// Info describes an embedder for status surfaces.
type Info struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
	Available  bool   `json:"available"`
}

// GetInfo inspects an embedder, unwrapping the cache layer.
func GetInfo(ctx context.Context, embedder Embedder) Info {
	info := Info{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}

	inner := embedder
	if cached, ok := embedder.(*CachedEmbedder); ok {
		inner = cached.Inner()
	}

	switch inner.(type) {
	case *OllamaEmbedder:
		info.Provider = "ollama"
	case *OpenAIEmbedder:
		info.Provider = "openai"
	default:
		info.Provider = "static"
	}

	return info
}
