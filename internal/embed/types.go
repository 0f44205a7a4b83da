// Package embed generates vector embeddings for chunk text and queries.
// Three providers are available: Ollama (default), an OpenAI-compatible
// endpoint, and a deterministic hash-based fallback that needs no network.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultBatchSize is the default number of texts per provider call.
	DefaultBatchSize = 32

	// MaxBatchSize caps provider batch sizes to bound request payloads.
	MaxBatchSize = 256

	// DefaultMaxRetries is the default number of attempts for transient
	// provider failures.
	DefaultMaxRetries = 3

	// DefaultWarmTimeout applies when the model served a request recently.
	DefaultWarmTimeout = 60 * time.Second

	// DefaultColdTimeout applies on the first request and after the model
	// has likely been unloaded; cold loads can take tens of seconds.
	DefaultColdTimeout = 120 * time.Second

	// modelUnloadThreshold is how long Ollama keeps an idle model loaded.
	modelUnloadThreshold = 5 * time.Minute
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimensionality.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the provider can serve requests.
	Available(ctx context.Context) bool

	// Close releases provider resources.
	Close() error
}

// normalizeVector scales a vector to unit length. Zero vectors are
// returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
