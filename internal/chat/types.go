// Package chat answers natural-language questions against the indexed
// codebase. An answer streams in two parts: a citations preamble naming
// the source files behind the retrieved context, then the model's answer
// tokens as they arrive. A missing model never surfaces as a raw error;
// the stream carries a friendly reply instead.
package chat

import (
	"context"

	"github.com/codescope/codescope/internal/search"
)

// Provider generates answer text for an assembled prompt.
type Provider interface {
	// Generate streams the model's answer, invoking onDelta for every
	// text fragment as it arrives. A non-nil error from onDelta aborts
	// the stream and is returned unchanged.
	Generate(ctx context.Context, prompt string, onDelta func(string) error) error

	// ModelName returns the generation model identifier.
	ModelName() string

	// UnavailableMessage is streamed in place of the answer when the
	// backend cannot be reached. It carries setup instructions.
	UnavailableMessage() string
}

// Retriever supplies ranked context chunks for a question. *search.Engine
// satisfies it.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]search.Result, error)
}
