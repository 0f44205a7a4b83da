package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codescope/codescope/internal/chunk"
	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/store"
)

// defaultContextChunks is how many retrieved chunks feed the prompt.
const defaultContextChunks = 5

const (
	emptyCorpusReply = "The index is empty. Run `codescope ingest <path>` to index a repository, then ask again."

	noResultsReply = "I couldn't find anything in the indexed code relevant to that question. " +
		"Try rephrasing it, or re-ingest the repository if it changed."
)

const promptTemplate = `You are an intelligent coding assistant named CodeScope.
Use the following pieces of context from the codebase to answer the user's question.
If the context doesn't contain the answer, say so; you may still help from general knowledge, clearly marked as such.
Always structure your answer with Markdown (code blocks, bold text, lists).

Context:
%s

Question:
%s

Answer:
`

// Service wires retrieval and generation into a question-answering flow.
type Service struct {
	retriever Retriever
	store     store.Store
	provider  Provider
	chunks    int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithContextChunks sets how many retrieved chunks feed the prompt.
func WithContextChunks(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.chunks = n
		}
	}
}

// NewService creates a chat service over the given retriever, store, and
// generation provider.
func NewService(retriever Retriever, st store.Store, provider Provider, opts ...ServiceOption) (*Service, error) {
	if retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}

	s := &Service{
		retriever: retriever,
		store:     st,
		provider:  provider,
		chunks:    defaultContextChunks,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ask answers a question about the indexed codebase, streaming the reply
// through onDelta: first a citations preamble naming the source files of
// the retrieved context, then the model's answer tokens. An empty corpus
// and a question with no relevant matches each produce a distinct
// friendly reply without calling the model; an unreachable model streams
// its setup instructions instead of a raw error.
func (s *Service) Ask(ctx context.Context, question string, onDelta func(string) error) error {
	question = strings.TrimSpace(question)
	if question == "" {
		return fmt.Errorf("question is empty")
	}

	if count, err := s.store.Count(ctx); err == nil && count == 0 {
		return onDelta(emptyCorpusReply)
	}

	results, err := s.retrieve(ctx, question)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		return onDelta(noResultsReply)
	}

	if err := onDelta(citationsPreamble(results)); err != nil {
		return err
	}

	prompt := buildPrompt(question, results)
	if err := s.provider.Generate(ctx, prompt, onDelta); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.CodeIs(err, errors.ErrCodeGenerationUnavailable) {
			slog.Warn("chat_generation_unavailable",
				slog.String("model", s.provider.ModelName()),
				slog.String("error", err.Error()))
			return onDelta("\n" + s.provider.UnavailableMessage())
		}
		slog.Warn("chat_generation_failed", slog.String("error", err.Error()))
		return onDelta(fmt.Sprintf("\n**An error occurred:** %v", err))
	}
	return nil
}

// AskString collects the full streamed reply into one string. Intended
// for callers without incremental delivery, such as MCP tools.
func (s *Service) AskString(ctx context.Context, question string) (string, error) {
	var b strings.Builder
	err := s.Ask(ctx, question, func(delta string) error {
		b.WriteString(delta)
		return nil
	})
	return b.String(), err
}

// retrieve runs the hybrid ranker and falls back to plain similarity
// search when it fails. Both failing surfaces a retrieval error.
func (s *Service) retrieve(ctx context.Context, question string) ([]store.Record, error) {
	results, err := s.retriever.Search(ctx, question, s.chunks)
	if err == nil {
		records := make([]store.Record, len(results))
		for i, res := range results {
			records[i] = res.Record
		}
		return records, nil
	}

	slog.Warn("chat_retrieval_degraded", slog.String("error", err.Error()))

	hits, simErr := s.store.SimilaritySearch(ctx, question, s.chunks)
	if simErr != nil {
		return nil, errors.Retrieval(simErr)
	}
	records := make([]store.Record, len(hits))
	for i, hit := range hits {
		records[i] = hit.Record
	}
	return records, nil
}

// citationsPreamble lists the source file paths of the retrieved chunks,
// deduplicated, in retrieval order.
func citationsPreamble(records []store.Record) string {
	var b strings.Builder
	b.WriteString("**Sources:**\n")

	seen := make(map[string]bool)
	for _, rec := range records {
		path := citationPath(rec)
		if seen[path] {
			continue
		}
		seen[path] = true
		fmt.Fprintf(&b, "- `%s`\n", path)
	}
	b.WriteString("\n")
	return b.String()
}

// citationPath picks the repo-relative path for a record, falling back
// to the absolute source path, then the record ID.
func citationPath(rec store.Record) string {
	if p := rec.Metadata[chunk.MetaRelPath]; p != "" {
		return p
	}
	if p := rec.Metadata[chunk.MetaSource]; p != "" {
		return p
	}
	return rec.ID
}

// buildPrompt assembles the generation prompt from the question and the
// retrieved context, each chunk prefixed with its source path.
func buildPrompt(question string, records []store.Record) string {
	pieces := make([]string, len(records))
	for i, rec := range records {
		pieces[i] = fmt.Sprintf("File: %s\n%s", citationPath(rec), rec.Content)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(pieces, "\n\n"), question)
}
