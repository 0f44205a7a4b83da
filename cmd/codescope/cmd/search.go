package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/chunk"
	"github.com/codescope/codescope/internal/output"
	"github.com/codescope/codescope/internal/search"
	"github.com/codescope/codescope/internal/store"
)

type searchOptions struct {
	limit   int
	format  string
	explain bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed codebase",
		Long: `Search the indexed codebase with hybrid retrieval.

Vector similarity and keyword relevance are fused into a single ranking
(weighted 70/30 by default), so results match by meaning as well as by
exact identifiers.

Examples:
  codescope search "authentication middleware"
  codescope search "retry backoff" -k 5
  codescope search "hybrid fusion" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "k", 0, "Maximum number of results (0 = config default)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.explain, "explain", false, "Show fusion weights and per-result score components")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	cleanup := setupCLILogging()
	defer cleanup()

	cfg, root, err := loadProjectConfig(".")
	if err != nil {
		return err
	}
	if !strings.EqualFold(cfg.Store.Backend, store.BackendPostgres) &&
		!store.LocalIndexExists(cfg.Store.DataDir) {
		return fmt.Errorf("no index found in %s\nRun 'codescope ingest' first", root)
	}

	slog.Info("search_started",
		slog.String("query", query),
		slog.Int("limit", opts.limit))

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	st, err := store.New(ctx, cfg.Store, embedder)
	if err != nil {
		return fmt.Errorf("open index store: %w", err)
	}
	defer func() { _ = st.Close() }()

	weights := search.Weights{
		Semantic: cfg.Search.SemanticWeight,
		Lexical:  cfg.Search.LexicalWeight,
	}
	engine, err := search.NewEngine(st,
		search.WithWeights(weights),
		search.WithCacheSize(cfg.Search.CacheSize))
	if err != nil {
		return err
	}

	limit := opts.limit
	if limit <= 0 {
		limit = cfg.Search.MaxResults
	}

	results, err := engine.Search(ctx, query, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	slog.Info("search_completed", slog.Int("results", len(results)))

	if opts.format == "json" {
		return writeResultsJSON(cmd.OutOrStdout(), results)
	}
	return writeResultsText(cmd.OutOrStdout(), query, results, opts.explain, weights)
}

func writeResultsText(w io.Writer, query string, results []search.Result, explain bool, weights search.Weights) error {
	out := output.New(w)

	if len(results) == 0 {
		out.Statusf("🔍", "No results found for %q", query)
		return nil
	}

	out.Statusf("🔍", "Found %d results for %q:", len(results), query)
	if explain {
		out.Statusf("", "fusion: %.2f×semantic + %.2f×lexical", weights.Semantic, weights.Lexical)
	}
	out.Newline()

	for i, r := range results {
		out.Statusf("", "%d. %s (score: %.2f)", i+1, resultPath(r), r.Score)
		if explain {
			out.Statusf("", "   semantic: %.3f  lexical: %.3f", r.Semantic, r.Lexical)
		}
		for _, line := range snippet(r.Record.Content, 3) {
			out.Status("", "   "+line)
		}
		out.Newline()
	}
	return nil
}

type jsonResult struct {
	Path     string  `json:"path"`
	Language string  `json:"language,omitempty"`
	Score    float64 `json:"score"`
	Semantic float64 `json:"semantic"`
	Lexical  float64 `json:"lexical"`
	Content  string  `json:"content"`
}

func writeResultsJSON(w io.Writer, results []search.Result) error {
	payload := make([]jsonResult, 0, len(results))
	for _, r := range results {
		payload = append(payload, jsonResult{
			Path:     resultPath(r),
			Language: r.Record.Metadata[chunk.MetaLanguage],
			Score:    r.Score,
			Semantic: r.Semantic,
			Lexical:  r.Lexical,
			Content:  r.Record.Content,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

// resultPath prefers the repo-relative path and falls back to the source
// path, then the record ID.
func resultPath(r search.Result) string {
	if p := r.Record.Metadata[chunk.MetaRelPath]; p != "" {
		return p
	}
	if p := r.Record.Metadata[chunk.MetaSource]; p != "" {
		return p
	}
	return r.Record.ID
}

// snippet returns the first maxLines non-trailing-blank lines of content.
func snippet(content string, maxLines int) []string {
	lines := strings.Split(content, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}
	return lines
}
