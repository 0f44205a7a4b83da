package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/embed"
	"github.com/codescope/codescope/internal/search"
	"github.com/codescope/codescope/internal/store"
	"github.com/codescope/codescope/pkg/version"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

// Searcher runs hybrid queries. *search.Engine satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]search.Result, error)
}

// Asker produces complete chat answers. *chat.Service satisfies it.
type Asker interface {
	AskString(ctx context.Context, question string) (string, error)
}

// Server bridges MCP clients with the index. It registers three tools:
// search_codebase, ask_codebase, and index_status.
type Server struct {
	mcp      *mcp.Server
	searcher Searcher
	asker    Asker
	store    store.Store
	embedder embed.Embedder // may be nil; index_status reports it as absent
	config   *config.Config
	logger   *slog.Logger
}

// NewServer creates the MCP server and registers its tools.
func NewServer(searcher Searcher, asker Asker, st store.Store, embedder embed.Embedder, cfg *config.Config) (*Server, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}
	if asker == nil {
		return nil, fmt.Errorf("asker is required")
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg == nil {
		cfg = config.NewConfig()
	}

	s := &Server{
		searcher: searcher,
		asker:    asker,
		store:    st,
		embedder: embedder,
		config:   cfg,
		logger:   slog.Default(),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    "CodeScope",
			Version: version.Version,
		},
		nil, // capabilities are inferred from registered tools
	)

	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Serve runs the server on stdio until the context is canceled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp_server_started", slog.String("transport", "stdio"))

	err := s.mcp.Run(ctx, &mcp.StdioTransport{})
	if err != nil && !stderrors.Is(err, context.Canceled) {
		s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
		return err
	}
	s.logger.Info("mcp_server_stopped")
	return nil
}

// registerTools registers all tools with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_codebase",
		Description: "Hybrid search over the ingested codebase. Combines semantic similarity with keyword matching, so it finds code by meaning as well as by exact terms. Returns ranked chunks with file paths and scores.",
	}, s.searchHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "ask_codebase",
		Description: "Ask a question about the ingested codebase. Returns a grounded answer that opens with a Sources section citing the files it drew from.",
	}, s.askHandler)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "index_status",
		Description: "Check how many chunks are indexed, which store backend is active, and which embedder is in use. Use before searching to verify the index is ready.",
	}, s.indexStatusHandler)

	s.logger.Debug("mcp_tools_registered", slog.Int("count", 3))
}

// searchHandler is the MCP SDK handler for the search_codebase tool.
func (s *Server) searchHandler(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (
	*mcp.CallToolResult,
	SearchOutput,
	error,
) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, SearchOutput{}, NewInvalidParamsError("query parameter is required and must be a non-empty string")
	}
	limit := clampLimit(input.Limit, defaultSearchLimit, 1, maxSearchLimit)

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("mcp_search_started",
		slog.String("request_id", requestID),
		slog.String("query", query),
		slog.Int("limit", limit))

	results, err := s.searcher.Search(ctx, query, limit)
	if err != nil {
		s.logger.Error("mcp_search_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, SearchOutput{}, MapError(err)
	}

	s.logger.Info("mcp_search_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("result_count", len(results)))

	output := SearchOutput{Results: make([]SearchResultOutput, 0, len(results))}
	for _, r := range results {
		output.Results = append(output.Results, toResultOutput(r))
	}
	return nil, output, nil
}

// askHandler is the MCP SDK handler for the ask_codebase tool.
func (s *Server) askHandler(ctx context.Context, _ *mcp.CallToolRequest, input AskInput) (
	*mcp.CallToolResult,
	AskOutput,
	error,
) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, AskOutput{}, NewInvalidParamsError("question parameter is required and must be a non-empty string")
	}

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("mcp_ask_started", slog.String("request_id", requestID))

	answer, err := s.asker.AskString(ctx, question)
	if err != nil {
		s.logger.Error("mcp_ask_failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()))
		return nil, AskOutput{}, MapError(err)
	}

	s.logger.Info("mcp_ask_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)))

	return nil, AskOutput{Answer: answer}, nil
}

// indexStatusHandler is the MCP SDK handler for the index_status tool.
func (s *Server) indexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, _ IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, nil, MapError(err)
	}

	output := &IndexStatusOutput{
		Records: count,
		Backend: backendName(s.config.Store.Backend),
	}
	if s.embedder != nil {
		output.Embeddings = embed.GetInfo(ctx, s.embedder)
	} else {
		output.Embeddings = embed.Info{Provider: "none", Model: "none"}
	}
	return nil, output, nil
}

// backendName normalizes the configured backend, which may be empty.
func backendName(backend string) string {
	if backend == "" {
		return store.BackendLocal
	}
	return strings.ToLower(backend)
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
