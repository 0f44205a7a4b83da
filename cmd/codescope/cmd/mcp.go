package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/chat"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/ingest"
	"github.com/codescope/codescope/internal/logging"
	"github.com/codescope/codescope/internal/mcp"
	"github.com/codescope/codescope/internal/search"
	"github.com/codescope/codescope/internal/store"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve MCP tools over stdio",
		Long: `Serve Model Context Protocol tools over stdio for AI coding
assistants.

Tools: search_codebase, ask_codebase, index_status. Configure your
assistant to run 'codescope mcp' in the project directory. Stdout is
reserved for the protocol; logs go to the log file only.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(cmd.Context(), mcpRunOptions{})
		},
	}
}

type mcpRunOptions struct {
	// ensureIndex ingests the project first when the index is empty.
	ensureIndex bool

	// reindex forces ingestion even when an index exists.
	reindex bool
}

// runMCP wires the full stack and serves MCP over stdio. Nothing may
// write to stdout before the protocol loop starts.
func runMCP(ctx context.Context, opts mcpRunOptions) error {
	if err := verifyStdinForMCP(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, root, err := loadProjectConfig(".")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	if logCleanup, logErr := logging.SetupMCPMode(cfg.Server.LogLevel); logErr == nil {
		defer logCleanup()
	}

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

	if opts.ensureIndex {
		if err := ensureIndexed(ctx, cfg, st, root, opts.reindex); err != nil {
			return err
		}
	}

	engine, err := search.NewEngine(st,
		search.WithWeights(search.Weights{
			Semantic: cfg.Search.SemanticWeight,
			Lexical:  cfg.Search.LexicalWeight,
		}),
		search.WithCacheSize(cfg.Search.CacheSize))
	if err != nil {
		return err
	}

	provider, err := chat.NewProvider(cfg)
	if err != nil {
		return err
	}
	svc, err := chat.NewService(engine, st, provider,
		chat.WithContextChunks(cfg.Chat.ContextChunks))
	if err != nil {
		return err
	}

	srv, err := mcp.NewServer(engine, svc, st, embedder, cfg)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// ensureIndexed runs a silent ingestion when the index is empty or a
// rebuild is forced.
func ensureIndexed(ctx context.Context, cfg *config.Config, st store.Store, root string, force bool) error {
	if !force {
		count, err := st.Count(ctx)
		if err != nil {
			return fmt.Errorf("check index: %w", err)
		}
		if count > 0 {
			return nil
		}
	}

	runner, err := ingest.NewRunner(ingest.Deps{Store: st, Config: cfg})
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()

	slog.Info("startup_ingest_started", slog.String("path", root))
	summary, err := runner.RunSync(ctx, root)
	if err != nil {
		if errors.CodeIs(err, errors.ErrCodeIngestLocked) {
			// Another process is indexing this project; serve what lands.
			slog.Warn("startup_ingest_skipped_locked")
			return nil
		}
		return err
	}
	slog.Info("startup_ingest_complete",
		slog.String("run_id", summary.RunID),
		slog.Int("files", summary.Files),
		slog.Int("chunks", summary.Chunks))
	return nil
}

// verifyStdinForMCP rejects interactive invocation. The MCP server reads
// JSON-RPC from stdin, so a terminal there means no client is attached.
func verifyStdinForMCP() error {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return fmt.Errorf("stdin is a terminal: the MCP server expects a JSON-RPC pipe from an MCP client\nUse 'codescope search' or 'codescope ask' for interactive queries")
	}
	return nil
}
