package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/embed"
	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/ingest"
	"github.com/codescope/codescope/internal/store"
	"github.com/codescope/codescope/internal/ui"
)

type ingestOptions struct {
	noTUI    bool
	embedder string
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [path]",
		Short: "Index a repository for search and chat",
		Long: `Index a repository: scan its files, split them into overlapping
chunks enriched with tree-sitter entities, and replace the previous
index with the fresh records.

Ingestion always rebuilds the whole index. Queries issued while a run
is in flight may briefly see a partially replaced collection.

Examples:
  codescope ingest
  codescope ingest ~/projects/myapp
  codescope ingest --embedder static --no-tui`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runIngest(ctx, cmd, path, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.noTUI, "no-tui", false, "Disable the interactive display, print plain progress lines")
	cmd.Flags().StringVar(&opts.embedder, "embedder", "", "Embedding provider: ollama, openai, or static (default: config or auto-detect)")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, path string, opts ingestOptions) error {
	cleanup := setupCLILogging()
	defer cleanup()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	// Check the path before touching the data directory; creating
	// .codescope under a mistyped path would conjure the repository into
	// existence.
	if info, statErr := os.Stat(absPath); statErr != nil || !info.IsDir() {
		return errors.PathNotFound(absPath)
	}

	cfg, _, err := loadProjectConfig(absPath)
	if err != nil {
		return err
	}
	if opts.embedder != "" {
		cfg.Embeddings.Provider = opts.embedder
	}
	if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	renderer := ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
		ui.WithForcePlain(opts.noTUI),
		ui.WithNoColor(ui.DetectNoColor()),
		ui.WithRepoPath(absPath),
	))
	if err := renderer.Start(ctx); err != nil {
		slog.Warn("progress_display_start_failed", slog.String("error", err.Error()))
	}
	defer func() { _ = renderer.Stop() }()

	renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageScanning,
		Message: fmt.Sprintf("Connecting to %s embedder...", providerLabel(cfg.Embeddings.Provider)),
	})

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

	runner, err := ingest.NewRunner(ingest.Deps{Store: st, Config: cfg})
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()

	events, err := runner.Run(ctx, absPath)
	if err != nil {
		return err
	}

	var runErr error
	for p := range events {
		switch {
		case p.Err != nil:
			runErr = p.Err
		case p.Summary != nil:
			// An empty walk leaves the index alone; say so instead of
			// reporting zeros without explanation.
			if p.Summary.Files == 0 && p.Message != "" {
				renderer.AddError(ui.ErrorEvent{Message: p.Message, IsWarn: true})
			}
			info := embed.GetInfo(ctx, embedder)
			renderer.Complete(ui.CompletionStats{
				Files:    p.Summary.Files,
				Skipped:  p.Summary.Skipped,
				Chunks:   p.Summary.Chunks,
				Warnings: p.Summary.Warnings,
				Duration: p.Summary.Duration,
				Embedder: ui.EmbedderInfo{
					Provider:   info.Provider,
					Model:      info.Model,
					Dimensions: info.Dimensions,
				},
			})
		case p.Warn:
			renderer.AddError(ui.ErrorEvent{Message: p.Message, IsWarn: true})
		default:
			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:   uiStage(p.Stage),
				Current: p.Current,
				Total:   p.Total,
				Message: p.Message,
			})
		}
	}
	return runErr
}

// uiStage maps pipeline stages onto display stages.
func uiStage(s ingest.Stage) ui.Stage {
	switch s {
	case ingest.StageScanning:
		return ui.StageScanning
	case ingest.StageChunking:
		return ui.StageChunking
	case ingest.StageExtracting:
		return ui.StageExtracting
	case ingest.StageReplacing:
		return ui.StageIndexing
	default:
		return ui.StageComplete
	}
}

func providerLabel(provider string) string {
	if provider == "" {
		return "auto-detected"
	}
	return provider
}
