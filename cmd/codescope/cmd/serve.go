package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/chat"
	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/ingest"
	"github.com/codescope/codescope/internal/logging"
	"github.com/codescope/codescope/internal/search"
	"github.com/codescope/codescope/internal/server"
	"github.com/codescope/codescope/internal/store"
	"github.com/codescope/codescope/internal/watcher"
)

func newServeCmd() *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Serve the HTTP API",
		Long: `Serve the HTTP API over the indexed repository.

Endpoints: GET /health, POST /api/ingest, POST /api/chat,
POST /api/files/list, POST /api/files/content. Ingestion progress and
chat answers stream to the client.

With --watch, the repository is watched for changes and re-ingested
after a quiet period. A change batch only signals the run: the whole
repository is re-indexed so the collection stays a consistent snapshot.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runServe(cmd.Context(), path, addr, watch)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8000)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Re-ingest automatically when repository files change")

	return cmd
}

func runServe(ctx context.Context, path, addr string, watch bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if info, statErr := os.Stat(absPath); statErr != nil || !info.IsDir() {
		return errors.PathNotFound(absPath)
	}

	cfg, _, err := loadProjectConfig(absPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	if loggingCleanup == nil {
		logCfg := logging.DefaultConfig()
		logCfg.Level = cfg.Server.LogLevel
		if logger, cleanup, logErr := logging.Setup(logCfg); logErr == nil {
			slog.SetDefault(logger)
			defer cleanup()
		}
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

	runner, err := ingest.NewRunner(ingest.Deps{Store: st, Config: cfg})
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()

	srv, err := server.New(cfg.Server.Addr, runner, svc, engine)
	if err != nil {
		return err
	}

	if !strings.EqualFold(cfg.Store.Backend, store.BackendPostgres) &&
		!store.LocalIndexExists(cfg.Store.DataDir) {
		slog.Info("no_index_yet",
			slog.String("hint", "POST /api/ingest or run 'codescope ingest' to build one"))
	}

	if watch {
		w, werr := watcher.New(watcher.Options{
			Debounce:   parseDebounce(cfg.Ingest.WatchDebounce),
			IgnoreDirs: []string{filepath.Base(cfg.Store.DataDir)},
		})
		if werr != nil {
			return fmt.Errorf("create watcher: %w", werr)
		}
		defer func() { _ = w.Stop() }()

		// Start must not delay server startup; large trees take a while
		// to register.
		go func() {
			if serr := w.Start(ctx, absPath); serr != nil && ctx.Err() == nil {
				slog.Error("watch_failed", slog.String("error", serr.Error()))
			}
		}()
		go watchLoop(ctx, w, runner, engine, absPath)

		slog.Info("watch_enabled", slog.String("path", absPath))
	}

	return srv.ListenAndServe(ctx)
}

// watchLoop re-ingests the repository once per debounced change batch.
// Batches that queue up while a run is in flight collapse into a single
// follow-up run.
func watchLoop(ctx context.Context, w *watcher.Watcher, runner *ingest.Runner, engine *search.Engine, repoPath string) {
	for {
		select {
		case <-ctx.Done():
			return

		case batch, ok := <-w.Events():
			if !ok {
				return
			}
			changes := len(batch)
		drain:
			for {
				select {
				case more, mok := <-w.Events():
					if !mok {
						break drain
					}
					changes += len(more)
				default:
					break drain
				}
			}

			slog.Info("watch_reingest_started", slog.Int("changes", changes))
			summary, err := runner.RunSync(ctx, repoPath)
			switch {
			case err == nil:
				engine.Invalidate()
				slog.Info("watch_reingest_complete",
					slog.String("run_id", summary.RunID),
					slog.Int("files", summary.Files),
					slog.Int("chunks", summary.Chunks),
					slog.Duration("duration", summary.Duration))
			case ctx.Err() != nil:
				return
			case errors.CodeIs(err, errors.ErrCodeIngestLocked):
				// Another run holds the lock; the next batch retries.
				slog.Warn("watch_reingest_skipped_locked")
			default:
				slog.Error("watch_reingest_failed", slog.String("error", err.Error()))
			}

		case werr, ok := <-w.Errors():
			if !ok {
				return
			}
			slog.Warn("watch_error", slog.String("error", werr.Error()))
		}
	}
}

// parseDebounce parses the configured debounce window. Zero lets the
// watcher apply its default.
func parseDebounce(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		slog.Warn("invalid_watch_debounce", slog.String("value", s))
		return 0
	}
	return d
}
