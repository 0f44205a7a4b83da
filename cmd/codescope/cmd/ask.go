package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/chat"
	"github.com/codescope/codescope/internal/search"
	"github.com/codescope/codescope/internal/store"
)

func newAskCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed codebase",
		Long: `Ask a question and get an answer grounded in the indexed code.

The answer opens with a Sources section citing the files the retrieved
context came from, then streams the model's reply as it is generated.

Examples:
  codescope ask "how does ingestion replace the index?"
  codescope ask "where are the fusion weights configured?" --model llama3`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runAsk(ctx, cmd, strings.Join(args, " "), model)
		},
	}

	cmd.Flags().StringVar(&model, "model", "", "Generation model (default from config)")

	return cmd
}

func runAsk(ctx context.Context, cmd *cobra.Command, question, model string) error {
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
	if model != "" {
		cfg.Chat.Model = model
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

	w := cmd.OutOrStdout()
	if err := svc.Ask(ctx, question, func(delta string) error {
		_, werr := io.WriteString(w, delta)
		return werr
	}); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w)
	return nil
}
