package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/embed"
	"github.com/codescope/codescope/internal/store"
	"github.com/codescope/codescope/internal/ui"
)

// statusProbeTimeout bounds the embedder availability probe; status
// should answer quickly even when a provider is down.
const statusProbeTimeout = 5 * time.Second

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and status",
		Long: `Display the state of the current project's index:
  - record count and store backend
  - on-disk index size and last indexing time
  - embedder provider, model, and availability`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, jsonOutput bool) error {
	cleanup := setupCLILogging()
	defer cleanup()

	cfg, root, err := loadProjectConfig(".")
	if err != nil {
		return err
	}

	local := !strings.EqualFold(cfg.Store.Backend, store.BackendPostgres)
	if local && !store.LocalIndexExists(cfg.Store.DataDir) {
		return fmt.Errorf("no index found in %s\nRun 'codescope ingest' to create one", root)
	}

	info, err := collectStatus(ctx, cfg, root, local)
	if err != nil {
		return fmt.Errorf("collect status: %w", err)
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func collectStatus(ctx context.Context, cfg *config.Config, root string, local bool) (ui.StatusInfo, error) {
	backend := strings.ToLower(cfg.Store.Backend)
	if backend == "" {
		backend = store.BackendLocal
	}
	info := ui.StatusInfo{
		Root:    root,
		DataDir: cfg.Store.DataDir,
		Backend: backend,
	}

	// Availability is an actual probe of the configured provider, not a
	// config echo.
	probeCtx, cancel := context.WithTimeout(ctx, statusProbeTimeout)
	defer cancel()

	embedder, err := embed.New(probeCtx, cfg.Embeddings)
	if err != nil {
		info.Embedder = ui.EmbedderInfo{
			Provider: cfg.Embeddings.Provider,
			Model:    cfg.Embeddings.Model,
		}
		info.EmbedderStatus = "error"
	} else {
		defer func() { _ = embedder.Close() }()

		ei := embed.GetInfo(probeCtx, embedder)
		info.Embedder = ui.EmbedderInfo{
			Provider:   ei.Provider,
			Model:      ei.Model,
			Dimensions: ei.Dimensions,
		}
		if ei.Available {
			info.EmbedderStatus = "ready"
		} else {
			info.EmbedderStatus = "offline"
		}
	}

	if local {
		// Count straight from the record database. Opening the full store
		// would load the vector index, and with a changed embedder that
		// resets persisted vectors; inspection must not do that.
		count, err := store.CountLocalRecords(cfg.Store.DataDir)
		if err != nil {
			return info, err
		}
		info.Records = count
		info.IndexSize, info.LastIndexed = dirStats(cfg.Store.DataDir)
		return info, nil
	}

	if embedder == nil {
		// Without an embedder the remote store cannot be opened; report
		// what is known.
		return info, nil
	}
	st, err := store.New(ctx, cfg.Store, embedder)
	if err != nil {
		return info, err
	}
	defer func() { _ = st.Close() }()

	count, err := st.Count(ctx)
	if err != nil {
		return info, err
	}
	info.Records = count
	return info, nil
}

// dirStats walks dir summing file sizes and tracking the newest mtime.
func dirStats(dir string) (int64, time.Time) {
	var (
		size   int64
		newest time.Time
	)
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		size += info.Size()
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	return size, newest
}
