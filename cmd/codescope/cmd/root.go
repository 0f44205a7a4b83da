// Package cmd implements the codescope command line interface.
package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/embed"
	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/logging"
	"github.com/codescope/codescope/internal/profiling"
	"github.com/codescope/codescope/pkg/version"
)

// embedInitTimeout bounds the embedder startup probe so an unreachable
// provider fails fast instead of hanging the command.
const embedInitTimeout = 15 * time.Second

// Profiling state shared between the pre and post run hooks.
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// Debug logging state.
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	var reindex bool

	cmd := &cobra.Command{
		Use:   "codescope",
		Short: "Code-aware search and chat for your repositories",
		Long: `CodeScope indexes a repository into overlapping, language-aware chunks
enriched with tree-sitter code entities, then answers questions over
the index with hybrid semantic + keyword retrieval and grounded chat.

Run with no arguments inside a project to index it (first run only) and
serve MCP tools over stdio for AI coding assistants. The subcommands
expose the same pipeline for terminals and scripts.`,
		Version: version.Version,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// No output here: stdout belongs to the MCP protocol.
			return runMCP(cmd.Context(), mcpRunOptions{
				ensureIndex: true,
				reindex:     reindex,
			})
		},
	}

	cmd.SetVersionTemplate("codescope version {{.Version}}\n")

	cmd.Flags().BoolVar(&reindex, "reindex", false, "Re-ingest the project even if an index exists")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to the log file")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging runs before every command.
func startProfilingAndLogging(cmd *cobra.Command, args []string) error {
	if debugMode {
		cleanup, err := logging.SetupDefault()
		if err != nil {
			return fmt.Errorf("enable debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.Debug("debug_logging_enabled")
	}

	if profileCPU != "" {
		cleanup, err := profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("start cpu profile: %w", err)
		}
		cpuCleanup = cleanup
	}

	if profileTrace != "" {
		cleanup, err := profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
				cpuCleanup = nil
			}
			return fmt.Errorf("start execution trace: %w", err)
		}
		traceCleanup = cleanup
	}

	return nil
}

// stopProfilingAndLogging runs after every command, flushing whatever
// startProfilingAndLogging opened.
func stopProfilingAndLogging(cmd *cobra.Command, args []string) error {
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			slog.Warn("heap_profile_failed", slog.String("error", err.Error()))
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command. Pipeline errors carry codes and hints;
// those print in structured form, everything else stays plain.
func Execute() error {
	root := NewRootCmd()
	root.SilenceErrors = true
	root.SilenceUsage = true

	err := root.Execute()
	if err != nil {
		var se *errors.ScopeError
		if stderrors.As(err, &se) {
			fmt.Fprint(os.Stderr, errors.FormatForCLI(se))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
	}
	return err
}

// setupCLILogging sends slog to the log file, keeping the terminal for
// user-facing output. A no-op when --debug already installed a handler;
// logging setup failures are not fatal for a CLI command.
func setupCLILogging() func() {
	if loggingCleanup != nil {
		return func() {}
	}

	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}

// loadProjectConfig resolves the project root for path, loads the
// layered configuration, and pins the data directory under that root so
// every command and the ingest lock agree on one location.
func loadProjectConfig(path string) (*config.Config, string, error) {
	root, err := config.FindProjectRoot(path)
	if err != nil {
		if root, err = os.Getwd(); err != nil {
			return nil, "", err
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, "", err
	}
	cfg.Store.DataDir = cfg.ResolveDataDir(root)
	return cfg, root, nil
}

// newEmbedder creates the configured embedder with a bounded startup
// probe.
func newEmbedder(ctx context.Context, cfg *config.Config) (embed.Embedder, error) {
	initCtx, cancel := context.WithTimeout(ctx, embedInitTimeout)
	defer cancel()

	embedder, err := embed.New(initCtx, cfg.Embeddings)
	if err != nil {
		return nil, fmt.Errorf("embedder initialization failed: %w", err)
	}
	return embedder, nil
}
