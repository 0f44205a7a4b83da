// Package ui renders ingestion progress in the terminal.
//
// NewRenderer picks the output mode: a full-screen bubbletea view when
// output is an interactive terminal, or one line per update when output
// is piped or running under CI.
package ui

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// Stage identifies the pipeline phase being displayed.
type Stage int

const (
	StageScanning Stage = iota
	StageChunking
	StageExtracting
	StageIndexing
	StageComplete
)

// String returns the human-readable stage name.
func (s Stage) String() string {
	switch s {
	case StageScanning:
		return "Scanning"
	case StageChunking:
		return "Chunking"
	case StageExtracting:
		return "Extracting"
	case StageIndexing:
		return "Indexing"
	case StageComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// Icon returns the short stage tag for plain text output.
func (s Stage) Icon() string {
	switch s {
	case StageScanning:
		return "SCAN"
	case StageChunking:
		return "CHUNK"
	case StageExtracting:
		return "EXTRACT"
	case StageIndexing:
		return "INDEX"
	case StageComplete:
		return "DONE"
	default:
		return "???"
	}
}

// unit names what Current and Total count in this stage.
func (s Stage) unit() string {
	switch s {
	case StageScanning, StageChunking, StageExtracting:
		return "files"
	case StageIndexing:
		return "records"
	default:
		return "items"
	}
}

// ProgressEvent is one progress update.
type ProgressEvent struct {
	Stage   Stage
	Current int
	Total   int
	Message string
}

// ErrorEvent reports a non-fatal problem encountered during a run.
type ErrorEvent struct {
	Message string
	IsWarn  bool
}

// EmbedderInfo identifies the embedding backend used for a run.
type EmbedderInfo struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// CompletionStats carries the final run summary.
type CompletionStats struct {
	Files    int
	Skipped  int
	Chunks   int
	Warnings int
	Duration time.Duration
	Embedder EmbedderInfo
}

// Renderer displays ingestion progress.
type Renderer interface {
	// Start initializes the renderer.
	Start(ctx context.Context) error

	// UpdateProgress updates the progress display.
	UpdateProgress(event ProgressEvent)

	// AddError surfaces an error or warning.
	AddError(event ErrorEvent)

	// Complete shows the final summary.
	Complete(stats CompletionStats)

	// Stop tears the renderer down.
	Stop() error
}

// Config configures renderer construction.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool

	// RepoPath is shown in the TUI header.
	RepoPath string
}

// ConfigOption modifies a Config.
type ConfigOption func(*Config)

// WithForcePlain forces line-per-update output even on a terminal.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithRepoPath sets the repository path shown in the header.
func WithRepoPath(path string) ConfigOption {
	return func(c *Config) {
		c.RepoPath = path
	}
}

// NewConfig creates a Config for the given output.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer selects a renderer for the environment: the TUI for
// interactive terminals, plain output for pipes, CI, or when plain
// mode is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain {
		return NewPlainRenderer(cfg)
	}
	if !IsTTY(cfg.Output) {
		return NewPlainRenderer(cfg)
	}
	if DetectCI() {
		return NewPlainRenderer(cfg)
	}

	tui, err := NewTUIRenderer(cfg)
	if err != nil {
		return NewPlainRenderer(cfg)
	}
	return tui
}

// IsTTY reports whether w is an interactive terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor reports whether NO_COLOR is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI reports whether the process appears to run under CI.
func DetectCI() bool {
	for _, v := range []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"} {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
