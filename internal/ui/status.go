package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// StatusInfo summarizes an index for the status command.
type StatusInfo struct {
	Root        string    `json:"root"`
	DataDir     string    `json:"data_dir"`
	Backend     string    `json:"backend"`
	Records     int       `json:"records"`
	IndexSize   int64     `json:"index_size_bytes"`
	LastIndexed time.Time `json:"last_indexed"`

	Embedder EmbedderInfo `json:"embedder"`

	// EmbedderStatus is "ready", "offline", or "error".
	EmbedderStatus string `json:"embedder_status"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{out: out, styles: GetStyles(noColor)}
}

// Render writes a human-readable status report.
func (r *StatusRenderer) Render(info StatusInfo) error {
	header := "Index Status"
	if info.Root != "" {
		header += ": " + info.Root
	}
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render(header))

	_, _ = fmt.Fprintf(r.out, "  Backend:      %s\n", info.Backend)
	_, _ = fmt.Fprintf(r.out, "  Records:      %d\n", info.Records)
	if info.DataDir != "" {
		_, _ = fmt.Fprintf(r.out, "  Data dir:     %s\n", info.DataDir)
	}
	if info.IndexSize > 0 {
		_, _ = fmt.Fprintf(r.out, "  Index size:   %s\n", FormatBytes(info.IndexSize))
	}
	if !info.LastIndexed.IsZero() {
		_, _ = fmt.Fprintf(r.out, "  Last indexed: %s\n", formatTime(info.LastIndexed))
	}
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Embedder:")
	_, _ = fmt.Fprintf(r.out, "    Provider:   %s\n", info.Embedder.Provider)
	_, _ = fmt.Fprintf(r.out, "    Model:      %s\n", info.Embedder.Model)
	if info.Embedder.Dimensions > 0 {
		_, _ = fmt.Fprintf(r.out, "    Dimensions: %d\n", info.Embedder.Dimensions)
	}
	if info.EmbedderStatus != "" {
		_, _ = fmt.Fprintf(r.out, "    Status:     %s\n", r.renderState(info.EmbedderStatus))
	}

	return nil
}

// RenderJSON writes the status as indented JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(info)
}

func (r *StatusRenderer) renderState(status string) string {
	switch status {
	case "ready":
		return r.styles.Success.Render(status)
	case "offline":
		return r.styles.Warning.Render(status)
	case "error":
		return r.styles.Error.Render(status)
	default:
		return status
	}
}

// formatTime renders a timestamp relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes renders a byte count in human-readable units.
func FormatBytes(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)

	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
