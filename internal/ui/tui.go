package ui

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUIRenderer drives a full-screen bubbletea view of the ingestion
// pipeline. Live numbers come from a shared ProgressTracker; messages
// sent to the program only nudge a re-render.
type TUIRenderer struct {
	mu      sync.Mutex
	cfg     Config
	program *tea.Program
	model   *ingestModel
	tracker *ProgressTracker
	started bool
	done    chan struct{}
}

// NewTUIRenderer creates the TUI renderer. It fails when output is not
// an interactive terminal.
func NewTUIRenderer(cfg Config) (*TUIRenderer, error) {
	if !IsTTY(cfg.Output) {
		return nil, fmt.Errorf("output is not a terminal")
	}

	tracker := NewProgressTracker()
	model := newIngestModel(tracker, cfg.RepoPath)
	if cfg.NoColor || DetectNoColor() {
		model.styles = NoColorStyles()
	}

	return &TUIRenderer{
		cfg:     cfg,
		tracker: tracker,
		model:   model,
		done:    make(chan struct{}),
	}, nil
}

// Start implements Renderer.
func (r *TUIRenderer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}
	if f, ok := r.cfg.Output.(*os.File); ok {
		opts = append(opts, tea.WithOutput(f))
	}

	r.program = tea.NewProgram(r.model, opts...)
	r.started = true

	go func() {
		defer close(r.done)
		_, _ = r.program.Run()
	}()

	return nil
}

// UpdateProgress implements Renderer.
func (r *TUIRenderer) UpdateProgress(event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(event.Stage)
	r.tracker.Update(event.Current, event.Total, event.Message)

	if r.program != nil {
		r.program.Send(progressMsg(event))
	}
}

// AddError implements Renderer.
func (r *TUIRenderer) AddError(event ErrorEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.AddError(event)

	if r.program != nil {
		r.program.Send(errMsg(event))
	}
}

// Complete implements Renderer.
func (r *TUIRenderer) Complete(stats CompletionStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tracker.SetStage(StageComplete)

	if r.program != nil {
		r.program.Send(doneMsg(stats))
	}
}

// Stop implements Renderer.
func (r *TUIRenderer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.program != nil {
		r.program.Quit()

		// Do not hang on an unresponsive program.
		select {
		case <-r.done:
		case <-time.After(2 * time.Second):
		}
	}

	return nil
}

type progressMsg ProgressEvent
type errMsg ErrorEvent
type doneMsg CompletionStats
type tickMsg time.Time

// ingestModel is the bubbletea model behind TUIRenderer.
type ingestModel struct {
	tracker  *ProgressTracker
	styles   Styles
	spinner  spinner.Model
	bar      progress.Model
	width    int
	height   int
	repoPath string
	quitting bool
	finished bool
	stats    CompletionStats
}

func newIngestModel(tracker *ProgressTracker, repoPath string) *ingestModel {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(ColorTeal))

	bar := progress.New(
		progress.WithSolidFill(ColorTeal),
		progress.WithWidth(50),
		progress.WithoutPercentage(),
	)

	return &ingestModel{
		tracker:  tracker,
		styles:   DefaultStyles(),
		spinner:  sp,
		bar:      bar,
		width:    80,
		height:   24,
		repoPath: repoPath,
	}
}

// Init implements tea.Model.
func (m *ingestModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// tick keeps the view refreshing while the tracker changes underneath.
func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m *ingestModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = msg.Width - 20
		if m.bar.Width < 20 {
			m.bar.Width = 20
		}

	case progressMsg:
		// Tracker already carries the data.
		return m, nil

	case errMsg:
		return m, nil

	case doneMsg:
		m.finished = true
		m.stats = CompletionStats(msg)
		return m, tea.Quit

	case tickMsg:
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m *ingestModel) View() string {
	if m.quitting {
		return "Cancelled.\n"
	}
	if m.finished {
		return m.renderSummary()
	}

	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	sections := []string{
		m.renderStages(),
		m.divider(contentWidth),
		m.renderProgress(),
		m.renderRate(),
		m.divider(contentWidth),
		m.renderSparkline(contentWidth),
	}
	if msg := m.tracker.Stats().Message; msg != "" {
		sections = append(sections,
			m.divider(contentWidth),
			m.styles.Dim.Render(truncateLeft(msg, contentWidth-2)))
	}

	title := "CodeScope"
	if m.repoPath != "" {
		title = fmt.Sprintf("CodeScope • %s", m.repoPath)
	}
	panel := m.renderPanel(title, strings.Join(sections, "\n"), contentWidth)

	return panel + "\n" + m.renderStatusBar()
}

// renderStages draws the pipeline with the active stage spinning.
func (m *ingestModel) renderStages() string {
	current := m.tracker.Stats().Stage

	stages := []struct {
		stage Stage
		name  string
	}{
		{StageScanning, "Scan"},
		{StageChunking, "Chunk"},
		{StageExtracting, "Extract"},
		{StageIndexing, "Index"},
	}

	var parts []string
	for _, s := range stages {
		var icon string
		var style lipgloss.Style

		switch {
		case s.stage < current:
			icon = "●"
			style = m.styles.Success
		case s.stage == current:
			icon = m.spinner.View()
			style = m.styles.Active
		default:
			icon = "○"
			style = m.styles.Dim
		}

		parts = append(parts, style.Render(icon+" "+s.name))
	}

	return strings.Join(parts, m.styles.Dim.Render(" → "))
}

func (m *ingestModel) renderProgress() string {
	snap := m.tracker.Stats()

	if snap.Total == 0 {
		return fmt.Sprintf("%s %s...\n%s",
			m.spinner.View(), snap.Stage, m.styles.Dim.Render("Preparing..."))
	}

	bar := m.bar.ViewAs(snap.Fraction)
	pct := m.styles.Active.Render(fmt.Sprintf("%3.0f%%", snap.Fraction*100))
	count := m.styles.Label.Render(
		fmt.Sprintf("%d / %d %s", snap.Current, snap.Total, snap.Stage.unit()))

	return fmt.Sprintf("%s  %s\n%s", bar, pct, count)
}

func (m *ingestModel) renderRate() string {
	snap := m.tracker.Stats()

	rate := fmt.Sprintf("Rate: %.0f/s", snap.Rate)
	if snap.AvgRate > 0 {
		rate += fmt.Sprintf(" (avg %.0f, peak %.0f)", snap.AvgRate, snap.PeakRate)
	}
	parts := []string{m.styles.Rate.Render(rate)}

	if snap.ETA > 0 {
		parts = append(parts, m.styles.Label.Render("ETA: "+formatDuration(snap.ETA)))
	}

	return strings.Join(parts, m.styles.Dim.Render("  •  "))
}

func (m *ingestModel) renderSparkline(width int) string {
	sparkWidth := width - 14
	if sparkWidth < 10 {
		sparkWidth = 10
	}

	spark := m.styles.Sparkline.Render(m.tracker.RenderSparkline(sparkWidth))
	return spark + " " + m.styles.Dim.Render("throughput")
}

func (m *ingestModel) divider(width int) string {
	return m.styles.Border.Render(strings.Repeat("─", width))
}

func (m *ingestModel) renderPanel(title, content string, width int) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Padding(0, 1).
		Width(width)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Header.Render(title),
		box.Render(content),
	)
}

func (m *ingestModel) renderStatusBar() string {
	snap := m.tracker.Stats()

	var parts []string
	if snap.Warnings > 0 {
		parts = append(parts, m.styles.Warning.Render(fmt.Sprintf("⚠ %d warnings", snap.Warnings)))
	}
	if snap.Errors > 0 {
		parts = append(parts, m.styles.Error.Render(fmt.Sprintf("✗ %d errors", snap.Errors)))
	}

	hint := m.styles.Dim.Render("q to quit")
	if len(parts) == 0 {
		return hint
	}
	return strings.Join(parts, m.styles.Dim.Render("  │  ")) + m.styles.Dim.Render("  │  ") + hint
}

// renderSummary draws the completion panel.
func (m *ingestModel) renderSummary() string {
	contentWidth := m.width - 4
	if contentWidth < 40 {
		contentWidth = 40
	}

	lines := []string{
		m.styles.Success.Render("✓ Ingestion complete"),
		"",
	}
	row := func(label, value string) {
		lines = append(lines, fmt.Sprintf("%s %s",
			m.styles.Label.Render(fmt.Sprintf("%-9s", label+":")),
			m.styles.Active.Render(value)))
	}
	row("Files", strconv.Itoa(m.stats.Files))
	row("Chunks", strconv.Itoa(m.stats.Chunks))
	row("Duration", formatDuration(m.stats.Duration))
	if m.stats.Embedder.Provider != "" {
		row("Embedder", fmt.Sprintf("%s (%s)", m.stats.Embedder.Provider, m.stats.Embedder.Model))
	}

	if m.stats.Skipped > 0 || m.stats.Warnings > 0 {
		lines = append(lines, "")
		if m.stats.Skipped > 0 {
			lines = append(lines, m.styles.Warning.Render(
				fmt.Sprintf("%d files skipped", m.stats.Skipped)))
		}
		if m.stats.Warnings > 0 {
			lines = append(lines, m.styles.Warning.Render(
				fmt.Sprintf("⚠ %d warnings", m.stats.Warnings)))
		}
	}

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorTeal)).
		Padding(1, 2).
		Width(contentWidth)

	return box.Render(strings.Join(lines, "\n")) + "\n"
}

// formatDuration renders durations the way a person reads them.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}

// truncateLeft trims the front of s to fit max characters, keeping the
// tail where file names live.
func truncateLeft(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return "..."
	}
	return "..." + s[len(s)-max+3:]
}

var _ Renderer = (*TUIRenderer)(nil)
