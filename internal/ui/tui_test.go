package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTUIRendererRejectsNonTTY(t *testing.T) {
	r, err := NewTUIRenderer(NewConfig(&bytes.Buffer{}))

	require.Error(t, err)
	assert.Nil(t, r)
}

func TestIngestModelViewShowsPipeline(t *testing.T) {
	m := newIngestModel(NewProgressTracker(), "")

	view := m.View()
	assert.Contains(t, view, "Scan")
	assert.Contains(t, view, "Chunk")
	assert.Contains(t, view, "Extract")
	assert.Contains(t, view, "Index")
}

func TestIngestModelViewShowsProgress(t *testing.T) {
	tr := NewProgressTracker()
	tr.SetStage(StageChunking)
	tr.Update(50, 120, "Chunking src/main.go")

	m := newIngestModel(tr, "/repo")
	view := m.View()

	assert.Contains(t, view, "50 / 120 files")
	assert.Contains(t, view, "Chunking src/main.go")
	assert.Contains(t, view, "/repo")
}

func TestIngestModelViewCountsProblems(t *testing.T) {
	tr := NewProgressTracker()
	tr.AddError(ErrorEvent{Message: "bad"})
	tr.AddError(ErrorEvent{Message: "meh", IsWarn: true})
	tr.AddError(ErrorEvent{Message: "meh", IsWarn: true})

	view := newIngestModel(tr, "").View()

	assert.Contains(t, view, "2 warnings")
	assert.Contains(t, view, "1 errors")
}

func TestIngestModelCompletionView(t *testing.T) {
	m := newIngestModel(NewProgressTracker(), "")

	model, cmd := m.Update(doneMsg(CompletionStats{
		Files:    100,
		Chunks:   500,
		Duration: 5 * time.Second,
	}))
	require.NotNil(t, cmd, "completion should quit the program")

	view := model.View()
	assert.Contains(t, view, "Ingestion complete")
	assert.Contains(t, view, "100")
	assert.Contains(t, view, "500")
}

func TestIngestModelQuitKeys(t *testing.T) {
	m := newIngestModel(NewProgressTracker(), "")

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})

	require.NotNil(t, cmd)
	assert.Equal(t, "Cancelled.\n", model.View())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m 30s"},
		{2 * time.Minute, "2m"},
		{61 * time.Minute, "1h 1m"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatDuration(tt.d))
	}
}

func TestTruncateLeft(t *testing.T) {
	assert.Equal(t, "src/main.go", truncateLeft("src/main.go", 50))
	assert.Equal(t, "...", truncateLeft("abcdef", 3))

	long := "internal/store/very/deep/path/local.go"
	got := truncateLeft(long, 20)
	assert.Len(t, got, 20)
	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "local.go"))
}
