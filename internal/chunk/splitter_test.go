package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Basic Splitting
// ============================================================================

func TestSplitter_ShortTextSingleSegment(t *testing.T) {
	// Given: text well under the chunk size
	text := "hello world"

	// When: splitting with generic separators
	s := NewSplitter(genericSeparators, 1000, 200)
	segments := s.Split(text)

	// Then: one segment covering the whole text
	require.Len(t, segments, 1)
	assert.Equal(t, "hello world", segments[0].Text)
	assert.Equal(t, 0, segments[0].Start)
}

func TestSplitter_EmptyAndWhitespaceInput(t *testing.T) {
	s := NewSplitter(genericSeparators, 1000, 200)

	t.Run("empty string", func(t *testing.T) {
		assert.Empty(t, s.Split(""))
	})

	t.Run("whitespace only", func(t *testing.T) {
		// Whitespace-only runs are stripped away entirely
		assert.Empty(t, s.Split("   \n\n  \t  "))
	})
}

func TestSplitter_LongRunSplitsWithOverlap(t *testing.T) {
	// Given: 1500 characters with no separator at all
	text := strings.Repeat("a", 1500)

	// When: splitting at size 1000 / overlap 200
	s := NewSplitter(genericSeparators, 1000, 200)
	segments := s.Split(text)

	// Then: two segments, the second starting 200 characters inside the first
	require.Len(t, segments, 2)

	assert.Equal(t, 0, segments[0].Start)
	assert.Len(t, segments[0].Text, 1000)

	assert.Equal(t, 800, segments[1].Start)
	assert.Len(t, segments[1].Text, 700)

	// And: both segments are exact substrings of the input
	for _, seg := range segments {
		assert.Equal(t, text[seg.Start:seg.Start+len(seg.Text)], seg.Text)
	}
}

func TestSplitter_SegmentsAreExactSubstrings(t *testing.T) {
	tests := []struct {
		name string
		seps []string
		text string
	}{
		{
			name: "python functions",
			seps: LangPython.Separators(),
			text: "def alpha():\n" + strings.Repeat("    x = 1\n", 60) + "\ndef beta():\n" + strings.Repeat("    y = 2\n", 60),
		},
		{
			name: "go functions",
			seps: LangGo.Separators(),
			text: "package main\n\nfunc a() {\n" + strings.Repeat("\tz := 1\n", 80) + "}\n\nfunc b() {\n\treturn\n}\n",
		},
		{
			name: "prose paragraphs",
			seps: genericSeparators,
			text: strings.Repeat("one two three four five six seven eight nine ten.\n\n", 40),
		},
		{
			name: "continuous run",
			seps: genericSeparators,
			text: strings.Repeat("x", 3210),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSplitter(tt.seps, 1000, 200)
			segments := s.Split(tt.text)
			require.NotEmpty(t, segments)

			for i, seg := range segments {
				// Offset must point at the exact segment text
				require.Equal(t, tt.text[seg.Start:seg.Start+len(seg.Text)], seg.Text,
					"segment %d offset mismatch", i)
				// Segments stay within the size budget
				assert.LessOrEqual(t, utf8.RuneCountInString(seg.Text), 1000)
			}
		})
	}
}

// ============================================================================
// Overlap and Coverage
// ============================================================================

func TestSplitter_ConsecutiveOverlapBounded(t *testing.T) {
	// Given: a long word stream split by the generic separators
	text := strings.Repeat("word ", 500)

	// When: splitting at size 1000 / overlap 200
	s := NewSplitter(genericSeparators, 1000, 200)
	segments := s.Split(text)
	require.Greater(t, len(segments), 1)

	// Then: neighbors overlap by at most 200 characters and leave no gaps
	for i := 1; i < len(segments); i++ {
		prevEnd := segments[i-1].Start + len(segments[i-1].Text)
		overlap := prevEnd - segments[i].Start
		assert.GreaterOrEqual(t, overlap, 0, "segments %d/%d must not leave a gap", i-1, i)
		assert.LessOrEqual(t, overlap, 200, "segments %d/%d overlap too much", i-1, i)
	}

	// And: the last segment reaches the end of the (stripped) text
	last := segments[len(segments)-1]
	assert.Equal(t, len(strings.TrimRight(text, " ")), last.Start+len(last.Text))
}

// ============================================================================
// Separator Preference
// ============================================================================

func TestSplitter_BreaksAtDeclarationBoundaries(t *testing.T) {
	tests := []struct {
		name       string
		lang       Language
		text       string
		wantPrefix []string
	}{
		{
			name:       "python defs",
			lang:       LangPython,
			text:       "def alpha():\n" + strings.Repeat("    x = 1\n", 60) + "\ndef beta():\n" + strings.Repeat("    y = 2\n", 60),
			wantPrefix: []string{"def alpha", "def beta"},
		},
		{
			name:       "go funcs",
			lang:       LangGo,
			text:       "func alpha() {\n" + strings.Repeat("\tx := 1\n", 75) + "}\n\nfunc beta() {\n" + strings.Repeat("\ty := 2\n", 75) + "}\n",
			wantPrefix: []string{"func alpha", "func beta"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSplitter(tt.lang.Separators(), 1000, 200)
			segments := s.Split(tt.text)
			require.Len(t, segments, len(tt.wantPrefix))

			for i, prefix := range tt.wantPrefix {
				assert.True(t, strings.HasPrefix(segments[i].Text, prefix),
					"segment %d should start with %q, got %q", i, prefix, firstLine(segments[i].Text))
			}
		})
	}
}

func TestSplitter_MarkdownBreaksAtHeadings(t *testing.T) {
	// Given: two markdown sections too large for one chunk
	body := strings.Repeat("alpha beta gamma delta epsilon zeta eta theta. ", 18)
	text := "# Title\n\n" + body + "\n## Section Two\n\n" + body

	// When: splitting with markdown separators
	s := NewSplitter(LangMarkdown.Separators(), 1000, 200)
	segments := s.Split(text)

	// Then: the split lands on the heading, not mid-paragraph
	require.Len(t, segments, 2)
	assert.True(t, strings.HasPrefix(segments[0].Text, "# Title"))
	assert.True(t, strings.HasPrefix(segments[1].Text, "## Section Two"))
}

// ============================================================================
// Unicode
// ============================================================================

func TestSplitter_SizesMeasuredInRunes(t *testing.T) {
	// Given: 1200 two-byte runes
	text := strings.Repeat("é", 1200)

	// When: splitting at size 1000 / overlap 200
	s := NewSplitter(genericSeparators, 1000, 200)
	segments := s.Split(text)

	// Then: boundaries count runes, not bytes, and never cut a rune in half
	require.Len(t, segments, 2)
	assert.Equal(t, 1000, utf8.RuneCountInString(segments[0].Text))
	assert.Equal(t, 400, utf8.RuneCountInString(segments[1].Text))
	assert.Equal(t, 1600, segments[1].Start, "second segment should start 800 runes (1600 bytes) in")

	for _, seg := range segments {
		assert.True(t, utf8.ValidString(seg.Text))
		assert.Equal(t, text[seg.Start:seg.Start+len(seg.Text)], seg.Text)
	}
}

// ============================================================================
// Defaults
// ============================================================================

func TestNewSplitter_Defaults(t *testing.T) {
	t.Run("zero sizes fall back to defaults", func(t *testing.T) {
		s := NewSplitter(nil, 0, -1)
		assert.Equal(t, DefaultChunkSize, s.chunkSize)
		assert.Equal(t, DefaultChunkOverlap, s.overlap)
		assert.Equal(t, genericSeparators, s.seps)
	})

	t.Run("zero overlap is honored", func(t *testing.T) {
		s := NewSplitter(genericSeparators, 100, 0)
		segments := s.Split(strings.Repeat("a", 250))

		require.Len(t, segments, 3)
		for i := 1; i < len(segments); i++ {
			prevEnd := segments[i-1].Start + len(segments[i-1].Text)
			assert.Equal(t, prevEnd, segments[i].Start)
		}
	})
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
