package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// Chunk Construction
// ============================================================================

func TestChunker_SingleSmallFile(t *testing.T) {
	// Given: a three-line file that fits in one chunk
	file := &FileInput{
		Path:    "notes.txt",
		Content: []byte("first line\nsecond line\nthird line"),
	}

	// When: chunking
	chunker := NewChunker()
	chunks := chunker.ChunkFile(file)

	// Then: one chunk spanning lines 1-3 with full metadata
	require.Len(t, chunks, 1)
	c := chunks[0]

	assert.Len(t, c.ID, 16)
	assert.Equal(t, "notes.txt", c.FilePath)
	assert.Equal(t, "first line\nsecond line\nthird line", c.Content)
	assert.Equal(t, LangText, c.Language)
	assert.Equal(t, 0, c.Index)
	assert.Equal(t, 1, c.StartLine)
	assert.Equal(t, 3, c.EndLine)
	assert.False(t, c.CreatedAt.IsZero())
}

func TestChunker_MetadataPopulated(t *testing.T) {
	// Given: a nested file with an absolute path
	file := &FileInput{
		Path:    "app/models/user.py",
		AbsPath: "/repo/app/models/user.py",
		Content: []byte("class User:\n    pass\n"),
	}

	// When: chunking
	chunks := NewChunker().ChunkFile(file)
	require.Len(t, chunks, 1)

	// Then: metadata carries source, filename, extension, language and
	// relative path
	md := chunks[0].Metadata
	assert.Equal(t, "/repo/app/models/user.py", md[MetaSource])
	assert.Equal(t, "user.py", md[MetaFileName])
	assert.Equal(t, ".py", md[MetaExtension])
	assert.Equal(t, "python", md[MetaLanguage])
	assert.Equal(t, "app/models/user.py", md[MetaRelPath])

	// And: entity keys are absent until enrichment runs
	assert.NotContains(t, md, MetaEntities)
	assert.NotContains(t, md, MetaHasIntelligence)
}

func TestChunker_EmptyAndWhitespaceFiles(t *testing.T) {
	chunker := NewChunker()

	t.Run("empty file", func(t *testing.T) {
		chunks := chunker.ChunkFile(&FileInput{Path: "empty.txt", Content: nil})
		assert.Empty(t, chunks)
	})

	t.Run("whitespace-only file", func(t *testing.T) {
		chunks := chunker.ChunkFile(&FileInput{Path: "blank.txt", Content: []byte("  \n\n\t \n")})
		assert.Empty(t, chunks)
	})
}

// ============================================================================
// Multi-File Repositories
// ============================================================================

func TestChunker_TwoFileRepositoryChunkCount(t *testing.T) {
	// Given: a 1500-character python file and a 100-character text file
	files := []*FileInput{
		{Path: "big.py", Content: []byte(strings.Repeat("a", 1500))},
		{Path: "small.txt", Content: []byte(strings.Repeat("b", 100))},
	}

	// When: chunking at the default size 1000 / overlap 200
	chunks := NewChunker().ChunkAll(files)

	// Then: the python file yields 2 chunks, the text file 1
	require.Len(t, chunks, 3)

	var pyChunks, txtChunks []*Chunk
	for _, c := range chunks {
		switch c.FilePath {
		case "big.py":
			pyChunks = append(pyChunks, c)
		case "small.txt":
			txtChunks = append(txtChunks, c)
		}
	}
	require.Len(t, pyChunks, 2)
	require.Len(t, txtChunks, 1)

	// And: chunk indexes restart per file
	assert.Equal(t, 0, pyChunks[0].Index)
	assert.Equal(t, 1, pyChunks[1].Index)
	assert.Equal(t, 0, txtChunks[0].Index)

	// And: the python chunks cover the file with a 200-character overlap
	assert.Len(t, pyChunks[0].Content, 1000)
	assert.Len(t, pyChunks[1].Content, 700)

	// And: all IDs are distinct
	ids := map[string]bool{}
	for _, c := range chunks {
		ids[c.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestChunker_ChunkAllPreservesFileOrder(t *testing.T) {
	files := []*FileInput{
		{Path: "z.txt", Content: []byte("zulu")},
		{Path: "a.txt", Content: []byte("alpha")},
	}

	chunks := NewChunker().ChunkAll(files)

	require.Len(t, chunks, 2)
	assert.Equal(t, "z.txt", chunks[0].FilePath)
	assert.Equal(t, "a.txt", chunks[1].FilePath)
}

// ============================================================================
// Language Routing
// ============================================================================

func TestChunker_PythonSplitsAtFunctionBoundaries(t *testing.T) {
	// Given: two ~600 character functions
	body := strings.Repeat("    x = 1\n", 60)
	source := "def alpha():\n" + body + "\ndef beta():\n" + body

	// When: chunking
	chunks := NewChunker().ChunkFile(&FileInput{Path: "funcs.py", Content: []byte(source)})

	// Then: each function lands in its own chunk
	require.Len(t, chunks, 2)
	assert.True(t, strings.HasPrefix(chunks[0].Content, "def alpha"))
	assert.True(t, strings.HasPrefix(chunks[1].Content, "def beta"))

	// And: line spans are 1-indexed and inclusive
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 61, chunks[0].EndLine)
	assert.Equal(t, 63, chunks[1].StartLine)
	assert.Equal(t, 123, chunks[1].EndLine)
}

func TestChunker_UnknownExtensionUsesGenericSplitting(t *testing.T) {
	// Given: an extension outside the allowlist
	file := &FileInput{Path: "data.xyz", Content: []byte(strings.Repeat("q", 1500))}

	// When: chunking
	chunks := NewChunker().ChunkFile(file)

	// Then: the file still chunks via the generic separators
	require.Len(t, chunks, 2)
	assert.Equal(t, LangText, chunks[0].Language)
	assert.Equal(t, "text", chunks[0].Metadata[MetaLanguage])
}

func TestChunker_ExplicitLanguageOverridesPath(t *testing.T) {
	file := &FileInput{
		Path:     "snippet.txt",
		Content:  []byte("def f():\n    pass\n"),
		Language: LangPython,
	}

	chunks := NewChunker().ChunkFile(file)

	require.Len(t, chunks, 1)
	assert.Equal(t, LangPython, chunks[0].Language)
	assert.Equal(t, "python", chunks[0].Metadata[MetaLanguage])
}

// ============================================================================
// Determinism and IDs
// ============================================================================

func TestChunker_RepeatedRunsProduceIdenticalChunks(t *testing.T) {
	// Given: one file chunked twice by independent chunkers
	content := []byte(strings.Repeat("some repeated content here. ", 100))
	file := &FileInput{Path: "stable.md", Content: content}

	first := NewChunker().ChunkFile(file)
	second := NewChunker().ChunkFile(file)

	// Then: IDs, boundaries and content all match
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].StartLine, second[i].StartLine)
		assert.Equal(t, first[i].EndLine, second[i].EndLine)
	}
}

func TestChunkID_Components(t *testing.T) {
	base := newChunkID("pkg/file.go", 0, "content")

	t.Run("stable for identical input", func(t *testing.T) {
		assert.Equal(t, base, newChunkID("pkg/file.go", 0, "content"))
	})

	t.Run("index changes the ID", func(t *testing.T) {
		assert.NotEqual(t, base, newChunkID("pkg/file.go", 1, "content"))
	})

	t.Run("path changes the ID", func(t *testing.T) {
		assert.NotEqual(t, base, newChunkID("pkg/other.go", 0, "content"))
	})

	t.Run("content changes the ID", func(t *testing.T) {
		assert.NotEqual(t, base, newChunkID("pkg/file.go", 0, "different"))
	})

	t.Run("IDs are 16 lowercase hex characters", func(t *testing.T) {
		require.Len(t, base, 16)
		for _, r := range base {
			assert.Contains(t, "0123456789abcdef", string(r))
		}
	})
}

// ============================================================================
// Custom Sizing
// ============================================================================

func TestChunker_CustomSizes(t *testing.T) {
	// Given: a 250-character run at size 100 / overlap 20
	chunker := NewChunkerWithOptions(ChunkerOptions{ChunkSize: 100, ChunkOverlap: 20})
	chunks := chunker.ChunkFile(&FileInput{Path: "run.txt", Content: []byte(strings.Repeat("a", 250))})

	// Then: three chunks stepping 80 characters at a time
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0].Content, 100)
	assert.Len(t, chunks[1].Content, 100)
	assert.Len(t, chunks[2].Content, 90)
}
