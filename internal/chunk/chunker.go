package chunk

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ChunkerOptions configures chunk sizing.
type ChunkerOptions struct {
	ChunkSize    int // characters per chunk (default: DefaultChunkSize)
	ChunkOverlap int // characters shared between neighbors (default: DefaultChunkOverlap)
}

// Chunker splits source files into overlapping chunks, routing each file to
// a splitter built from its language's separator list. Splitters are cached
// per language, so files with the same extension share one configuration.
type Chunker struct {
	size      int
	overlap   int
	splitters map[Language]*Splitter
}

// NewChunker creates a chunker with default options.
func NewChunker() *Chunker {
	return NewChunkerWithOptions(ChunkerOptions{})
}

// NewChunkerWithOptions creates a chunker with custom options.
func NewChunkerWithOptions(opts ChunkerOptions) *Chunker {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap == 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}

	return &Chunker{
		size:      opts.ChunkSize,
		overlap:   opts.ChunkOverlap,
		splitters: make(map[Language]*Splitter),
	}
}

// ChunkFile splits one file into chunks. Boundaries depend only on the file
// content and the configured sizes, so repeated runs over an unchanged file
// produce identical chunks with identical IDs.
func (c *Chunker) ChunkFile(file *FileInput) []*Chunk {
	text := string(file.Content)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lang := file.Language
	if lang == "" {
		lang = LanguageForPath(file.Path)
	}

	segments := c.splitterFor(lang).Split(text)
	now := time.Now()

	chunks := make([]*Chunk, 0, len(segments))
	for i, seg := range segments {
		chunks = append(chunks, &Chunk{
			ID:        newChunkID(file.Path, i, seg.Text),
			FilePath:  file.Path,
			Content:   seg.Text,
			Language:  lang,
			Index:     i,
			StartLine: lineAt(text, seg.Start),
			EndLine:   lineAt(text, seg.Start+len(seg.Text)-1),
			Metadata:  baseMetadata(file, lang),
			CreatedAt: now,
		})
	}
	return chunks
}

// ChunkAll chunks every file, preserving file order.
func (c *Chunker) ChunkAll(files []*FileInput) []*Chunk {
	var chunks []*Chunk
	for _, f := range files {
		chunks = append(chunks, c.ChunkFile(f)...)
	}
	return chunks
}

// splitterFor returns the cached splitter for a language, building it on
// first use.
func (c *Chunker) splitterFor(lang Language) *Splitter {
	if s, ok := c.splitters[lang]; ok {
		return s
	}
	s := NewSplitter(lang.Separators(), c.size, c.overlap)
	c.splitters[lang] = s
	return s
}

func baseMetadata(file *FileInput, lang Language) map[string]string {
	source := file.AbsPath
	if source == "" {
		source = file.Path
	}
	return map[string]string{
		MetaSource:    source,
		MetaFileName:  filepath.Base(file.Path),
		MetaExtension: strings.ToLower(filepath.Ext(file.Path)),
		MetaLanguage:  string(lang),
		MetaRelPath:   file.Path,
	}
}

// lineAt returns the 1-indexed line number of the byte at off.
func lineAt(text string, off int) int {
	if off < 0 {
		off = 0
	}
	if off > len(text) {
		off = len(text)
	}
	return 1 + strings.Count(text[:off], "\n")
}

// newChunkID derives a stable, content-addressed chunk ID from the relative
// file path, the chunk's index within the file, and a hash of its content.
//
// Properties:
//   - Unchanged file = unchanged IDs across runs (replacement is idempotent)
//   - Edited chunk content = new ID (stale records never alias fresh ones)
//   - Same content at a different position or in a different file = different ID
func newChunkID(filePath string, index int, content string) string {
	contentHash := sha256.Sum256([]byte(content))
	input := fmt.Sprintf("%s:%d:%s", filePath, index, hex.EncodeToString(contentHash[:])[:16])
	id := sha256.Sum256([]byte(input))
	return hex.EncodeToString(id[:])[:16]
}
