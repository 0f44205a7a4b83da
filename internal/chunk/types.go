package chunk

import (
	"time"
)

// Chunk size defaults. Character-budgeted: the splitter measures runes, not
// bytes, so multi-byte source text does not change chunk boundaries.
const (
	DefaultChunkSize    = 1000 // characters per chunk
	DefaultChunkOverlap = 200  // characters shared between neighboring chunks
)

// Chunk is one retrievable segment of a source file.
type Chunk struct {
	ID        string            // sha256(path:index:content-hash), first 16 hex chars
	FilePath  string            // relative to the repository root
	Content   string            // exact substring of the source text
	Language  Language          // derived from the file extension
	Index     int               // position within the file's chunk sequence
	StartLine int               // 1-indexed
	EndLine   int               // inclusive
	Metadata  map[string]string // see the Meta* keys
	CreatedAt time.Time
}

// FileInput is a loaded source file ready for chunking and extraction.
type FileInput struct {
	Path     string   // relative to the repository root
	AbsPath  string   // absolute path on disk; recorded as the source metadata field
	Content  []byte   // file text, decoded to UTF-8
	Language Language // derived from Path when empty
}

// Metadata keys attached to chunks. The entity keys are only present on
// chunks whose file produced entities.
const (
	MetaSource          = "source"                // absolute file path
	MetaFileName        = "filename"              // base name
	MetaExtension       = "extension"             // lowercased, with dot
	MetaLanguage        = "language"              // Language tag
	MetaRelPath         = "relative_path"         // repo-relative path
	MetaEntities        = "code_entities"         // JSON-serialized []Entity
	MetaEntityCount     = "entity_count"          // decimal count
	MetaHasIntelligence = "has_code_intelligence" // "true" when entities attached
)

// EntityKind distinguishes the declaration kinds surfaced to retrieval.
type EntityKind string

const (
	EntityFunction EntityKind = "function"
	EntityClass    EntityKind = "class"
)

// Entity is a named declaration extracted from a source file. Line spans are
// 1-indexed and inclusive.
type Entity struct {
	Kind      EntityKind `json:"type"`
	Name      string     `json:"name"`
	StartLine int        `json:"start_line"`
	EndLine   int        `json:"end_line"`
	FilePath  string     `json:"file_path"`
}

// Tree represents a parsed AST
type Tree struct {
	Root     *Node
	Source   []byte
	Language Language
}

// Node represents a node in the AST
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point represents a position in the source code
type Point struct {
	Row    uint32 // 0-indexed line number
	Column uint32
}
