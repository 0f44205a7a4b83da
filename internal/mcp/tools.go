package mcp

import "github.com/codescope/codescope/internal/embed"

// SearchInput defines the input schema for the search_codebase tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query to run against the indexed codebase"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
}

// SearchOutput defines the output schema for the search_codebase tool.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results" jsonschema:"ranked search results"`
}

// SearchResultOutput is a single ranked search result.
type SearchResultOutput struct {
	Path     string  `json:"path" jsonschema:"file path relative to the ingested root"`
	Language string  `json:"language,omitempty" jsonschema:"programming language of the file"`
	Score    float64 `json:"score" jsonschema:"fused relevance score between 0 and 1"`
	Semantic float64 `json:"semantic" jsonschema:"semantic similarity component of the score"`
	Lexical  float64 `json:"lexical" jsonschema:"keyword match component of the score"`
	Content  string  `json:"content" jsonschema:"matched chunk content"`
}

// AskInput defines the input schema for the ask_codebase tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the indexed codebase"`
}

// AskOutput defines the output schema for the ask_codebase tool.
type AskOutput struct {
	Answer string `json:"answer" jsonschema:"markdown answer opening with a Sources section that cites the files it drew from"`
}

// IndexStatusInput defines the input schema for the index_status tool (no parameters).
type IndexStatusInput struct{}

// IndexStatusOutput defines the output schema for the index_status tool.
type IndexStatusOutput struct {
	Records    int        `json:"records" jsonschema:"number of chunks in the index"`
	Backend    string     `json:"backend" jsonschema:"active store backend: local or postgres"`
	Embeddings embed.Info `json:"embeddings" jsonschema:"active embedder description"`
}
