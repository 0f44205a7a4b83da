package mcp

import (
	"github.com/codescope/codescope/internal/chunk"
	"github.com/codescope/codescope/internal/search"
)

// toResultOutput converts an engine result to the tool output shape.
func toResultOutput(r search.Result) SearchResultOutput {
	return SearchResultOutput{
		Path:     resultPath(r),
		Language: r.Record.Metadata[chunk.MetaLanguage],
		Score:    r.Score,
		Semantic: r.Semantic,
		Lexical:  r.Lexical,
		Content:  r.Record.Content,
	}
}

// resultPath prefers the repo-relative path and falls back to the source
// path, then the record ID.
func resultPath(r search.Result) string {
	if p := r.Record.Metadata[chunk.MetaRelPath]; p != "" {
		return p
	}
	if p := r.Record.Metadata[chunk.MetaSource]; p != "" {
		return p
	}
	return r.Record.ID
}

// clampLimit ensures limit is within bounds, substituting the default when
// the request leaves it unset.
func clampLimit(limit, defaultVal, min, max int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit < min {
		return min
	}
	if limit > max {
		return max
	}
	return limit
}
