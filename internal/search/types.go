// Package search ranks indexed records for a query by fusing vector
// similarity from the store with keyword relevance from an in-memory
// lexical index.
//
// Both retrievers contribute a candidate pool; the pools are merged with
// a weighted sum. A record found by only one retriever scores zero on
// the missing component instead of being dropped, so strong single-side
// matches still rank.
package search

import "github.com/codescope/codescope/internal/store"

// Weights controls the relative contribution of each retriever to the
// fused score. The engine does not require them to sum to 1.
type Weights struct {
	// Semantic multiplies the vector similarity component.
	Semantic float64

	// Lexical multiplies the normalized keyword component.
	Lexical float64
}

// DefaultWeights returns the standard 70/30 semantic-lexical split.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.7, Lexical: 0.3}
}

// Result is a single ranked record with its score breakdown.
type Result struct {
	// Record is the matched record, without its embedding.
	Record store.Record

	// Score is the fused ranking score.
	Score float64

	// Semantic is the vector similarity component, 1/(1+distance).
	// Zero when the record was found only by keyword search.
	Semantic float64

	// Lexical is the max-normalized keyword component. Zero when the
	// record was found only by vector search.
	Lexical float64
}
