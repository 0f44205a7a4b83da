package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilarityFromDistance(t *testing.T) {
	tests := []struct {
		name     string
		distance float64
		want     float64
	}{
		{name: "identical vectors", distance: 0, want: 1.0},
		{name: "moderate distance", distance: 1, want: 0.5},
		{name: "far distance", distance: 3, want: 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, similarityFromDistance(tt.distance), 1e-9)
		})
	}
}

func TestNormalizeByMax(t *testing.T) {
	t.Run("scales by batch maximum", func(t *testing.T) {
		out := normalizeByMax([]scored{
			{ID: "a", Score: 4},
			{ID: "b", Score: 2},
			{ID: "c", Score: 1},
		})

		require.Len(t, out, 3)
		assert.InDelta(t, 1.0, out[0].Score, 1e-9)
		assert.InDelta(t, 0.5, out[1].Score, 1e-9)
		assert.InDelta(t, 0.25, out[2].Score, 1e-9)
	})

	t.Run("all-zero batch stays zero", func(t *testing.T) {
		out := normalizeByMax([]scored{
			{ID: "a", Score: 0},
			{ID: "b", Score: 0},
		})

		require.Len(t, out, 2)
		assert.Zero(t, out[0].Score)
		assert.Zero(t, out[1].Score)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, normalizeByMax(nil))
	})
}

func TestFuse_WeightedSum(t *testing.T) {
	// A is semantic-only, B is lexical-only, C appears in both.
	semantic := []scored{
		{ID: "A", Score: 0.9},
		{ID: "C", Score: 0.5},
	}
	lexical := []scored{
		{ID: "B", Score: 1.0},
		{ID: "C", Score: 0.5},
	}

	results := fuse(semantic, lexical, Weights{Semantic: 0.7, Lexical: 0.3})

	require.Len(t, results, 3)
	assert.Equal(t, "A", results[0].ID)
	assert.Equal(t, "C", results[1].ID)
	assert.Equal(t, "B", results[2].ID)

	assert.InDelta(t, 0.63, results[0].Score, 1e-9)
	assert.InDelta(t, 0.50, results[1].Score, 1e-9)
	assert.InDelta(t, 0.30, results[2].Score, 1e-9)
}

func TestFuse_MissingComponentScoresZero(t *testing.T) {
	results := fuse(
		[]scored{{ID: "sem-only", Score: 0.8}},
		[]scored{{ID: "lex-only", Score: 0.6}},
		DefaultWeights(),
	)

	require.Len(t, results, 2)

	assert.Equal(t, "sem-only", results[0].ID)
	assert.InDelta(t, 0.8, results[0].Semantic, 1e-9)
	assert.Zero(t, results[0].Lexical)

	assert.Equal(t, "lex-only", results[1].ID)
	assert.Zero(t, results[1].Semantic)
	assert.InDelta(t, 0.6, results[1].Lexical, 1e-9)
}

func TestFuse_TieBreaks(t *testing.T) {
	t.Run("equal fused scores prefer higher semantic", func(t *testing.T) {
		// Both fuse to 0.5 under equal weights; x has the stronger
		// semantic component.
		results := fuse(
			[]scored{{ID: "x", Score: 0.8}, {ID: "y", Score: 0.2}},
			[]scored{{ID: "x", Score: 0.2}, {ID: "y", Score: 0.8}},
			Weights{Semantic: 0.5, Lexical: 0.5},
		)

		require.Len(t, results, 2)
		assert.Equal(t, "x", results[0].ID)
		assert.Equal(t, "y", results[1].ID)
	})

	t.Run("fully tied records order by ID", func(t *testing.T) {
		results := fuse(
			[]scored{{ID: "b", Score: 0.4}, {ID: "a", Score: 0.4}},
			nil,
			DefaultWeights(),
		)

		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "b", results[1].ID)
	})
}

func TestFuse_EmptyInputs(t *testing.T) {
	assert.Empty(t, fuse(nil, nil, DefaultWeights()))
}

func TestFuse_WeightsNeedNotSumToOne(t *testing.T) {
	results := fuse(
		[]scored{{ID: "a", Score: 1.0}},
		[]scored{{ID: "a", Score: 1.0}},
		Weights{Semantic: 1.0, Lexical: 1.0},
	)

	require.Len(t, results, 1)
	assert.InDelta(t, 2.0, results[0].Score, 1e-9)
}
