package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps the static embedder and records provider calls.
type countingEmbedder struct {
	inner      *StaticEmbedder
	embedCalls int
	batchCalls int
	lastBatch  []string
}

func newCountingEmbedder() *countingEmbedder {
	return &countingEmbedder{inner: NewStaticEmbedder()}
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls++
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchCalls++
	c.lastBatch = append([]string(nil), texts...)
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int                    { return c.inner.Dimensions() }
func (c *countingEmbedder) ModelName() string                  { return c.inner.ModelName() }
func (c *countingEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }
func (c *countingEmbedder) Close() error                       { return c.inner.Close() }

func TestCachedEmbedder_RepeatedQueryHitsCache(t *testing.T) {
	counting := newCountingEmbedder()
	cached := NewCachedEmbedder(counting, 16)
	defer func() { _ = cached.Close() }()

	first, err := cached.Embed(context.Background(), "how does ingestion work")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "how does ingestion work")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, counting.embedCalls)
}

func TestCachedEmbedder_BatchOnlySendsMisses(t *testing.T) {
	counting := newCountingEmbedder()
	cached := NewCachedEmbedder(counting, 16)
	defer func() { _ = cached.Close() }()

	_, err := cached.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)

	results, err := cached.EmbedBatch(context.Background(), []string{"beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Only the unseen text reaches the provider on the second call.
	assert.Equal(t, 2, counting.batchCalls)
	assert.Equal(t, []string{"gamma"}, counting.lastBatch)
}

func TestCachedEmbedder_FullyCachedBatchSkipsProvider(t *testing.T) {
	counting := newCountingEmbedder()
	cached := NewCachedEmbedder(counting, 16)
	defer func() { _ = cached.Close() }()

	_, err := cached.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	_, err = cached.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)

	assert.Equal(t, 1, counting.batchCalls)
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	counting := newCountingEmbedder()
	cached := NewCachedEmbedder(counting, 16)

	assert.Equal(t, StaticDimensions, cached.Dimensions())
	assert.Equal(t, "static", cached.ModelName())
	assert.True(t, cached.Available(context.Background()))
	assert.Same(t, Embedder(counting), cached.Inner())

	require.NoError(t, cached.Close())
	assert.False(t, cached.Available(context.Background()))
}

func TestCachedEmbedder_DefaultSizeWhenInvalid(t *testing.T) {
	cached := NewCachedEmbedder(newCountingEmbedder(), 0)
	defer func() { _ = cached.Close() }()

	vec, err := cached.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Len(t, vec, StaticDimensions)
}
