package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder records how many texts reached the service.
type countingEmbedder struct {
	calls  int
	texts  int
	failed bool
}

func (f *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	f.texts += len(texts)
	if f.failed {
		return nil, assert.AnError
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		vecs[i] = []float32{float32(len(t)), 0, 0}
	}
	return vecs, nil
}

func (f *countingEmbedder) Warmup(context.Context) error { return nil }
func (f *countingEmbedder) Dimensions() int              { return 3 }
func (f *countingEmbedder) ModelName() string            { return "fake" }
func (f *countingEmbedder) Close() error                 { return nil }

func TestCachedEmbedderSkipsRepeats(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 16)

	_, err := c.EmbedBatch(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.texts)

	vecs, err := c.EmbedBatch(context.Background(), []string{"alpha", "gamma", "beta"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, 3, inner.texts, "only the miss goes to the service")
	assert.Equal(t, []float32{5, 0, 0}, vecs[0])
	assert.Equal(t, []float32{5, 0, 0}, vecs[1])
}

func TestCachedEmbedderFailurePopulatesNothing(t *testing.T) {
	inner := &countingEmbedder{failed: true}
	c := NewCachedEmbedder(inner, 16)

	_, err := c.EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)

	inner.failed = false
	_, err = c.EmbedBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls, "the failed text was not cached")
}

func TestCachedEmbedderZeroCapacityPassthrough(t *testing.T) {
	inner := &countingEmbedder{}
	c := NewCachedEmbedder(inner, 0)
	assert.Same(t, Embedder(inner), c)
}
