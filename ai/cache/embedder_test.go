package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCache struct {
	mu      sync.Mutex
	entries map[string][]float32
	failGet bool
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]float32)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, false, errors.New("unavailable")
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, vector []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = vector
	return nil
}

func TestEmbedder_EmbedText(t *testing.T) {
	inner := mock.NewMockEmbedder()
	cached, err := NewEmbedder(inner, newMapCache(), "test-model")
	require.NoError(t, err)
	ctx := context.Background()

	first, err := cached.EmbedText(ctx, "who is the developer?")
	require.NoError(t, err)
	second, err := cached.EmbedText(ctx, "who is the developer?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.CallCount())
}

func TestEmbedder_EmbedTexts(t *testing.T) {
	inner := mock.NewMockEmbedder()
	cached, err := NewEmbedder(inner, newMapCache(), "test-model")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = cached.EmbedText(ctx, "b")
	require.NoError(t, err)
	inner.Reset()

	vectors, err := cached.EmbedTexts(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	assert.Equal(t, []string{"a", "c"}, inner.EmbeddedTexts())
	want, _ := mock.NewMockEmbedder().EmbedText(ctx, "c")
	assert.Equal(t, want, vectors[2])
}

func TestEmbedder_ShortBatch(t *testing.T) {
	inner := mock.NewMockEmbedder()
	inner.EmbedTextsFunc = func(_ context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 2}}, nil
	}
	c := newMapCache()
	cached, err := NewEmbedder(inner, c, "m")
	require.NoError(t, err)

	_, err = cached.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	require.ErrorIs(t, err, core.ErrEmbeddingFailure)
	assert.Empty(t, c.entries, "nothing is cached from a short reply")
}

func TestEmbedder_CacheFailureFallsThrough(t *testing.T) {
	inner := mock.NewMockEmbedder()
	c := newMapCache()
	c.failGet = true
	cached, err := NewEmbedder(inner, c, "m")
	require.NoError(t, err)

	vector, err := cached.EmbedText(context.Background(), "x")
	require.NoError(t, err)
	assert.NotEmpty(t, vector)
	assert.Equal(t, 1, inner.CallCount())
}

func TestEmbedder_NamespacesKeys(t *testing.T) {
	c := newMapCache()
	a, err := NewEmbedder(mock.NewMockEmbedder(), c, "model-a")
	require.NoError(t, err)
	b, err := NewEmbedder(mock.NewMockEmbedder(), c, "model-b")
	require.NoError(t, err)

	assert.NotEqual(t, a.key("same"), b.key("same"))
}

func TestNewEmbedder_Required(t *testing.T) {
	_, err := NewEmbedder(nil, newMapCache(), "m")
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewEmbedder(mock.NewMockEmbedder(), nil, "m")
	assert.ErrorIs(t, err, ErrCacheRequired)
}

func TestVectorEncoding(t *testing.T) {
	vector := []float32{0, 1.5, -2.25, 3.4028235e38}
	decoded, err := decodeVector(encodeVector(vector))
	require.NoError(t, err)
	assert.Equal(t, vector, decoded)

	_, err = decodeVector([]byte{1, 2, 3})
	assert.Error(t, err)
}
