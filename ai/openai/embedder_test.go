package openai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
)

func TestEmbedder(t *testing.T) {
	client := embeddings.EmbedderClientFunc(func(_ context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = []float32{float32(len(text)), 1}
		}
		return out, nil
	})
	embedder, err := newEmbedderWithClient(client, time.Second)
	require.NoError(t, err)

	t.Run("single text", func(t *testing.T) {
		vector, err := embedder.EmbedText(context.Background(), "abc")
		require.NoError(t, err)
		assert.Equal(t, []float32{3, 1}, vector)
	})

	t.Run("batch preserves order", func(t *testing.T) {
		vectors, err := embedder.EmbedTexts(context.Background(), []string{"a", "bb", "ccc"})
		require.NoError(t, err)
		require.Len(t, vectors, 3)
		assert.Equal(t, float32(1), vectors[0][0])
		assert.Equal(t, float32(3), vectors[2][0])
	})
}

func TestEmbedder_Errors(t *testing.T) {
	t.Run("client failure", func(t *testing.T) {
		client := embeddings.EmbedderClientFunc(func(context.Context, []string) ([][]float32, error) {
			return nil, errors.New("boom")
		})
		embedder, err := newEmbedderWithClient(client, 0)
		require.NoError(t, err)

		_, err = embedder.EmbedText(context.Background(), "abc")
		assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
	})

	t.Run("empty vector", func(t *testing.T) {
		client := embeddings.EmbedderClientFunc(func(_ context.Context, texts []string) ([][]float32, error) {
			return [][]float32{{}}, nil
		})
		embedder, err := newEmbedderWithClient(client, 0)
		require.NoError(t, err)

		_, err = embedder.EmbedText(context.Background(), "abc")
		assert.ErrorIs(t, err, core.ErrEmptyVector)
	})

	t.Run("timeout", func(t *testing.T) {
		client := embeddings.EmbedderClientFunc(func(ctx context.Context, _ []string) ([][]float32, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
		embedder, err := newEmbedderWithClient(client, 10*time.Millisecond)
		require.NoError(t, err)

		_, err = embedder.EmbedTexts(context.Background(), []string{"abc"})
		assert.ErrorIs(t, err, core.ErrTimeout)
	})
}

func TestNewProvider(t *testing.T) {
	t.Run("invalid config", func(t *testing.T) {
		_, err := NewProvider(&ai.Config{})
		assert.ErrorIs(t, err, core.ErrConfiguration)
	})

	t.Run("local host needs no key", func(t *testing.T) {
		provider, err := NewProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")))
		require.NoError(t, err)
		defer provider.Close()

		assert.NotNil(t, provider.Embedder())
		assert.NotNil(t, provider.AnswerGenerator())
	})

	t.Run("strategy spelling is canonicalized", func(t *testing.T) {
		cfg := ai.NewConfig(ai.WithHost("http://localhost:11434"), ai.WithStrategy("Map-Reduce"))
		provider, err := NewProvider(cfg)
		require.NoError(t, err)
		defer provider.Close()

		assert.Equal(t, ai.StrategyMapReduce, cfg.Strategy)
	})
}
