package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(text string, seq int, vector ...float32) *core.Entry {
	c := core.Chunk{Text: text, SourceID: "src", Seq: seq}
	return &core.Entry{Embedding: core.Embedding{ChunkID: c.ID(), Vector: vector}, Chunk: c}
}

func TestStore_Search(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Add(ctx, []*core.Entry{
		entry("x axis", 0, 1, 0),
		entry("diagonal", 1, 1, 1),
		entry("y axis", 2, 0, 1),
	}))

	result, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "x axis", result[0].Chunk.Text)
	assert.InDelta(t, 1.0, result[0].Score, 1e-6)
	assert.Equal(t, "diagonal", result[1].Chunk.Text)
}

func TestStore_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Add(ctx, []*core.Entry{
		entry("first", 0, 1, 0),
		entry("second", 1, 2, 0),
		entry("third", 2, 3, 0),
	}))

	result, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{result[0].Chunk.Text, result[1].Chunk.Text, result[2].Chunk.Text})
}

func TestStore_Empty(t *testing.T) {
	result, err := New().Search(context.Background(), []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestStore_DimensionChecks(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Add(ctx, []*core.Entry{entry("a", 0, 1, 0)}))

	err := s.Add(ctx, []*core.Entry{entry("b", 1, 1, 0, 0)})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	_, err = s.Search(ctx, []float32{1, 0, 0}, 1)
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Stats{Count: 1, Dimension: 2}, stats)
}

func TestStore_ConcurrentSearch(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Add(ctx, []*core.Entry{entry("a", 0, 1, 0), entry("b", 1, 0, 1)}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := s.Search(ctx, []float32{0, 1}, 1)
			assert.NoError(t, err)
			assert.Equal(t, "b", result[0].Chunk.Text)
		}()
	}
	wg.Wait()
}
