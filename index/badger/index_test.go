package badger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildThenReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index")
	embedder := mock.NewKeywordEmbedder("developer", "manager", "john", "geert")

	builder, err := index.NewBuilder(embedder)
	require.NoError(t, err)
	defer builder.Release()

	store, err := Create(path)
	require.NoError(t, err)
	_, err = builder.Build(ctx, store, []core.Chunk{
		{Text: "Geert is a manager.", SourceID: "people.txt", Seq: 0},
		{Text: "John Doe is a developer.", SourceID: "people.txt", Seq: 1},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	idx, err := index.FromExisting(ctx, reopened, embedder)
	require.NoError(t, err)
	defer idx.Close()

	result, err := idx.Query(ctx, "Who is the developer?", 2)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "John Doe is a developer.", result[0].Chunk.Text)
}

func TestFailedBuildLeavesNoIndex(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index")

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("quota exceeded")
	}
	builder, err := index.NewBuilder(embedder)
	require.NoError(t, err)
	defer builder.Release()

	store, err := Create(path)
	require.NoError(t, err)
	_, err = builder.Build(ctx, store, []core.Chunk{{Text: "a", SourceID: "s"}})
	assert.ErrorIs(t, err, core.ErrEmbeddingFailure)
	require.NoError(t, store.Close())

	_, err = Open(path)
	assert.ErrorIs(t, err, core.ErrIndexNotFound)
}
