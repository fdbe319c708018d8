package docqa

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.AI.Host = "http://localhost:11434/v1"
	cfg.Index.Local.Path = filepath.Join(t.TempDir(), "index")
	return cfg
}

func writeDocs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geert.txt"), []byte("Geert Baeke knows some Kubernetes."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "john.txt"), []byte("John Doe is a front-end developer."), 0o644))
	return dir
}

func newProvider() *mock.MockProvider {
	generator := mock.NewMockGenerator()
	generator.AnswerFunc = func(_ context.Context, _ string, retrieved core.RetrievalResult, _ ai.AnswerOptions) (*core.Answer, error) {
		if len(retrieved) > 0 && strings.Contains(retrieved[0].Chunk.Text, "John Doe") {
			return &core.Answer{Text: "John Doe", Sources: retrieved.Chunks()}, nil
		}
		return &core.Answer{Text: "I don't know."}, nil
	}
	embedder := mock.NewKeywordEmbedder("developer", "kubernetes", "john", "geert")
	return mock.NewMockProviderWithServices(embedder, generator)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.Backend = config.BackendPinecone

	_, err := New(context.Background(), cfg, WithProvider(newProvider()))
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = New(context.Background(), nil)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestAssistant_Close(t *testing.T) {
	provider := newProvider()
	a, err := New(context.Background(), testConfig(t), WithProvider(provider))
	require.NoError(t, err)

	require.NoError(t, a.Close())
	assert.True(t, provider.Closed())
}

func TestAssistant_SessionOverSources(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Session.K = 2
	cfg.Session.ShowSources = true

	a, err := New(ctx, cfg, WithProvider(newProvider()))
	require.NoError(t, err)
	defer a.Close()

	var out bytes.Buffer
	s, err := a.NewSession([]string{writeDocs(t)},
		session.WithInput(strings.NewReader("Who is the developer?\nQUIT\n")),
		session.WithOutput(&out),
	)
	require.NoError(t, err)
	require.NoError(t, s.Run(ctx))

	assert.Contains(t, out.String(), "John Doe\nSources:\n[1] ")
	assert.Contains(t, out.String(), "john.txt: John Doe is a front-end developer.")
	assert.Contains(t, out.String(), "geert.txt: Geert Baeke knows some Kubernetes.")
}

func TestAssistant_IngestThenAttach(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Index.Backend = config.BackendLocal

	a, err := New(ctx, cfg, WithProvider(newProvider()))
	require.NoError(t, err)
	defer a.Close()

	stats, err := a.Ingest(ctx, []string{writeDocs(t)})
	require.NoError(t, err)
	assert.Equal(t, core.Stats{Count: 2, Dimension: 4}, stats)

	stats, err = a.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Count)

	var out bytes.Buffer
	s, err := a.NewSession(nil,
		session.WithInitialQueries("Who is the developer?"),
		session.WithBatch(true),
		session.WithOutput(&out),
	)
	require.NoError(t, err)
	require.NoError(t, s.Run(ctx))
	assert.Equal(t, "John Doe\n", out.String())
}

func TestAssistant_FailedRebuildKeepsIndex(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Index.Backend = config.BackendLocal
	docs := writeDocs(t)

	good, err := New(ctx, cfg, WithProvider(newProvider()))
	require.NoError(t, err)
	defer good.Close()
	_, err = good.Ingest(ctx, []string{docs})
	require.NoError(t, err)

	embedder := mock.NewKeywordEmbedder("developer", "kubernetes", "john", "geert")
	embedder.EmbedTextsFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("provider down")
	}
	broken, err := New(ctx, cfg, WithProvider(mock.NewMockProviderWithServices(embedder, mock.NewMockGenerator())))
	require.NoError(t, err)
	defer broken.Close()

	_, err = broken.Ingest(ctx, []string{docs})
	require.ErrorIs(t, err, core.ErrEmbeddingFailure)

	stats, err := good.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.Stats{Count: 2, Dimension: 4}, stats)
}

func TestAssistant_AttachWithoutIndex(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig(t)
	cfg.Index.Backend = config.BackendLocal
	a, err := New(ctx, cfg, WithProvider(newProvider()))
	require.NoError(t, err)
	defer a.Close()

	s, err := a.NewSession(nil, session.WithOutput(&bytes.Buffer{}))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Run(ctx), core.ErrIndexNotFound)
	assert.Equal(t, session.Closed, s.State())

	memoryCfg := testConfig(t)
	m, err := New(ctx, memoryCfg, WithProvider(newProvider()))
	require.NoError(t, err)
	defer m.Close()
	_, err = m.Open(ctx)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestAssistant_LoadFailures(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), WithProvider(newProvider()))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Load(ctx, nil)
	assert.ErrorIs(t, err, core.ErrConfiguration)

	_, err = a.Load(ctx, []string{writeDocs(t), filepath.Join(t.TempDir(), "missing.txt")})
	assert.ErrorIs(t, err, core.ErrSourceUnavailable)
}

func TestAssistant_BuildProgress(t *testing.T) {
	ctx := context.Background()
	var progress bytes.Buffer
	a, err := New(ctx, testConfig(t), WithProvider(newProvider()), WithProgress(&progress))
	require.NoError(t, err)
	defer a.Close()

	chunks, err := a.Load(ctx, []string{writeDocs(t)})
	require.NoError(t, err)
	idx, err := a.Build(ctx, chunks)
	require.NoError(t, err)
	defer idx.Close()

	assert.Contains(t, progress.String(), "2/2 chunks")
}
