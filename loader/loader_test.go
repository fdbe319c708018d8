package loader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poiesic/docqa/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLoader(t *testing.T, opts ...Option) *Loader {
	t.Helper()
	l, err := NewLoader(opts...)
	require.NoError(t, err)
	return l
}

func TestLoader_TextFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "people.txt", "John Doe is a developer.\n\nGeert is a manager.")

	chunks, err := newTestLoader(t).Load(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, path, chunks[0].SourceID)
	assert.Equal(t, 0, chunks[0].Seq)
	assert.Equal(t, path, chunks[0].Metadata[MetaSource])
	assert.Contains(t, chunks[0].Text, "John Doe")
}

func TestLoader_SequencesChunks(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "long.md", strings.Repeat("a sentence of filler words. ", 50))

	splitter, err := NewSplitter(SplitterConfig{ChunkSize: 100, ChunkOverlap: 10})
	require.NoError(t, err)
	chunks, err := newTestLoader(t, WithSplitter(splitter)).Load(context.Background(), path)
	require.NoError(t, err)

	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Seq)
		assert.NoError(t, core.ValidateChunk(&c))
	}
}

func TestLoader_HTMLFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "page.html", "<html><body><h1>Team</h1><p>Geert is a manager.</p></body></html>")

	chunks, err := newTestLoader(t).Load(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Text, "Geert is a manager.")
	assert.NotContains(t, chunks[0].Text, "<p>")
}

func TestLoader_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "second file")
	writeFile(t, dir, "a.txt", "first file")
	writeFile(t, dir, "nested/c.md", "third file")
	writeFile(t, dir, "image.png", "not text")

	chunks, err := newTestLoader(t).Load(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, chunks, 3)
	assert.Equal(t, "first file", chunks[0].Text)
	assert.Equal(t, "second file", chunks[1].Text)
	assert.Equal(t, "third file", chunks[2].Text)
}

func TestLoader_PDFPages(t *testing.T) {
	path := filepath.Join("testdata", "people.pdf")

	chunks, err := newTestLoader(t).Load(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, chunks, 2)
	assert.Contains(t, chunks[0].Text, "Geert Baeke knows some Kubernetes.")
	assert.Equal(t, "1", chunks[0].Metadata[MetaPage])
	assert.Contains(t, chunks[1].Text, "John Doe is a front-end developer.")
	assert.Equal(t, "2", chunks[1].Metadata[MetaPage])
	for i, c := range chunks {
		assert.Equal(t, i, c.Seq, "sequence runs across pages")
		assert.Equal(t, path, c.SourceID)
	}
}

func TestParsePDF(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("testdata", "people.pdf"))
	require.NoError(t, err)

	pages, err := ParsePDF(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, 2, pages[1].Number)
}

func TestLoader_DirectoryFailsFast(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "fine")
	bad := writeFile(t, dir, "b.pdf", "this is not a pdf")
	writeFile(t, dir, "c.txt", "never reached")

	_, err := newTestLoader(t).Load(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrParseFailure)
	assert.Contains(t, err.Error(), bad)
}

func TestLoader_Errors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing path", func(t *testing.T) {
		_, err := newTestLoader(t).Load(context.Background(), filepath.Join(dir, "nope.txt"))
		assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	})

	t.Run("unknown extension", func(t *testing.T) {
		path := writeFile(t, dir, "data.bin", "bytes")
		_, err := newTestLoader(t).Load(context.Background(), path)
		assert.ErrorIs(t, err, core.ErrParseFailure)
	})

	t.Run("empty file", func(t *testing.T) {
		path := writeFile(t, dir, "empty.txt", "   \n")
		_, err := newTestLoader(t).Load(context.Background(), path)
		assert.ErrorIs(t, err, core.ErrParseFailure)
	})
}

func TestLoader_WithParser(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.RST", "ignored")

	upper := func(_ context.Context, data []byte) ([]Page, error) {
		return []Page{{Text: "parsed", Number: 2}}, nil
	}
	chunks, err := newTestLoader(t, WithParser("rst", upper)).Load(context.Background(), path)
	require.NoError(t, err)

	require.Len(t, chunks, 1)
	assert.Equal(t, "parsed", chunks[0].Text)
	assert.Equal(t, "2", chunks[0].Metadata[MetaPage])
}

func TestNewLoader_InvalidOptions(t *testing.T) {
	_, err := NewLoader(WithSplitter(nil))
	assert.ErrorIs(t, err, ErrSplitterRequired)

	_, err = NewLoader(WithParser(".x", nil))
	assert.ErrorIs(t, err, ErrParserRequired)

	_, err = NewLoader(WithSelector(" "))
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

func TestLoader_Web(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/post", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>
<nav>menu</nav>
<div class="entry-content"><p>John Doe is a developer.</p>

<p>Geert is a manager.</p></div>
</body></html>`))
	})
	mux.HandleFunc("/bare", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>nothing selected</p></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	l := newTestLoader(t, WithHTTPClient(srv.Client()))

	t.Run("extracts selected node", func(t *testing.T) {
		chunks, err := l.Load(context.Background(), srv.URL+"/post")
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Contains(t, chunks[0].Text, "John Doe is a developer.")
		assert.NotContains(t, chunks[0].Text, "menu")
		assert.Equal(t, DefaultSelector, chunks[0].Metadata[MetaSelector])
		assert.Equal(t, srv.URL+"/post", chunks[0].SourceID)
	})

	t.Run("selector matches nothing", func(t *testing.T) {
		_, err := l.Load(context.Background(), srv.URL+"/bare")
		assert.ErrorIs(t, err, core.ErrParseFailure)
	})

	t.Run("non 2xx status", func(t *testing.T) {
		_, err := l.Load(context.Background(), srv.URL+"/missing")
		assert.ErrorIs(t, err, core.ErrSourceUnavailable)
	})

	t.Run("custom selector", func(t *testing.T) {
		custom := newTestLoader(t, WithHTTPClient(srv.Client()), WithSelector("nav"))
		chunks, err := custom.Load(context.Background(), srv.URL+"/post")
		require.NoError(t, err)
		assert.Equal(t, "menu", chunks[0].Text)
	})
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a\nb", cleanText("\n a\n\nb \n\n"))
}
