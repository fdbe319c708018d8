// Package cache memoizes embeddings so repeated queries and re-ingested
// chunks skip the embedding provider.
package cache

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-crypt/x/blake2b"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

var (
	ErrEmbedderRequired = errors.New("embedder is required")
	ErrCacheRequired    = errors.New("cache is required")
)

// Cache stores vectors by key. Implementations report a miss with ok=false.
type Cache interface {
	Get(ctx context.Context, key string) (vector []float32, ok bool, err error)
	Set(ctx context.Context, key string, vector []float32) error
}

// Embedder decorates an ai.Embedder with a Cache.
// Cache failures are logged and treated as misses; they never fail an embedding.
type Embedder struct {
	next      ai.Embedder
	cache     Cache
	namespace string
	logger    *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder wraps next. namespace separates vectors of different models
// sharing one cache, typically the embedding model name.
func NewEmbedder(next ai.Embedder, cache Cache, namespace string) (*Embedder, error) {
	if next == nil {
		return nil, ErrEmbedderRequired
	}
	if cache == nil {
		return nil, ErrCacheRequired
	}
	return &Embedder{
		next:      next,
		cache:     cache,
		namespace: namespace,
		logger:    slog.Default().With("component", "embedding-cache"),
	}, nil
}

// EmbedText returns the cached vector for text or embeds and stores it.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)
	if vector, ok := e.lookup(ctx, key); ok {
		return vector, nil
	}

	vector, err := e.next.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	e.store(ctx, key, vector)
	return vector, nil
}

// EmbedTexts embeds only the texts missing from the cache, in one batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missing []int
	for i, text := range texts {
		keys[i] = e.key(text)
		if vector, ok := e.lookup(ctx, keys[i]); ok {
			vectors[i] = vector
			continue
		}
		missing = append(missing, i)
	}

	e.logger.Debug("cache lookup", "hits", len(texts)-len(missing), "misses", len(missing))
	if len(missing) == 0 {
		return vectors, nil
	}

	batch := make([]string, len(missing))
	for j, i := range missing {
		batch[j] = texts[i]
	}
	embedded, err := e.next.EmbedTexts(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(embedded) != len(batch) {
		return nil, fmt.Errorf("%w: embedding result mismatch. expected %d, received %d",
			core.ErrEmbeddingFailure, len(batch), len(embedded))
	}
	for j, i := range missing {
		vectors[i] = embedded[j]
		e.store(ctx, keys[i], embedded[j])
	}
	return vectors, nil
}

func (e *Embedder) key(text string) string {
	h, _ := blake2b.New(16, nil)
	h.Write([]byte(text))
	return e.namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

func (e *Embedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	vector, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("cache read failed", "key", key, "err", err)
		return nil, false
	}
	return vector, ok
}

func (e *Embedder) store(ctx context.Context, key string, vector []float32) {
	if err := e.cache.Set(ctx, key, vector); err != nil {
		e.logger.Warn("cache write failed", "key", key, "err", err)
	}
}
