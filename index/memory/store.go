// Package memory provides a process-local index.Store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
)

// Store keeps entries in a slice. It is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	entries   []*core.Entry
	dimension int
}

var _ index.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{}
}

// Add appends entries after validating their dimension.
func (s *Store) Add(_ context.Context, entries []*core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dimension, err := index.ValidateEntries(entries, s.dimension)
	if err != nil {
		return err
	}
	s.dimension = dimension
	s.entries = append(s.entries, entries...)
	return nil
}

// Search scans every entry and returns the k most similar.
func (s *Store) Search(ctx context.Context, vector []float32, k int) (core.RetrievalResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", core.ErrInvalidArgument, k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return core.RetrievalResult{}, nil
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: %w: query has %d, index has %d",
			core.ErrEmbeddingFailure, core.ErrDimensionMismatch, len(vector), s.dimension)
	}

	candidates := make([]core.Ranked, 0, len(s.entries))
	for i, e := range s.entries {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		score, err := core.CosineSimilarity(vector, e.Embedding.Vector)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, core.Ranked{
			ScoredChunk: core.ScoredChunk{Chunk: e.Chunk, Score: score},
			Order:       uint64(i),
		})
	}
	return core.TopK(candidates, k), nil
}

// Stats reports the entry count and dimension.
func (s *Store) Stats(_ context.Context) (core.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Stats{Count: len(s.entries), Dimension: s.dimension}, nil
}

// Close discards all entries.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}
