// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

// VectorIndex answers text queries against a Store using an Embedder.
type VectorIndex struct {
	store    Store
	embedder ai.Embedder
	logger   *slog.Logger
}

// FromStore wraps store without checking it.
func FromStore(store Store, embedder ai.Embedder) *VectorIndex {
	return &VectorIndex{
		store:    store,
		embedder: embedder,
		logger:   slog.Default().With("component", "vector-index"),
	}
}

// FromExisting attaches to a store that was populated earlier, typically one
// returned by a backend's Open or Connect. The store must be reachable.
func FromExisting(ctx context.Context, store Store, embedder ai.Embedder) (*VectorIndex, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	idx := FromStore(store, embedder)
	idx.logger.Info("attached to existing index", "entries", stats.Count, "dimension", stats.Dimension)
	return idx, nil
}

// Query returns at most k chunks most similar to text, best first.
func (v *VectorIndex) Query(ctx context.Context, text string, k int) (core.RetrievalResult, error) {
	if err := core.ValidateQuery(text, k); err != nil {
		return nil, err
	}

	vector, err := v.embedder.EmbedText(ctx, text)
	if err != nil {
		if !errors.Is(err, core.ErrEmbeddingFailure) {
			err = fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, err)
		}
		return nil, err
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, core.ErrEmptyVector)
	}

	result, err := v.store.Search(ctx, vector, k)
	if err != nil {
		return nil, err
	}
	v.logger.Debug("query", "k", k, "results", len(result))
	return result, nil
}

// Stats reports the size of the underlying store.
func (v *VectorIndex) Stats(ctx context.Context) (core.Stats, error) {
	return v.store.Stats(ctx)
}

// Close closes the underlying store.
func (v *VectorIndex) Close() error {
	return v.store.Close()
}
