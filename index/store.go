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

	"github.com/poiesic/docqa/core"
)

// Store persists embedded chunks and answers nearest-neighbour queries.
//
// Implementations rank by cosine similarity, break score ties by insertion
// order and return at most k results. An empty store returns an empty result.
type Store interface {
	// Add appends entries in order. All entries must share one dimension.
	Add(ctx context.Context, entries []*core.Entry) error

	// Search returns the k entries most similar to vector.
	Search(ctx context.Context, vector []float32, k int) (core.RetrievalResult, error)

	// Stats reports the number of entries and their dimension.
	Stats(ctx context.Context) (core.Stats, error)

	// Close releases the store's resources.
	Close() error
}

// ValidateEntries checks every entry against the first entry's dimension,
// or against dimension when it is positive.
func ValidateEntries(entries []*core.Entry, dimension int) (int, error) {
	for _, e := range entries {
		if err := core.ValidateEntry(e, dimension); err != nil {
			return 0, err
		}
		if dimension == 0 {
			dimension = e.Embedding.Dimension()
		}
	}
	return dimension, nil
}
