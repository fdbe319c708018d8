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

package core

import (
	"fmt"
	"strings"
)

func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}

	if strings.TrimSpace(chunk.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyText)
	}

	if chunk.SourceID == "" {
		return fmt.Errorf("%w: source id is empty", ErrInvalidChunk)
	}

	if chunk.Seq < 0 {
		return fmt.Errorf("%w: negative sequence index %d", ErrInvalidChunk, chunk.Seq)
	}

	return nil
}

func ValidateEntry(entry *Entry, dimension int) error {
	if entry == nil {
		return fmt.Errorf("%w: entry is nil", ErrInvalidArgument)
	}

	if err := ValidateChunk(&entry.Chunk); err != nil {
		return err
	}

	if entry.Embedding.Dimension() == 0 {
		return fmt.Errorf("%w: %w", ErrEmbeddingFailure, ErrEmptyVector)
	}

	if dimension > 0 && entry.Embedding.Dimension() != dimension {
		return fmt.Errorf("%w: %w: got %d, index has %d",
			ErrEmbeddingFailure, ErrDimensionMismatch, entry.Embedding.Dimension(), dimension)
	}

	return nil
}

// ValidateQuery checks the arguments of a nearest-neighbour query.
func ValidateQuery(text string, k int) error {
	if k < 1 {
		return fmt.Errorf("%w: k must be >= 1, got %d", ErrInvalidArgument, k)
	}

	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, ErrEmptyText)
	}

	return nil
}
