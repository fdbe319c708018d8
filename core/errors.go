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

import "errors"

// Error categories. Every error returned by docqa components wraps exactly one
// of these so callers can decide with errors.Is whether a failure is fatal.
var (
	// ErrConfiguration indicates missing or invalid setup. Always reported
	// before any I/O is attempted.
	ErrConfiguration = errors.New("configuration error")

	// ErrSourceUnavailable indicates a document or backing store could not be reached or read.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrParseFailure indicates content could not be decoded into text.
	ErrParseFailure = errors.New("parse failure")

	// ErrIndexNotFound indicates the named index does not exist.
	ErrIndexNotFound = errors.New("index not found")

	// ErrEmbeddingFailure indicates the embedding provider failed.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrGenerationFailure indicates the answer generator failed.
	ErrGenerationFailure = errors.New("generation failure")

	// ErrTimeout indicates a provider did not respond in time.
	ErrTimeout = errors.New("timeout")

	// ErrInvalidArgument indicates caller misuse.
	ErrInvalidArgument = errors.New("invalid argument")
)

var (
	// ErrDimensionMismatch indicates vectors of different lengths were mixed.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyText indicates a chunk or query has no text.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrEmptyVector indicates an embedding has no components.
	ErrEmptyVector = errors.New("vector cannot be empty")
)
