package ai

import (
	"context"

	"github.com/poiesic/docqa/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// AnswerGenerator produces natural-language answers grounded in retrieved chunks.
// Implementations must be thread-safe for concurrent use.
type AnswerGenerator interface {
	// Answer generates a complete answer for question using the retrieved context.
	// Context order is preserved in the prompt. The returned Answer lists the
	// chunks that actually reached the model.
	// Fails with core.ErrGenerationFailure or core.ErrTimeout.
	Answer(ctx context.Context, question string, retrieved core.RetrievalResult, opts ...AnswerOption) (*core.Answer, error)

	// Stream is the incremental form of Answer. The provider call starts when
	// the returned stream is first iterated.
	Stream(ctx context.Context, question string, retrieved core.RetrievalResult, opts ...AnswerOption) *TokenStream
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and AnswerGenerator instances,
// ensuring they share configuration and resources appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// AnswerGenerator returns the answer generation service.
	AnswerGenerator() AnswerGenerator

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
