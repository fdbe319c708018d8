package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

const (
	defaultBatchSize      = 32
	defaultReportInterval = 50
)

// Builder embeds chunks in parallel and writes them to a Store.
type Builder struct {
	embedder       ai.Embedder
	pool           *ants.Pool
	batchSize      int
	progress       io.Writer
	reportInterval int
	logger         *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder) error

// WithPoolSize sets the number of concurrent embedding requests.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			size = 1
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if b.pool != nil {
			b.pool.Release()
		}
		b.pool = pool
		return nil
	}
}

// WithBatchSize sets the number of chunks sent per embedding request.
func WithBatchSize(size int) Option {
	return func(b *Builder) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size must be positive, got %d", core.ErrConfiguration, size)
		}
		b.batchSize = size
		return nil
	}
}

// WithProgress reports embedding progress to w every interval chunks.
// An interval below 1 keeps the default.
func WithProgress(w io.Writer, interval int) Option {
	return func(b *Builder) error {
		b.progress = w
		if interval > 0 {
			b.reportInterval = interval
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger
		return nil
	}
}

// NewBuilder creates a Builder that embeds with embedder.
// Call Release when done.
func NewBuilder(embedder ai.Embedder, opts ...Option) (*Builder, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := max(runtime.NumCPU()/2, 1)
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	b := &Builder{
		embedder:       embedder,
		pool:           pool,
		batchSize:      defaultBatchSize,
		reportInterval: defaultReportInterval,
		logger:         slog.Default().With("component", "index-builder"),
	}

	for _, opt := range opts {
		if optErr := opt(b); optErr != nil {
			b.Release()
			return nil, optErr
		}
	}
	return b, nil
}

// Build embeds every chunk and adds the entries to store in chunk order.
//
// Nothing is written unless every embedding succeeds. Any embedding error,
// empty vector or dimension disagreement fails with core.ErrEmbeddingFailure.
func (b *Builder) Build(ctx context.Context, store Store, chunks []core.Chunk) (*VectorIndex, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	entries, err := b.Embed(ctx, chunks)
	if err != nil {
		return nil, err
	}
	if err := store.Add(ctx, entries); err != nil {
		return nil, err
	}
	return FromStore(store, b.embedder), nil
}

// Embed embeds every chunk and returns the entries in chunk order without
// touching any store. Callers that must not disturb an existing index until
// the new one is complete embed first and open the store afterwards.
func (b *Builder) Embed(ctx context.Context, chunks []core.Chunk) ([]*core.Entry, error) {
	for i := range chunks {
		if err := core.ValidateChunk(&chunks[i]); err != nil {
			return nil, fmt.Errorf("%w: chunk %d: %w", core.ErrInvalidArgument, i, err)
		}
	}

	vectors, err := b.embedAll(ctx, chunks)
	if err != nil {
		return nil, err
	}

	entries := make([]*core.Entry, len(chunks))
	for i := range chunks {
		entries[i] = &core.Entry{
			Embedding: core.Embedding{ChunkID: chunks[i].ID(), Vector: vectors[i]},
			Chunk:     chunks[i],
		}
	}
	dimension, err := ValidateEntries(entries, 0)
	if err != nil {
		return nil, err
	}
	b.logger.Info("chunks embedded", "chunks", len(entries), "dimension", dimension)
	return entries, nil
}

// embedAll embeds chunks in batches on the pool. The first failure cancels
// the remaining batches.
func (b *Builder) embedAll(ctx context.Context, chunks []core.Chunk) ([][]float32, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tracker *ProgressTracker
	if b.progress != nil {
		tracker = NewProgressTracker(b.progress, len(chunks), b.reportInterval)
		tracker.Start()
	}

	vectors := make([][]float32, len(chunks))
	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	fail := func(err error) {
		errOnce.Do(func() {
			firstErr = err
			cancel()
		})
	}

	for start := 0; start < len(chunks); start += b.batchSize {
		end := min(start+b.batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Text)
		}

		wg.Add(1)
		submitErr := b.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			batch, err := b.embedder.EmbedTexts(ctx, texts)
			if err != nil {
				fail(err)
				return
			}
			if len(batch) != len(texts) {
				fail(fmt.Errorf("embedding result mismatch. expected %d, received %d", len(texts), len(batch)))
				return
			}
			copy(vectors[start:end], batch)
			if tracker != nil {
				tracker.Increment(len(batch))
			}
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
			break
		}
	}
	wg.Wait()

	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	if firstErr != nil {
		b.logger.Error("embedding failed", "err", firstErr)
		if errors.Is(firstErr, core.ErrEmbeddingFailure) {
			return nil, firstErr
		}
		return nil, fmt.Errorf("%w: %w", core.ErrEmbeddingFailure, firstErr)
	}

	if tracker != nil {
		tracker.Finish()
	}
	return vectors, nil
}

// Release releases the worker pool.
// The builder should not be used after calling Release.
func (b *Builder) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}
