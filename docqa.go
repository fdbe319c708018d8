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

package docqa

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/cache"
	"github.com/poiesic/docqa/ai/openai"
	"github.com/poiesic/docqa/config"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
	"github.com/poiesic/docqa/index/badger"
	"github.com/poiesic/docqa/index/memory"
	"github.com/poiesic/docqa/index/pinecone"
	"github.com/poiesic/docqa/loader"
	"github.com/poiesic/docqa/session"
)

// Assistant wires configuration, AI provider, document loader and index
// backends together.
type Assistant struct {
	config   *config.Config
	provider ai.Provider
	embedder ai.Embedder
	cache    *cache.RedisCache
	loader   *loader.Loader
	progress io.Writer
	pinecone []pinecone.Option
	logger   *slog.Logger
}

// Option configures an Assistant.
type Option func(*assistantOptions)

type assistantOptions struct {
	provider ai.Provider
	progress io.Writer
	pinecone []pinecone.Option
}

// WithProvider uses provider instead of building an OpenAI-compatible one
// from the configuration. The Assistant takes ownership of it.
func WithProvider(provider ai.Provider) Option {
	return func(o *assistantOptions) {
		o.provider = provider
	}
}

// WithProgress reports index build progress to w.
func WithProgress(w io.Writer) Option {
	return func(o *assistantOptions) {
		o.progress = w
	}
}

// WithPineconeOptions passes options to pinecone.Connect.
func WithPineconeOptions(opts ...pinecone.Option) Option {
	return func(o *assistantOptions) {
		o.pinecone = append(o.pinecone, opts...)
	}
}

// New validates cfg and creates an Assistant. Configuration problems are
// reported before any network call. When a Redis URL is configured the
// cache must be reachable.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Assistant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", core.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &assistantOptions{}
	for _, opt := range opts {
		opt(options)
	}

	splitter, err := loader.NewSplitter(cfg.Splitter)
	if err != nil {
		return nil, err
	}
	docs, err := loader.NewLoader(
		loader.WithSplitter(splitter),
		loader.WithSelector(cfg.Web.Selector),
		loader.WithHTTPClient(&http.Client{Timeout: cfg.Web.Timeout}),
	)
	if err != nil {
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(cfg.ProviderConfig())
		if err != nil {
			return nil, err
		}
	}

	a := &Assistant{
		config:   cfg,
		provider: provider,
		embedder: provider.Embedder(),
		loader:   docs,
		progress: options.progress,
		pinecone: options.pinecone,
		logger:   slog.Default().With("component", "assistant"),
	}

	if cfg.Cache.RedisURL != "" {
		rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			provider.Close()
			return nil, err
		}
		cached, err := cache.NewEmbedder(a.embedder, rc, cfg.AI.EmbeddingModel)
		if err != nil {
			rc.Close()
			provider.Close()
			return nil, err
		}
		a.cache = rc
		a.embedder = cached
	}

	return a, nil
}

// Close releases the provider and the cache connection.
func (a *Assistant) Close() error {
	var errs []error
	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
		errs = append(errs, err)
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("error closing embedding cache", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the configuration the Assistant was created with.
func (a *Assistant) Config() *config.Config {
	return a.config
}

// Load reads every source and returns their chunks in source order.
// The first source that fails aborts the load.
func (a *Assistant) Load(ctx context.Context, sources []string) ([]core.Chunk, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no sources given", core.ErrConfiguration)
	}

	var chunks []core.Chunk
	for _, src := range sources {
		loaded, err := a.loader.Load(ctx, src)
		if err != nil {
			return nil, err
		}
		a.logger.Info("loaded source", "source", src, "chunks", len(loaded))
		chunks = append(chunks, loaded...)
	}
	return chunks, nil
}

// Build embeds chunks into a new index on the configured backend.
// The backend is only opened once every chunk is embedded, so a failed
// build leaves a previous local or managed index untouched. A local index
// at the configured path is replaced.
func (a *Assistant) Build(ctx context.Context, chunks []core.Chunk) (*index.VectorIndex, error) {
	opts := []index.Option{
		index.WithPoolSize(a.config.Index.Concurrency),
		index.WithBatchSize(a.config.Index.BatchSize),
	}
	if a.progress != nil {
		opts = append(opts, index.WithProgress(a.progress, 0))
	}
	builder, err := index.NewBuilder(a.embedder, opts...)
	if err != nil {
		return nil, err
	}
	defer builder.Release()

	entries, err := builder.Embed(ctx, chunks)
	if err != nil {
		return nil, err
	}

	store, err := a.createStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Add(ctx, entries); err != nil {
		store.Close()
		return nil, err
	}
	a.logger.Info("index built", "backend", a.config.Index.Backend, "chunks", len(entries))
	return index.FromStore(store, a.embedder), nil
}

// Open attaches to the index of a persistent or managed backend.
func (a *Assistant) Open(ctx context.Context) (*index.VectorIndex, error) {
	var store index.Store
	var err error
	switch a.config.Index.Backend {
	case config.BackendLocal:
		store, err = badger.Open(a.config.Index.Local.Path)
	case config.BackendPinecone:
		store, err = pinecone.Connect(ctx, a.config.Index.Pinecone, a.pinecone...)
	default:
		return nil, fmt.Errorf("%w: the %s backend keeps no index between runs; give at least one source",
			core.ErrConfiguration, a.config.Index.Backend)
	}
	if err != nil {
		return nil, err
	}

	idx, err := index.FromExisting(ctx, store, a.embedder)
	if err != nil {
		store.Close()
		return nil, err
	}
	return idx, nil
}

func (a *Assistant) createStore(ctx context.Context) (index.Store, error) {
	switch a.config.Index.Backend {
	case config.BackendMemory:
		return memory.New(), nil
	case config.BackendLocal:
		return badger.Create(a.config.Index.Local.Path)
	case config.BackendPinecone:
		return pinecone.Connect(ctx, a.config.Index.Pinecone, a.pinecone...)
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", core.ErrConfiguration, a.config.Index.Backend)
	}
}

// Ingest loads sources into a new index on the configured backend and
// reports its size. The index is closed afterwards.
func (a *Assistant) Ingest(ctx context.Context, sources []string) (core.Stats, error) {
	chunks, err := a.Load(ctx, sources)
	if err != nil {
		return core.Stats{}, err
	}
	idx, err := a.Build(ctx, chunks)
	if err != nil {
		return core.Stats{}, err
	}
	defer idx.Close()
	return idx.Stats(ctx)
}

// Stats reports the size of an existing index.
func (a *Assistant) Stats(ctx context.Context) (core.Stats, error) {
	idx, err := a.Open(ctx)
	if err != nil {
		return core.Stats{}, err
	}
	defer idx.Close()
	return idx.Stats(ctx)
}

// NewSession creates a QA session configured from the session section.
// With sources the session builds a fresh index from them; without, it
// attaches to the existing index. opts are applied after the configured ones.
func (a *Assistant) NewSession(sources []string, opts ...session.Option) (*session.Session, error) {
	initialize := func(ctx context.Context) (session.Retriever, error) {
		if len(sources) == 0 {
			return a.Open(ctx)
		}
		chunks, err := a.Load(ctx, sources)
		if err != nil {
			return nil, err
		}
		return a.Build(ctx, chunks)
	}

	cfg := a.config.Session
	styles := session.PlainStyles()
	if cfg.Color {
		styles = session.ColorStyles()
	}
	base := []session.Option{
		session.WithK(cfg.K),
		session.WithSentinel(cfg.Sentinel),
		session.WithShowSources(cfg.ShowSources),
		session.WithHistory(cfg.History),
		session.WithStreaming(cfg.Stream),
		session.WithStyles(styles),
	}
	return session.New(initialize, a.provider.AnswerGenerator(), append(base, opts...)...)
}
