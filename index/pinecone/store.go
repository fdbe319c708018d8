// Package pinecone provides an index.Store backed by a managed Pinecone index.
//
// Pinecone orders matches by score only, so every vector carries its
// insertion order in metadata and Search re-ranks ties by it.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	upsertBatchSize = 100
	deleteBatchSize = 1000
	defaultTimeout  = 15 * time.Second

	keyText   = "text"
	keySource = "source"
	keySeq    = "seq"
	keyOrder  = "order"
	keyMeta   = "meta."
)

// Store is an index.Store over a Pinecone index namespace.
type Store struct {
	conn    Conn
	timeout time.Duration
	// next is the insertion order assigned to the next added entry.
	next   int
	logger *slog.Logger
}

var _ index.Store = (*Store)(nil)

type connectOptions struct {
	dial Dialer
}

// Option configures Connect.
type Option func(*connectOptions)

// WithDialer replaces DialSDK.
func WithDialer(d Dialer) Option {
	return func(o *connectOptions) {
		o.dial = d
	}
}

// Connect validates cfg, then dials the index and reads its size.
// An invalid config fails with core.ErrConfiguration before the client is
// constructed. A missing index fails with core.ErrIndexNotFound.
func Connect(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := connectOptions{dial: DialSDK}
	for _, opt := range opts {
		opt(&o)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	s := &Store{
		timeout: timeout,
		logger:  slog.Default().With("component", "pinecone-store", "index", cfg.IndexName),
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	conn, err := o.dial(dialCtx, cfg)
	if err != nil {
		return nil, err
	}
	s.conn = conn

	stats, err := s.Stats(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	s.next = stats.Count
	s.logger.Info("connected", "namespace", cfg.Namespace, "vectors", stats.Count, "dimension", stats.Dimension)
	return s, nil
}

// Add upserts entries in batches. If a batch fails, the vectors of the
// batches before it are deleted again and the error is returned.
func (s *Store) Add(ctx context.Context, entries []*core.Entry) error {
	if _, err := index.ValidateEntries(entries, 0); err != nil {
		return err
	}

	var written []string
	for start := 0; start < len(entries); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(entries))
		vectors := make([]*pinecone.Vector, 0, end-start)
		for i, e := range entries[start:end] {
			v, err := toVector(e, s.next+start+i)
			if err != nil {
				return s.rollback(ctx, written, fmt.Errorf("%w: %w", core.ErrInvalidChunk, err))
			}
			vectors = append(vectors, v)
		}

		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.conn.Upsert(callCtx, vectors)
		cancel()
		if err != nil {
			return s.rollback(ctx, written, fmt.Errorf("%w: pinecone upsert: %w", core.ErrSourceUnavailable, err))
		}
		for _, v := range vectors {
			written = append(written, v.Id)
		}
		s.logger.Debug("upserted batch", "size", len(vectors))
	}
	s.next += len(entries)
	return nil
}

// rollback deletes the vectors a failed Add already wrote. It runs even if
// ctx is done.
func (s *Store) rollback(ctx context.Context, ids []string, cause error) error {
	if len(ids) == 0 {
		return cause
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	for start := 0; start < len(ids); start += deleteBatchSize {
		end := min(start+deleteBatchSize, len(ids))
		if err := s.conn.Delete(ctx, ids[start:end]); err != nil {
			s.logger.Error("failed to remove vectors of a failed add", "vectors", len(ids)-start, "err", err)
			return errors.Join(cause, fmt.Errorf("pinecone rollback: %w", err))
		}
	}
	s.logger.Warn("removed vectors of a failed add", "vectors", len(ids))
	return cause
}

func toVector(e *core.Entry, order int) (*pinecone.Vector, error) {
	fields := map[string]any{
		keyText:   e.Chunk.Text,
		keySource: e.Chunk.SourceID,
		keySeq:    e.Chunk.Seq,
		keyOrder:  order,
	}
	for k, v := range e.Chunk.Metadata {
		fields[keyMeta+k] = v
	}
	metadata, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	return &pinecone.Vector{
		Id:       e.Embedding.ChunkID.String(),
		Values:   e.Embedding.Vector,
		Metadata: metadata,
	}, nil
}

// Search queries the index for the k nearest vectors.
func (s *Store) Search(ctx context.Context, vec []float32, k int) (core.RetrievalResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", core.ErrInvalidArgument, k)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	matches, err := s.conn.Query(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: pinecone query: %w", core.ErrSourceUnavailable, err)
	}

	candidates := make([]core.Ranked, 0, len(matches))
	for _, m := range matches {
		if m == nil || m.Vector == nil {
			continue
		}
		chunk, order := fromMetadata(m.Vector.Metadata)
		candidates = append(candidates, core.Ranked{
			ScoredChunk: core.ScoredChunk{Chunk: chunk, Score: m.Score},
			Order:       order,
		})
	}
	return core.TopK(candidates, k), nil
}

func fromMetadata(md *structpb.Struct) (core.Chunk, uint64) {
	var chunk core.Chunk
	var order uint64
	for k, v := range md.AsMap() {
		switch {
		case k == keyText:
			chunk.Text, _ = v.(string)
		case k == keySource:
			chunk.SourceID, _ = v.(string)
		case k == keySeq:
			if f, ok := v.(float64); ok {
				chunk.Seq = int(f)
			}
		case k == keyOrder:
			if f, ok := v.(float64); ok {
				order = uint64(f)
			}
		case strings.HasPrefix(k, keyMeta):
			if chunk.Metadata == nil {
				chunk.Metadata = make(map[string]string)
			}
			chunk.Metadata[strings.TrimPrefix(k, keyMeta)] = fmt.Sprint(v)
		}
	}
	return chunk, order
}

// Stats reports the vector count of the namespace and the index dimension.
func (s *Store) Stats(ctx context.Context) (core.Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	stats, err := s.conn.Stats(ctx)
	if err != nil {
		return core.Stats{}, fmt.Errorf("%w: pinecone stats: %w", core.ErrSourceUnavailable, err)
	}
	return stats, nil
}

// Close closes the data-plane connection.
func (s *Store) Close() error {
	return s.conn.Close()
}
