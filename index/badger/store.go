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

// Package badger provides a persistent index.Store backed by BadgerDB.
package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/index"
)

// Store is an index.Store persisted in a Badger database.
type Store struct {
	backend *Backend
	mu      sync.Mutex // serializes writers
	logger  *slog.Logger
}

var _ index.Store = (*Store)(nil)

// Create opens the database at path, discarding any previous index there.
func Create(path string) (*Store, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}
	return create(backend)
}

// CreateInMemory returns an empty store that lives only in memory.
func CreateInMemory() (*Store, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, err
	}
	return create(backend)
}

func create(backend *Backend) (*Store, error) {
	if err := backend.DropAll(); err != nil {
		backend.Close()
		return nil, err
	}
	return newStore(backend), nil
}

// Open attaches to an index previously written at path.
// It fails with core.ErrIndexNotFound when the directory is missing or
// holds no completed index.
func Open(path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", core.ErrIndexNotFound, path)
	}

	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSourceUnavailable, err)
	}

	s := newStore(backend)
	if _, err := s.readMeta(); err != nil {
		backend.Close()
		return nil, err
	}
	return s, nil
}

func newStore(backend *Backend) *Store {
	return &Store{
		backend: backend,
		logger:  slog.Default().With("component", "badger-store"),
	}
}

// readMeta returns the index header, or core.ErrIndexNotFound if the
// index was never completely written.
func (s *Store) readMeta() (meta, error) {
	var m meta
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(metaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var err error
			m, err = unmarshalMeta(val)
			return err
		})
	}, false)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return meta{}, fmt.Errorf("%w: no completed index", core.ErrIndexNotFound)
	}
	return m, err
}

func (s *Store) writeMeta(m meta) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set([]byte(metaKey), marshalMeta(m)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// Add writes the entries, then advances the header to cover them.
// If Add fails the entries it wrote are deleted again, so a later Add cannot
// expose them by moving the watermark past their keys.
func (s *Store) Add(ctx context.Context, entries []*core.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readMeta()
	if err != nil && !errors.Is(err, core.ErrIndexNotFound) {
		return err
	}

	dimension, err := index.ValidateEntries(entries, m.Dimension)
	if err != nil {
		return err
	}

	seq, err := s.backend.GetSequence(entrySeq)
	if err != nil {
		return err
	}
	defer seq.Release()

	first, last, err := s.writeEntries(ctx, seq, entries)
	if err == nil {
		err = ctx.Err()
	}
	if err == nil {
		m.Dimension = dimension
		m.Count += len(entries)
		m.Watermark = max(m.Watermark, last)
		err = s.writeMeta(m)
	}
	if err != nil {
		s.discard(first, last)
		return err
	}

	s.logger.Debug("added entries", "count", len(entries), "total", m.Count)
	return nil
}

// writeEntries stores entries under consecutive sequence numbers and reports
// the half-open range it allocated, also when it fails part way.
func (s *Store) writeEntries(ctx context.Context, seq *badger.Sequence, entries []*core.Entry) (uint64, uint64, error) {
	wb := s.backend.NewWriteBatch()
	defer wb.Cancel()

	var first, last uint64
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return first, last, err
		}
		n, err := seq.Next()
		if err != nil {
			return first, last, err
		}
		if i == 0 {
			first = n
		}
		last = n + 1
		if err := wb.Set(makeEntryKey(n), marshalEntry(e)); err != nil {
			return first, last, err
		}
	}
	return first, last, wb.Flush()
}

// discard deletes the entry keys in [first, last).
func (s *Store) discard(first, last uint64) {
	if last <= first {
		return
	}
	wb := s.backend.NewWriteBatch()
	defer wb.Cancel()
	for n := first; n < last; n++ {
		if err := wb.Delete(makeEntryKey(n)); err != nil {
			s.logger.Error("failed to discard entries of a failed add", "err", err)
			return
		}
	}
	if err := wb.Flush(); err != nil {
		s.logger.Error("failed to discard entries of a failed add", "err", err)
	}
}

// Search scans the committed entries in insertion order and returns the k most similar.
func (s *Store) Search(ctx context.Context, vector []float32, k int) (core.RetrievalResult, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be >= 1, got %d", core.ErrInvalidArgument, k)
	}

	m, err := s.readMeta()
	if err != nil {
		return nil, err
	}
	if m.Count == 0 {
		return core.RetrievalResult{}, nil
	}
	if len(vector) != m.Dimension {
		return nil, fmt.Errorf("%w: %w: query has %d, index has %d",
			core.ErrEmbeddingFailure, core.ErrDimensionMismatch, len(vector), m.Dimension)
	}

	candidates := make([]core.Ranked, 0, m.Count)
	err = s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := iter.Item()
			n, ok := parseEntryKey(item.Key())
			if !ok || n >= m.Watermark {
				continue
			}

			var entry *core.Entry
			err := item.Value(func(val []byte) error {
				var err error
				entry, err = unmarshalEntry(val)
				return err
			})
			if err != nil {
				return err
			}

			score, err := core.CosineSimilarity(vector, entry.Embedding.Vector)
			if err != nil {
				return err
			}
			candidates = append(candidates, core.Ranked{
				ScoredChunk: core.ScoredChunk{Chunk: entry.Chunk, Score: score},
				Order:       n,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	return core.TopK(candidates, k), nil
}

// Stats reports the committed entry count and dimension.
func (s *Store) Stats(_ context.Context) (core.Stats, error) {
	m, err := s.readMeta()
	if err != nil {
		return core.Stats{}, err
	}
	return core.Stats{Count: m.Count, Dimension: m.Dimension}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}
