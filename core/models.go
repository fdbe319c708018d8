package core

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/go-crypt/x/blake2b"
)

type ID uint64

func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID as fixed-width hex, suitable for external stores.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// Chunk is a bounded segment of source text with provenance metadata.
// Chunks are treated as immutable once a loader returns them.
type Chunk struct {
	Text     string
	SourceID string            // File path or URL the chunk was read from
	Seq      int               // Position of the chunk within its source
	Metadata map[string]string // Optional metadata (e.g., "page", "selector")
}

// ID derives a stable identifier from the chunk's provenance and text.
func (c *Chunk) ID() ID {
	return IDFromContent(c.SourceID + "\x00" + strconv.Itoa(c.Seq) + "\x00" + c.Text)
}

type Embedding struct {
	ChunkID ID
	Vector  []float32
}

func (e *Embedding) Dimension() int {
	return len(e.Vector)
}

// Entry is the unit stored by a vector index.
type Entry struct {
	Embedding Embedding
	Chunk     Chunk
}

type ScoredChunk struct {
	Chunk Chunk
	Score float32
}

// RetrievalResult is ordered by descending score.
type RetrievalResult []ScoredChunk

// Chunks returns the chunks of the result in rank order.
func (r RetrievalResult) Chunks() []Chunk {
	chunks := make([]Chunk, len(r))
	for i, sc := range r {
		chunks[i] = sc.Chunk
	}
	return chunks
}

type Answer struct {
	Text    string
	Sources []Chunk
}

// Turn is one question/answer round of a session's history.
type Turn struct {
	Query  string
	Answer string
}

type Stats struct {
	Count     int
	Dimension int
}
