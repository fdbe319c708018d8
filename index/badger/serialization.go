package badger

import (
	"fmt"
	"slices"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/docqa/core"
)

// meta is the index header. It is written after the entries it describes,
// so an index without meta was never completely built.
type meta struct {
	Dimension int
	Count     int
	// Watermark is one past the highest committed entry sequence.
	// Entries at or above it belong to an unfinished write and are ignored.
	Watermark uint64
}

func marshalMeta(m meta) []byte {
	size := varint.Int.Size(m.Dimension) + varint.Int.Size(m.Count) + varint.Uint64.Size(m.Watermark)
	bs := make([]byte, size)
	n := varint.Int.Marshal(m.Dimension, bs)
	n += varint.Int.Marshal(m.Count, bs[n:])
	varint.Uint64.Marshal(m.Watermark, bs[n:])
	return bs
}

func unmarshalMeta(bs []byte) (m meta, err error) {
	var n, n1 int
	if m.Dimension, n1, err = varint.Int.Unmarshal(bs); err != nil {
		return meta{}, fmt.Errorf("meta dimension: %w", err)
	}
	n += n1
	if m.Count, n1, err = varint.Int.Unmarshal(bs[n:]); err != nil {
		return meta{}, fmt.Errorf("meta count: %w", err)
	}
	n += n1
	if m.Watermark, _, err = varint.Uint64.Unmarshal(bs[n:]); err != nil {
		return meta{}, fmt.Errorf("meta watermark: %w", err)
	}
	return m, nil
}

// Entry layout: chunk id, source id, seq, text, metadata (count, then sorted
// key/value pairs), vector (length, then raw float32s).

func sizeEntry(e *core.Entry, keys []string) int {
	size := varint.Uint64.Size(uint64(e.Embedding.ChunkID))
	size += ord.String.Size(e.Chunk.SourceID)
	size += varint.Int.Size(e.Chunk.Seq)
	size += ord.String.Size(e.Chunk.Text)
	size += varint.Int.Size(len(keys))
	for _, k := range keys {
		size += ord.String.Size(k) + ord.String.Size(e.Chunk.Metadata[k])
	}
	size += varint.Int.Size(len(e.Embedding.Vector))
	for _, v := range e.Embedding.Vector {
		size += raw.Float32.Size(v)
	}
	return size
}

func marshalEntry(e *core.Entry) []byte {
	keys := make([]string, 0, len(e.Chunk.Metadata))
	for k := range e.Chunk.Metadata {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	bs := make([]byte, sizeEntry(e, keys))
	n := varint.Uint64.Marshal(uint64(e.Embedding.ChunkID), bs)
	n += ord.String.Marshal(e.Chunk.SourceID, bs[n:])
	n += varint.Int.Marshal(e.Chunk.Seq, bs[n:])
	n += ord.String.Marshal(e.Chunk.Text, bs[n:])
	n += varint.Int.Marshal(len(keys), bs[n:])
	for _, k := range keys {
		n += ord.String.Marshal(k, bs[n:])
		n += ord.String.Marshal(e.Chunk.Metadata[k], bs[n:])
	}
	n += varint.Int.Marshal(len(e.Embedding.Vector), bs[n:])
	for _, v := range e.Embedding.Vector {
		n += raw.Float32.Marshal(v, bs[n:])
	}
	return bs
}

// entryDecoder reads fields sequentially and remembers the first error.
type entryDecoder struct {
	bs  []byte
	n   int
	err error
}

func (d *entryDecoder) readInt() int {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *entryDecoder) readUint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *entryDecoder) readString() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

func (d *entryDecoder) readFloat32() float32 {
	if d.err != nil {
		return 0
	}
	v, n, err := raw.Float32.Unmarshal(d.bs[d.n:])
	d.n += n
	d.err = err
	return v
}

// length reads a collection length and rejects values the input cannot hold.
func (d *entryDecoder) length(minElemSize int) int {
	l := d.readInt()
	if d.err == nil && (l < 0 || l*minElemSize > len(d.bs)-d.n) {
		d.err = fmt.Errorf("invalid length %d", l)
	}
	return l
}

func unmarshalEntry(bs []byte) (*core.Entry, error) {
	d := &entryDecoder{bs: bs}
	e := &core.Entry{}
	e.Embedding.ChunkID = core.ID(d.readUint64())
	e.Chunk.SourceID = d.readString()
	e.Chunk.Seq = d.readInt()
	e.Chunk.Text = d.readString()

	if count := d.length(2); d.err == nil && count > 0 {
		e.Chunk.Metadata = make(map[string]string, count)
		for range count {
			k := d.readString()
			e.Chunk.Metadata[k] = d.readString()
		}
	}

	if dim := d.length(4); d.err == nil {
		e.Embedding.Vector = make([]float32, dim)
		for i := range e.Embedding.Vector {
			e.Embedding.Vector[i] = d.readFloat32()
		}
	}

	if d.err != nil {
		return nil, fmt.Errorf("decode entry: %w", d.err)
	}
	return e, nil
}
