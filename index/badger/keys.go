package badger

import (
	"encoding/binary"
)

// Key prefixes for different data types
const (
	entryPrefix = "entry:"
	entrySeq    = "entryseq"
	metaKey     = "meta"
)

// makeEntryKey generates a key for an entry by insertion sequence.
// BigEndian keeps lexicographic key order equal to insertion order.
func makeEntryKey(seq uint64) []byte {
	buf := make([]byte, len(entryPrefix)+8)
	offset := copy(buf, entryPrefix)
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// parseEntryKey extracts the insertion sequence from an entry key.
func parseEntryKey(key []byte) (uint64, bool) {
	if len(key) != len(entryPrefix)+8 || string(key[:len(entryPrefix)]) != entryPrefix {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[len(entryPrefix):]), true
}
