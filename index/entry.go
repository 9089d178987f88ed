// Package index implements the in-memory sorted index (C3) and its builder
// (C2), plus the serialization these share with the streaming reader
// (spec.md §4.2-4.4, §6.1).
package index

import (
	"fmt"

	"github.com/cityjson/flatcitybuf/attrindex/endian"
	"github.com/cityjson/flatcitybuf/attrindex/errs"
)

// Entry is one (key, offsets) pair of a serialized index, framed per
// spec.md §6.1:
//
//	key_len u64 | key_bytes | offset_count u64 | offsets u64[]
//
// Key is the canonical byte encoding produced by key.Encode (fixed-width
// for scalar/temporal tags, variable-width for String); Offsets are the
// byte positions within the feature data block that hold this key's
// matching features, ascending and without duplicates.
type Entry struct {
	Key     []byte
	Offsets []uint64
}

// Size returns the serialized byte length of the entry.
func (e Entry) Size() int {
	return 8 + len(e.Key) + 8 + 8*len(e.Offsets)
}

// WriteTo appends the entry's framed bytes to buf using engine's byte
// order, growing buf as needed.
func (e Entry) WriteTo(buf []byte, engine endian.EndianEngine) []byte {
	buf = engine.AppendUint64(buf, uint64(len(e.Key))) //nolint: gosec
	buf = append(buf, e.Key...)
	buf = engine.AppendUint64(buf, uint64(len(e.Offsets))) //nolint: gosec
	for _, off := range e.Offsets {
		buf = engine.AppendUint64(buf, off)
	}

	return buf
}

// ParseEntry parses one framed entry starting at data[0], returning the
// entry and the number of bytes consumed. It fails with an error wrapping
// both ErrFraming (spec.md §7's taxonomy) and the more specific
// ErrInvalidIndexEntry (which stream.BuildOffsetsTable uses to tell "data
// is truncated because the scan window was too small" apart from other
// framing failures) if data is truncated or declares an implausible
// key_len/offset_count.
func ParseEntry(data []byte, engine endian.EndianEngine) (Entry, int, error) {
	if len(data) < 8 {
		return Entry{}, 0, fmt.Errorf("%w: %w: truncated key_len", errs.ErrFraming, errs.ErrInvalidIndexEntry)
	}

	keyLen := engine.Uint64(data[0:8])
	pos := 8

	if keyLen > uint64(len(data)-pos) { //nolint: gosec
		return Entry{}, 0, fmt.Errorf("%w: %w: key_len %d exceeds remaining data", errs.ErrFraming, errs.ErrInvalidIndexEntry, keyLen)
	}

	key := data[pos : pos+int(keyLen)] //nolint: gosec
	pos += int(keyLen)                 //nolint: gosec

	if len(data)-pos < 8 {
		return Entry{}, 0, fmt.Errorf("%w: %w: truncated offset_count", errs.ErrFraming, errs.ErrInvalidIndexEntry)
	}

	offsetCount := engine.Uint64(data[pos : pos+8])
	pos += 8

	need := int(offsetCount) * 8 //nolint: gosec
	if need < 0 || len(data)-pos < need {
		return Entry{}, 0, fmt.Errorf("%w: %w: offset_count %d exceeds remaining data", errs.ErrFraming, errs.ErrInvalidIndexEntry, offsetCount)
	}

	offsets := make([]uint64, offsetCount)
	for i := range offsets {
		offsets[i] = engine.Uint64(data[pos : pos+8])
		pos += 8
	}

	return Entry{Key: key, Offsets: offsets}, pos, nil
}

// HeaderSize returns the byte length of a framed entry's key_len +
// key_bytes + offset_count prefix, i.e. everything before its offsets
// array. Callers that only need to skip past an entry's framing (the
// offsets_table builder, see stream.BuildOffsetsTable) use this to avoid
// materializing the offsets slice.
func HeaderSize(keyLen uint64) int {
	return 8 + int(keyLen) + 8 //nolint: gosec
}
