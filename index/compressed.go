package index

import (
	"fmt"

	"github.com/cityjson/flatcitybuf/attrindex/compress"
	"github.com/cityjson/flatcitybuf/attrindex/endian"
	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/format"
)

// ParseCompressedIndex parses the region following a single-index header
// when it was written by Builder.finishCompressed (SPEC_FULL §5.1): a
// compression-type byte, the compressed key_bytes block, then one
// key_len/offset_count/offsets triple per entry addressing into that
// decompressed block instead of carrying key bytes inline.
//
// The returned Index is fully materialized; compressed string indices
// forfeit binary search, so stream.Reader falls back to a full scan built
// from this function rather than BuildOffsetsTable.
func ParseCompressedIndex(data []byte, tag format.TypeTag, count uint64, engine endian.EndianEngine) (*Index, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: %w: truncated compression tag", errs.ErrFraming, errs.ErrInvalidIndexEntry)
	}

	ct := format.CompressionType(data[0])
	pos := 1

	if len(data)-pos < 16 {
		return nil, fmt.Errorf("%w: %w: truncated key block header", errs.ErrFraming, errs.ErrInvalidIndexEntry)
	}

	keyBlockLen := engine.Uint64(data[pos : pos+8])
	pos += 8

	compressedLen := engine.Uint64(data[pos : pos+8])
	pos += 8

	if uint64(len(data)-pos) < compressedLen { //nolint: gosec
		return nil, fmt.Errorf("%w: %w: compressed block %d exceeds remaining data", errs.ErrFraming, errs.ErrInvalidIndexEntry, compressedLen)
	}

	compressed := data[pos : pos+int(compressedLen)] //nolint: gosec
	pos += int(compressedLen)                        //nolint: gosec

	codec, err := compress.GetCodec(ct)
	if err != nil {
		return nil, err
	}

	keyBlock, err := codec.Decompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress key block: %w", err)
	}

	if uint64(len(keyBlock)) != keyBlockLen {
		return nil, fmt.Errorf("%w: %w: decompressed key block size %d, expected %d",
			errs.ErrFraming, errs.ErrInvalidIndexEntry, len(keyBlock), keyBlockLen)
	}

	entries := make([]Entry, 0, count)
	keyPos := 0

	for i := uint64(0); i < count; i++ {
		if len(data)-pos < 8 {
			return nil, fmt.Errorf("%w: %w: truncated key_len in entry %d", errs.ErrFraming, errs.ErrInvalidIndexEntry, i)
		}

		keyLen := engine.Uint64(data[pos : pos+8])
		pos += 8

		if keyLen > uint64(len(keyBlock)-keyPos) { //nolint: gosec
			return nil, fmt.Errorf("%w: %w: entry %d key_len exceeds key block", errs.ErrFraming, errs.ErrInvalidIndexEntry, i)
		}

		key := keyBlock[keyPos : keyPos+int(keyLen)] //nolint: gosec
		keyPos += int(keyLen)                        //nolint: gosec

		if len(data)-pos < 8 {
			return nil, fmt.Errorf("%w: %w: truncated offset_count in entry %d", errs.ErrFraming, errs.ErrInvalidIndexEntry, i)
		}

		offsetCount := engine.Uint64(data[pos : pos+8])
		pos += 8

		need := int(offsetCount) * 8 //nolint: gosec
		if need < 0 || len(data)-pos < need {
			return nil, fmt.Errorf("%w: %w: entry %d offset_count exceeds remaining data", errs.ErrFraming, errs.ErrInvalidIndexEntry, i)
		}

		offsets := make([]uint64, offsetCount)
		for j := range offsets {
			offsets[j] = engine.Uint64(data[pos : pos+8])
			pos += 8
		}

		entries = append(entries, Entry{Key: key, Offsets: offsets})
	}

	if err := ValidateConformance(tag, entries); err != nil {
		return nil, err
	}

	return &Index{tag: tag, entries: entries}, nil
}
