package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/cityjson/flatcitybuf/attrindex/endian"
	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/format"
	"github.com/cityjson/flatcitybuf/attrindex/index"
	"github.com/cityjson/flatcitybuf/attrindex/key"
	"github.com/cityjson/flatcitybuf/attrindex/rangeio"
)

// tableScanChunk is the initial window size BuildOffsetsTable fetches per
// round trip while walking an index's entries. It grows (doubling) only
// when an entry's framing doesn't fit in the current window.
const tableScanChunk = 64 * 1024

// BuildOffsetsTable performs the one-time sequential scan described in
// spec.md §4.4.1: it walks entriesOff for entryCount framed entries
// (index.Entry, §6.1) and returns an entryCount+1 length table of byte
// offsets relative to entriesOff, where table[i] is where entry i begins
// and table[entryCount] is the entries region's total byte length.
//
// Along the way it checks spec.md §6.1's conformance invariants against
// every entry it parses — key_len matching tag's fixed width, keys
// strictly ascending — the same way index.ValidateConformance does for a
// fully-materialized Index. This costs no extra I/O: each entry's key
// bytes are already present in the window fetched to learn its framing,
// so the check is free once the entry is parsed.
//
// Once built, Reader addresses any entry directly via one ReadRange
// instead of re-walking the framing, turning FindExact/FindRange into
// O(log n) seeks (the "variable-width" analogue of go-git's fixed-stride
// idx file binary search).
func BuildOffsetsTable(
	ctx context.Context,
	client rangeio.RangeClient,
	entriesOff int64,
	entryCount uint64,
	tag format.TypeTag,
	engine endian.EndianEngine,
) ([]uint64, error) {
	table := make([]uint64, 0, entryCount+1)
	fixedWidth, isFixed := tag.FixedWidth()

	total, err := client.Size(ctx)
	if err != nil {
		return nil, err
	}

	var (
		window    []byte
		windowOff int64
		prevKey   []byte
		hasPrev   bool
	)

	fetch := func(at int64, length int) error {
		if remaining := total - at; int64(length) > remaining {
			length = int(remaining) //nolint: gosec
		}

		data, err := client.ReadRange(ctx, at, length)
		if err != nil {
			return err
		}

		window = data
		windowOff = at

		return nil
	}

	pos := entriesOff
	if err := fetch(pos, tableScanChunk); err != nil {
		return nil, err
	}

	for i := uint64(0); i < entryCount; i++ {
		table = append(table, uint64(pos-entriesOff)) //nolint: gosec

		local := window[pos-windowOff:]

		e, n, err := index.ParseEntry(local, engine)
		for err != nil && errors.Is(err, errs.ErrInvalidIndexEntry) && windowOff+int64(len(window)) < total {
			grown := len(window)*2 + tableScanChunk
			if ferr := fetch(windowOff, grown); ferr != nil {
				return nil, ferr
			}

			local = window[pos-windowOff:]
			e, n, err = index.ParseEntry(local, engine)
		}

		if err != nil {
			return nil, err
		}

		if isFixed && len(e.Key) != fixedWidth {
			return nil, fmt.Errorf("%w: entry %d: key_len %d does not match %s's fixed width %d",
				errs.ErrFraming, i, len(e.Key), tag, fixedWidth)
		}

		if hasPrev {
			c, cerr := key.Compare(prevKey, e.Key, tag)
			if cerr != nil {
				return nil, cerr
			}

			if c >= 0 {
				return nil, fmt.Errorf("%w: entry %d: keys not strictly ascending", errs.ErrFraming, i)
			}
		}

		prevKey = append([]byte(nil), e.Key...)
		hasPrev = true

		pos += int64(n)

		if pos-windowOff > int64(len(window))/2 && i+1 < entryCount {
			if err := fetch(pos, tableScanChunk); err != nil {
				return nil, err
			}
		}
	}

	table = append(table, uint64(pos-entriesOff)) //nolint: gosec

	return table, nil
}
