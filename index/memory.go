package index

import (
	"fmt"
	"sort"

	"github.com/cityjson/flatcitybuf/attrindex/endian"
	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/format"
	"github.com/cityjson/flatcitybuf/attrindex/key"
)

// Operator identifies a query condition's comparison, matching spec.md
// §4.3's dispatch table.
type Operator uint8

const (
	Eq Operator = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

func (op Operator) String() string {
	switch op {
	case Eq:
		return "Eq"
	case Ne:
		return "Ne"
	case Lt:
		return "Lt"
	case Le:
		return "Le"
	case Gt:
		return "Gt"
	case Ge:
		return "Ge"
	default:
		return "Unknown"
	}
}

// Index is the fully-materialized, sorted in-memory index for one field
// (spec.md §4.3, C3). Entries are sorted ascending by key under the key
// codec's total order and never contain duplicate keys (Builder merges
// same-key offsets at construction time).
type Index struct {
	tag     format.TypeTag
	entries []Entry
}

// Tag returns the index's declared key TypeTag.
func (ix *Index) Tag() format.TypeTag {
	return ix.tag
}

// Len reports the number of distinct keys in the index.
func (ix *Index) Len() int {
	return len(ix.entries)
}

// ParseIndex parses a serialized single-index byte slice (spec.md §6.1)
// into a fully-materialized Index. It only understands the uncompressed
// layout; callers of an index built with WithStringCompression must use
// ParseIndexCompressed instead (the catalog records which layout a field
// uses, see SPEC_FULL §5.1).
func ParseIndex(data []byte, engine endian.EndianEngine) (*Index, error) {
	tag, count, pos, err := parseIndexHeader(data, engine)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, count)
	for i := uint64(0); i < count; i++ {
		e, n, err := ParseEntry(data[pos:], engine)
		if err != nil {
			return nil, err
		}

		entries = append(entries, e)
		pos += n
	}

	if err := ValidateConformance(tag, entries); err != nil {
		return nil, err
	}

	return &Index{tag: tag, entries: entries}, nil
}

// ParseIndexCompressed parses a serialized single-index byte slice built
// with WithStringCompression, per Builder.finishCompressed.
func ParseIndexCompressed(data []byte, engine endian.EndianEngine) (*Index, error) {
	tag, count, pos, err := parseIndexHeader(data, engine)
	if err != nil {
		return nil, err
	}

	return ParseCompressedIndex(data[pos:], tag, count, engine)
}

func parseIndexHeader(data []byte, engine endian.EndianEngine) (format.TypeTag, uint64, int, error) {
	if len(data) < format.IndexHeaderSize {
		return 0, 0, 0, fmt.Errorf("%w: truncated index header", errs.ErrFraming)
	}

	tag := format.TypeTag(engine.Uint32(data[0:4]))
	count := engine.Uint64(data[4:12])

	return tag, count, format.IndexHeaderSize, nil
}

// FindExact returns the offsets of the single entry whose key equals k, or
// nil if no entry matches. It runs in O(log n) via binary search.
func (ix *Index) FindExact(k []byte) ([]uint64, error) {
	i, found, err := ix.search(k)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	return ix.entries[i].Offsets, nil
}

// FindRange returns the union of offsets of every entry whose key satisfies
// op against k (spec.md §4.3). Eq/Lt/Le/Gt/Ge all run in O(log n + m) where
// m is the number of matching entries; Ne runs in O(n) since it must visit
// every entry except the matched region.
func (ix *Index) FindRange(op Operator, k []byte) ([]uint64, error) {
	i, found, err := ix.search(k)
	if err != nil {
		return nil, err
	}

	var lo, hi int

	switch op {
	case Eq:
		if !found {
			return nil, nil
		}

		lo, hi = i, i+1
	case Ne:
		return ix.findNe(i, found)
	case Lt:
		lo, hi = 0, i
	case Le:
		lo, hi = 0, i
		if found {
			hi = i + 1
		}
	case Gt:
		lo = i
		if found {
			lo = i + 1
		}

		hi = len(ix.entries)
	case Ge:
		lo, hi = i, len(ix.entries)
	default:
		return nil, fmt.Errorf("%w: operator %s", errs.ErrUnsupportedType, op)
	}

	return ix.collect(lo, hi), nil
}

func (ix *Index) findNe(matchIdx int, found bool) ([]uint64, error) {
	var out []uint64

	for i, e := range ix.entries {
		if found && i == matchIdx {
			continue
		}

		out = append(out, e.Offsets...)
	}

	return out, nil
}

func (ix *Index) collect(lo, hi int) []uint64 {
	var out []uint64
	for _, e := range ix.entries[lo:hi] {
		out = append(out, e.Offsets...)
	}

	return out
}

// search returns the index of the first entry whose key is >= k (the
// standard lower_bound), and whether that entry's key equals k exactly.
func (ix *Index) search(k []byte) (int, bool, error) {
	var cmpErr error

	i := sort.Search(len(ix.entries), func(i int) bool {
		c, err := key.Compare(ix.entries[i].Key, k, ix.tag)
		if err != nil {
			cmpErr = err
			return true
		}

		return c >= 0
	})

	if cmpErr != nil {
		return 0, false, cmpErr
	}

	if i < len(ix.entries) {
		c, err := key.Compare(ix.entries[i].Key, k, ix.tag)
		if err != nil {
			return 0, false, err
		}

		return i, c == 0, nil
	}

	return i, false, nil
}
