// Package stream implements the streaming, seek-based index reader (C4,
// spec.md §4.4): binary search over a serialized single-index byte layout
// fetched on demand through a rangeio.RangeClient, rather than
// materializing the whole index in memory like index.Index does.
package stream

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/cityjson/flatcitybuf/attrindex/endian"
	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/format"
	"github.com/cityjson/flatcitybuf/attrindex/index"
	"github.com/cityjson/flatcitybuf/attrindex/key"
	"github.com/cityjson/flatcitybuf/attrindex/rangeio"
)

// tableCache memoizes a just-built offsets_table across repeated opens of
// the same (client, base_offset) pair, keyed by the client's pointer
// identity — common for HTTP-backed containers a host reopens per
// request rather than keeping a long-lived Reader around (SPEC_FULL
// §3's domain-stack table).
var tableCache = ttlcache.New[string, []uint64](
	ttlcache.WithTTL[string, []uint64](5 * time.Minute),
)

func init() {
	go tableCache.Start()
}

// Reader is the streaming counterpart of index.Index: it holds only the
// index's header and the offsets_table Open built by scanning the
// entries region once, fetching entry bytes through client on demand
// thereafter (spec.md §4.4.1).
//
// A Reader is safe for concurrent use once Open returns; ensureTable's
// sync.Once guards against Open's single call ever running its build
// logic twice, and ensures any reader built directly (bypassing Open)
// still gets a one-shot latch on first use.
type Reader struct {
	client rangeio.RangeClient
	base   int64
	tag    format.TypeTag
	engine endian.EndianEngine

	compression format.CompressionType
	span        int64

	entryCount uint64
	entriesOff int64

	tableOnce sync.Once
	table     []uint64
	tableErr  error

	scanOnce sync.Once
	scanned  *index.Index
	scanErr  error
}

// ReaderOption configures Open.
type ReaderOption func(*Reader)

// WithCompression marks the index at base as using the compressed
// string-key-block layout (SPEC_FULL §5.1). The catalog records this per
// field; callers reading a raw index file directly must supply it
// themselves.
func WithCompression(ct format.CompressionType) ReaderOption {
	return func(r *Reader) { r.compression = ct }
}

// WithSpan tells Open exactly how many bytes this index occupies within
// client, starting at base (header + entries + any trailer). A catalog
// embedding several indices in one container file supplies this from
// IndexMeta so Open can look for the SPEC_FULL §5.2 offsets_table trailer
// right after this index's own entries instead of at the client's EOF.
// When omitted, Open assumes client holds exactly one index (the common
// case of a standalone index file) and uses client.Size.
func WithSpan(n int64) ReaderOption {
	return func(r *Reader) { r.span = n }
}

// Open reads base's 12-byte single-index header (TypeTag + entry_count,
// spec.md §6.1) through client, then walks the entries region once to
// build the in-memory offsets_table (spec.md §4.4.1: "open() streams the
// framing header of every entry"), returning a Reader ready for Find
// calls. A framing invariant violated anywhere in the scan (an
// implausible key_len/offset_count, truncated input) fails Open itself
// with ErrFraming; catalog.OpenReaders opens every field's Reader
// independently, so one field's corrupt index does not prevent another
// field in the same container from opening successfully.
func Open(ctx context.Context, client rangeio.RangeClient, base int64, opts ...ReaderOption) (*Reader, error) {
	header, err := client.ReadRange(ctx, base, format.IndexHeaderSize)
	if err != nil {
		return nil, err
	}

	if len(header) < format.IndexHeaderSize {
		return nil, fmt.Errorf("%w: truncated index header", errs.ErrFraming)
	}

	engine := endian.GetLittleEndianEngine()

	r := &Reader{
		client:      client,
		base:        base,
		tag:         format.TypeTag(engine.Uint32(header[0:4])),
		engine:      engine,
		entryCount:  engine.Uint64(header[4:12]),
		entriesOff:  base + int64(format.IndexHeaderSize),
		compression: format.CompressionNone,
	}

	for _, opt := range opts {
		opt(r)
	}

	r.tryLoadTrailer(ctx)

	if r.usesFullScan() {
		if _, err := r.ensureScanned(ctx); err != nil {
			return nil, err
		}

		return r, nil
	}

	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

// tryLoadTrailer best-effort-loads the SPEC_FULL §5.2 offsets_table
// trailer if one is present, latching r.table so ensureTable's later scan
// is skipped entirely. Any failure (no trailer, a corrupt one, an I/O
// error probing for it) is silently ignored — the trailer is a pure
// optimization, never required for correctness.
func (r *Reader) tryLoadTrailer(ctx context.Context) {
	if r.usesFullScan() {
		return
	}

	end := r.span
	if end == 0 {
		size, err := r.client.Size(ctx)
		if err != nil {
			return
		}

		end = size
	} else {
		end = r.base + r.span
	}

	if end-r.entriesOff < 12 {
		return
	}

	tail, err := r.client.ReadRange(ctx, end-8, 8)
	if err != nil || len(tail) < 8 {
		return
	}

	trailerSize := r.engine.Uint64(tail)
	if trailerSize < 4 || int64(trailerSize)+8 > end-r.entriesOff { //nolint: gosec
		return
	}

	trailerStart := end - 8 - int64(trailerSize) //nolint: gosec

	chunk, err := r.client.ReadRange(ctx, trailerStart, int(trailerSize)) //nolint: gosec
	if err != nil || len(chunk) != int(trailerSize) {                     //nolint: gosec
		return
	}

	magic := r.engine.Uint32(chunk[len(chunk)-4:])
	if magic != format.OffsetsTableTrailerMagic {
		return
	}

	tableBytes := chunk[:len(chunk)-4]
	if len(tableBytes)%8 != 0 || uint64(len(tableBytes)/8) != r.entryCount+1 { //nolint: gosec
		return
	}

	table := make([]uint64, len(tableBytes)/8)
	for i := range table {
		table[i] = r.engine.Uint64(tableBytes[i*8 : i*8+8])
	}

	r.tableOnce.Do(func() {
		r.table = table
	})
}

// Client returns the rangeio.RangeClient this Reader was opened against.
// query.Engine uses this to save and restore the client's read cursor
// around a condition when the concrete client implements
// rangeio.CursorClient (spec.md §4.4.3); Reader itself never reads or
// writes a cursor, since every ReadRange call here is absolute-positioned.
func (r *Reader) Client() rangeio.RangeClient { return r.client }

// Tag returns the index's declared key TypeTag.
func (r *Reader) Tag() format.TypeTag { return r.tag }

// Len reports the number of distinct keys in the index.
func (r *Reader) Len() int { return int(r.entryCount) } //nolint: gosec

// usesFullScan reports whether this index forfeited binary search via the
// opt-in compressed string-key-block extension (SPEC_FULL §5.1).
func (r *Reader) usesFullScan() bool {
	return r.compression != format.CompressionNone
}

func (r *Reader) ensureTable(ctx context.Context) error {
	r.tableOnce.Do(func() {
		cacheKey := fmt.Sprintf("%p:%d", r.client, r.base)

		if item := tableCache.Get(cacheKey); item != nil {
			r.table = item.Value()
			return
		}

		table, err := BuildOffsetsTable(ctx, r.client, r.entriesOff, r.entryCount, r.tag, r.engine)
		if err != nil {
			r.tableErr = err
			return
		}

		r.table = table
		tableCache.Set(cacheKey, table, ttlcache.DefaultTTL)
	})

	return r.tableErr
}

func (r *Reader) ensureScanned(ctx context.Context) (*index.Index, error) {
	r.scanOnce.Do(func() {
		// The compressed layout has no fixed entry stride, so there is no
		// cheaper way to learn its size than fetching until the backing
		// store reports EOF. Size() gives us the container's total byte
		// count, which bounds a single bulk read.
		total, err := r.client.Size(ctx)
		if err != nil {
			r.scanErr = err
			return
		}

		data, err := r.client.ReadRange(ctx, r.entriesOff, int(total-r.entriesOff)) //nolint: gosec
		if err != nil {
			r.scanErr = err
			return
		}

		ix, err := index.ParseCompressedIndex(data, r.tag, r.entryCount, r.engine)
		if err != nil {
			r.scanErr = err
			return
		}

		r.scanned = ix
	})

	return r.scanned, r.scanErr
}

// FindExact returns the offsets of the single entry whose key equals k, or
// nil if no entry matches.
func (r *Reader) FindExact(ctx context.Context, k []byte) ([]uint64, error) {
	if r.usesFullScan() {
		ix, err := r.ensureScanned(ctx)
		if err != nil {
			return nil, err
		}

		return ix.FindExact(k)
	}

	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}

	i, found, err := r.search(ctx, k)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, nil
	}

	e, err := r.readEntry(ctx, i)
	if err != nil {
		return nil, err
	}

	return e.Offsets, nil
}

// FindRange returns the union of offsets of every entry whose key
// satisfies op against k (spec.md §4.3), mirroring index.Index.FindRange
// but fetching only the entries the result needs.
func (r *Reader) FindRange(ctx context.Context, op index.Operator, k []byte) ([]uint64, error) {
	if r.usesFullScan() {
		ix, err := r.ensureScanned(ctx)
		if err != nil {
			return nil, err
		}

		return ix.FindRange(op, k)
	}

	if err := r.ensureTable(ctx); err != nil {
		return nil, err
	}

	i, found, err := r.search(ctx, k)
	if err != nil {
		return nil, err
	}

	n := int(r.entryCount) //nolint: gosec

	var lo, hi int

	switch op {
	case index.Eq:
		if !found {
			return nil, nil
		}

		lo, hi = i, i+1
	case index.Ne:
		return r.collectAllExcept(ctx, i, found)
	case index.Lt:
		lo, hi = 0, i
	case index.Le:
		lo, hi = 0, i
		if found {
			hi = i + 1
		}
	case index.Gt:
		lo = i
		if found {
			lo = i + 1
		}

		hi = n
	case index.Ge:
		lo, hi = i, n
	default:
		return nil, fmt.Errorf("%w: operator %s", errs.ErrUnsupportedType, op)
	}

	entries, err := r.readEntries(ctx, lo, hi)
	if err != nil {
		return nil, err
	}

	var out []uint64
	for _, e := range entries {
		out = append(out, e.Offsets...)
	}

	return out, nil
}

func (r *Reader) collectAllExcept(ctx context.Context, matchIdx int, found bool) ([]uint64, error) {
	entries, err := r.readEntries(ctx, 0, int(r.entryCount)) //nolint: gosec
	if err != nil {
		return nil, err
	}

	var out []uint64

	for i, e := range entries {
		if found && i == matchIdx {
			continue
		}

		out = append(out, e.Offsets...)
	}

	return out, nil
}

// search returns the index of the first entry whose key is >= k, and
// whether that entry's key equals k exactly, reading one entry at a time
// through the offsets_table (the streaming analogue of index.Index.search).
func (r *Reader) search(ctx context.Context, k []byte) (int, bool, error) {
	n := int(r.entryCount) //nolint: gosec

	var probeErr error

	i := sort.Search(n, func(i int) bool {
		e, err := r.readEntry(ctx, i)
		if err != nil {
			probeErr = err
			return true
		}

		c, err := key.Compare(e.Key, k, r.tag)
		if err != nil {
			probeErr = err
			return true
		}

		return c >= 0
	})

	if probeErr != nil {
		return 0, false, probeErr
	}

	if i < n {
		e, err := r.readEntry(ctx, i)
		if err != nil {
			return 0, false, err
		}

		c, err := key.Compare(e.Key, k, r.tag)
		if err != nil {
			return 0, false, err
		}

		return i, c == 0, nil
	}

	return i, false, nil
}

func (r *Reader) readEntry(ctx context.Context, i int) (index.Entry, error) {
	start := r.entriesOff + int64(r.table[i])
	length := int(r.table[i+1] - r.table[i])

	data, err := r.client.ReadRange(ctx, start, length)
	if err != nil {
		return index.Entry{}, err
	}

	e, _, err := index.ParseEntry(data, r.engine)

	return e, err
}

// readEntries bulk-fetches entries [lo, hi) in a single ReadRange and
// parses them sequentially, avoiding one round trip per entry for range
// queries and the Ne full scan.
func (r *Reader) readEntries(ctx context.Context, lo, hi int) ([]index.Entry, error) {
	if lo >= hi {
		return nil, nil
	}

	start := r.entriesOff + int64(r.table[lo])
	length := int(r.table[hi] - r.table[lo])

	data, err := r.client.ReadRange(ctx, start, length)
	if err != nil {
		return nil, err
	}

	entries := make([]index.Entry, 0, hi-lo)
	pos := 0

	for i := lo; i < hi; i++ {
		e, n, err := index.ParseEntry(data[pos:], r.engine)
		if err != nil {
			return nil, err
		}

		entries = append(entries, e)
		pos += n
	}

	return entries, nil
}
