package index

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/natefinch/atomic"

	"github.com/cityjson/flatcitybuf/attrindex/compress"
	"github.com/cityjson/flatcitybuf/attrindex/endian"
	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/format"
	"github.com/cityjson/flatcitybuf/attrindex/internal/options"
	"github.com/cityjson/flatcitybuf/attrindex/internal/pool"
	"github.com/cityjson/flatcitybuf/attrindex/key"
)

// pair is one (key, feature byte offset) input to Builder.Add, before
// grouping by key.
type pair struct {
	keyBytes []byte
	offset   uint64
}

// BuilderOption configures a Builder.
type BuilderOption = options.Option[*Builder]

// WithStringCompression enables compression of the contiguous key_bytes
// block of a String-typed index (SPEC_FULL §5.1). For non-String tags it
// is rejected with ErrUnsupportedType at Finish, since
// compressing fixed-width framing would break the streaming reader's
// direct-offset addressing.
func WithStringCompression(ct format.CompressionType) BuilderOption {
	return options.New(func(b *Builder) error {
		b.stringCompression = ct
		return nil
	})
}

// WithOffsetsTableTrailer appends the optional offsets_table trailer
// described in spec.md §4.4.1 and SPEC_FULL §5.2 after Finish's entries,
// so stream.Reader.Open can read the table directly instead of performing
// an O(n) framing scan. It is rejected with ErrUnsupportedType when
// combined with WithStringCompression, since a compressed index has no
// fixed per-entry framing for the trailer to address.
func WithOffsetsTableTrailer() BuilderOption {
	return options.New(func(b *Builder) error {
		b.appendTrailer = true
		return nil
	})
}

// Builder accumulates (key, offset) pairs for a single field and produces
// its serialized, sorted index (spec.md §4.2, C2).
//
// A Builder is not safe for concurrent use; build one index per goroutine.
type Builder struct {
	tag               format.TypeTag
	pairs             []pair
	stringCompression format.CompressionType
	appendTrailer     bool
	engine            endian.EndianEngine
}

// NewBuilder creates a Builder for keys of the given TypeTag.
func NewBuilder(tag format.TypeTag, opts ...BuilderOption) (*Builder, error) {
	b := &Builder{
		tag:               tag,
		stringCompression: format.CompressionNone,
		engine:            endian.GetLittleEndianEngine(),
	}

	if err := options.Apply(b, opts...); err != nil {
		return nil, err
	}

	return b, nil
}

// Add registers one (key, feature byte offset) pair. k must match the
// Builder's declared TypeTag.
func (b *Builder) Add(k key.Key, offset uint64) error {
	if k.Tag() != b.tag {
		return fmt.Errorf("%w: builder expects %s, got %s", errs.ErrTypeMismatch, b.tag, k.Tag())
	}

	encoded, err := key.Encode(k)
	if err != nil {
		return err
	}

	b.pairs = append(b.pairs, pair{keyBytes: encoded, offset: offset})

	return nil
}

// Len reports how many (key, offset) pairs have been added so far.
func (b *Builder) Len() int {
	return len(b.pairs)
}

// Compression reports the string-key-block compression this Builder was
// configured with (CompressionNone unless WithStringCompression was set).
// catalog.ContainerBuilder reads this to record SPEC_FULL §5.1's
// extension field alongside the built index.
func (b *Builder) Compression() format.CompressionType {
	return b.stringCompression
}

// Build groups b's pairs by distinct key, sorts the groups by the codec's
// total order (spec.md §4.1), and returns the resulting in-memory Index.
// It is the in-process counterpart of Finish, which additionally
// serializes the result to bytes.
func (b *Builder) Build() (*Index, error) {
	entries, err := b.buildEntries()
	if err != nil {
		return nil, err
	}

	return &Index{tag: b.tag, entries: entries}, nil
}

// Finish serializes b's sorted, grouped entries to the on-disk single-index
// format (spec.md §6.1): TypeTag u32 | entry_count u64 | entries[].
//
// When WithStringCompression was set and the Builder's tag is String, the
// concatenated key_bytes block of every entry is compressed as one unit and
// framed after the fixed entry count; readers must decompress the whole
// block before any entry's key_bytes can be addressed, so a compressed
// index forfeits binary search (stream.Reader falls back to a full scan,
// see stream/reader.go).
func (b *Builder) Finish() ([]byte, error) {
	entries, err := b.buildEntries()
	if err != nil {
		return nil, err
	}

	if b.tag != format.String && b.stringCompression != format.CompressionNone {
		return nil, fmt.Errorf("%w: string compression requires a %s index, got %s", errs.ErrUnsupportedType, format.String, b.tag)
	}

	if b.appendTrailer && b.tag == format.String && b.stringCompression != format.CompressionNone {
		return nil, fmt.Errorf("%w: offsets_table trailer is incompatible with string compression", errs.ErrUnsupportedType)
	}

	buf := pool.GetIndexBuffer()
	defer pool.PutIndexBuffer(buf)

	header := make([]byte, format.IndexHeaderSize)
	b.engine.PutUint32(header[0:4], uint32(b.tag))
	b.engine.PutUint64(header[4:12], uint64(len(entries))) //nolint: gosec
	buf.MustWrite(header)

	if b.tag == format.String && b.stringCompression != format.CompressionNone {
		return b.finishCompressed(buf, entries)
	}

	out := buf.Bytes()

	table := make([]uint64, 0, len(entries)+1)
	pos := uint64(0)

	for _, e := range entries {
		table = append(table, pos)
		out = e.WriteTo(out, b.engine)
		pos += uint64(e.Size()) //nolint: gosec
	}

	table = append(table, pos)

	if b.appendTrailer {
		out = b.appendOffsetsTableTrailer(out, table)
	}

	result := make([]byte, len(out))
	copy(result, out)

	return result, nil
}

// appendOffsetsTableTrailer writes the SPEC_FULL §5.2 trailer: the
// entry_count+1 table of byte offsets (relative to the start of the
// entries region), the "OFFT" magic, and an 8-byte trailer byte size so a
// reader can locate and validate the trailer from the end of the file
// without knowing entry_count up front.
func (b *Builder) appendOffsetsTableTrailer(out []byte, table []uint64) []byte {
	for _, off := range table {
		out = b.engine.AppendUint64(out, off)
	}

	trailerSize := uint64(8*len(table) + 4) //nolint: gosec

	out = b.engine.AppendUint32(out, format.OffsetsTableTrailerMagic)
	out = b.engine.AppendUint64(out, trailerSize)

	return out
}

// WriteFile serializes b and atomically writes it to path (no partial
// writes are ever observable to a concurrent reader).
func (b *Builder) WriteFile(path string) error {
	data, err := b.Finish()
	if err != nil {
		return err
	}

	return atomic.WriteFile(path, bytes.NewReader(data))
}

func (b *Builder) finishCompressed(buf *pool.ByteBuffer, entries []Entry) ([]byte, error) {
	codec, err := compress.GetCodec(b.stringCompression)
	if err != nil {
		return nil, err
	}

	var keyBlock []byte
	offsetBlocks := make([][]byte, len(entries))

	// Each entry's offset block is pulled from internal/pool's byte-slice
	// pool rather than make()'d; the slices only need to stay alive for
	// this call (they're copied into out below), so they're returned to
	// the pool on return, ready for the next Finish call's reuse.
	releases := make([]func(), 0, len(entries))
	defer func() {
		for _, release := range releases {
			release()
		}
	}()

	for i, e := range entries {
		keyBlock = append(keyBlock, e.Key...)

		ob, release := pool.GetByteSlice(8 + 8*len(e.Offsets))
		releases = append(releases, release)

		b.engine.PutUint64(ob[0:8], uint64(len(e.Offsets))) //nolint: gosec
		for j, off := range e.Offsets {
			b.engine.PutUint64(ob[8+8*j:16+8*j], off)
		}

		offsetBlocks[i] = ob
	}

	compressed, err := codec.Compress(keyBlock)
	if err != nil {
		return nil, fmt.Errorf("compress key block: %w", err)
	}

	out := buf.Bytes()
	out = append(out, byte(b.stringCompression))
	out = b.engine.AppendUint64(out, uint64(len(keyBlock)))
	out = b.engine.AppendUint64(out, uint64(len(compressed))) //nolint: gosec
	out = append(out, compressed...)

	for i, e := range entries {
		out = b.engine.AppendUint64(out, uint64(len(e.Key))) //nolint: gosec
		out = append(out, offsetBlocks[i]...)
	}

	result := make([]byte, len(out))
	copy(result, out)

	return result, nil
}

func (b *Builder) buildEntries() ([]Entry, error) {
	if len(b.pairs) == 0 {
		return nil, errs.ErrEmpty
	}

	sort.Slice(b.pairs, func(i, j int) bool {
		c, err := key.Compare(b.pairs[i].keyBytes, b.pairs[j].keyBytes, b.tag)
		if err != nil {
			return false
		}

		return c < 0
	})

	entries := make([]Entry, 0, len(b.pairs))
	for _, p := range b.pairs {
		if n := len(entries); n > 0 {
			c, err := key.Compare(entries[n-1].Key, p.keyBytes, b.tag)
			if err != nil {
				return nil, err
			}

			if c == 0 {
				entries[n-1].Offsets = append(entries[n-1].Offsets, p.offset)
				continue
			}
		}

		entries = append(entries, Entry{Key: p.keyBytes, Offsets: []uint64{p.offset}})
	}

	for i := range entries {
		entries[i].Offsets = sortUniqueOffsets(entries[i].Offsets)
	}

	return entries, nil
}

// sortUniqueOffsets sorts offsets ascending and removes duplicates in
// place, so an Entry's Offsets satisfy spec.md §8 invariant 3
// (ascending, unique) and its construction is deterministic regardless
// of the order Add was called in (sort.Slice above is not stable).
func sortUniqueOffsets(offsets []uint64) []uint64 {
	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	out := offsets[:1]
	for _, off := range offsets[1:] {
		if off != out[len(out)-1] {
			out = append(out, off)
		}
	}

	return out
}
