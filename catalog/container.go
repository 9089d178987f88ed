package catalog

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/cityjson/flatcitybuf/attrindex/endian"
	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/format"
	"github.com/cityjson/flatcitybuf/attrindex/index"
	"github.com/cityjson/flatcitybuf/attrindex/internal/pool"
	"github.com/cityjson/flatcitybuf/attrindex/rangeio"
	"github.com/cityjson/flatcitybuf/attrindex/stream"
)

// ContainerBuilder packs several fields' built indices into one
// container file, back to back, followed by the catalog and a trailing
// 8-byte pointer back to it (spec.md §6.2's "reverse-bootstrap" layout).
type ContainerBuilder struct {
	fields     []string
	blobs      map[string][]byte
	compress   map[string]format.CompressionType
	engine     endian.EndianEngine
}

// NewContainerBuilder creates an empty ContainerBuilder.
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		blobs:    make(map[string][]byte),
		compress: make(map[string]format.CompressionType),
		engine:   endian.GetLittleEndianEngine(),
	}
}

// Add serializes b via Finish and registers its bytes under field. The
// field order is preserved from the order Add is called in, which becomes
// the on-disk order of index blobs.
func (cb *ContainerBuilder) Add(field string, b *index.Builder) error {
	if _, exists := cb.blobs[field]; exists {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateField, field)
	}

	data, err := b.Finish()
	if err != nil {
		return fmt.Errorf("finish index for field %q: %w", field, err)
	}

	cb.fields = append(cb.fields, field)
	cb.blobs[field] = data
	cb.compress[field] = b.Compression()

	return nil
}

// Finish assembles every added field's index blob, the catalog describing
// them, and the trailing catalog pointer into one container byte slice.
func (cb *ContainerBuilder) Finish() ([]byte, error) {
	buf := pool.GetContainerBuffer()
	defer pool.PutContainerBuffer(buf)

	out := buf.Bytes()
	cat := New()

	for _, field := range cb.fields {
		data := cb.blobs[field]

		if len(data) < format.IndexHeaderSize {
			return nil, fmt.Errorf("field %q: %w: truncated index header", field, errs.ErrFraming)
		}

		tag := format.TypeTag(cb.engine.Uint32(data[0:4]))
		count := cb.engine.Uint64(data[4:12])

		meta := IndexMeta{
			FieldName:   field,
			Tag:         tag,
			EntryCount:  count,
			ByteSize:    uint64(len(data)), //nolint: gosec
			BaseOffset:  uint64(len(out)),  //nolint: gosec
			Compression: cb.compress[field],
		}

		if err := cat.Register(meta); err != nil {
			return nil, err
		}

		out = append(out, data...)
	}

	catalogStart := uint64(len(out)) //nolint: gosec
	out = append(out, cat.Serialize(cb.engine)...)
	out = cb.engine.AppendUint64(out, catalogStart)

	result := make([]byte, len(out))
	copy(result, out)

	return result, nil
}

// WriteFile assembles the container and atomically writes it to path.
func (cb *ContainerBuilder) WriteFile(path string) error {
	data, err := cb.Finish()
	if err != nil {
		return err
	}

	return atomic.WriteFile(path, bytes.NewReader(data))
}

// Open reverse-bootstraps a container: it reads the trailing 8-byte
// catalog pointer, then the catalog itself, and returns the parsed
// Catalog (spec.md §6.2).
func Open(ctx context.Context, client rangeio.RangeClient) (*Catalog, error) {
	engine := endian.GetLittleEndianEngine()

	total, err := client.Size(ctx)
	if err != nil {
		return nil, err
	}

	if total < 8 {
		return nil, fmt.Errorf("%w: container too small for a catalog pointer", errs.ErrFraming)
	}

	tail, err := client.ReadRange(ctx, total-8, 8)
	if err != nil {
		return nil, err
	}

	catalogStart := int64(engine.Uint64(tail)) //nolint: gosec
	if catalogStart < 0 || catalogStart >= total-8 {
		return nil, fmt.Errorf("%w: catalog pointer out of range", errs.ErrFraming)
	}

	catalogData, err := client.ReadRange(ctx, catalogStart, int(total-8-catalogStart)) //nolint: gosec
	if err != nil {
		return nil, err
	}

	return ParseCatalog(catalogData, engine)
}

// OpenReaders builds a stream.Reader for every field the catalog
// describes, concurrently via errgroup since each reader's offsets_table
// scan (spec.md §4.4.1) is an independent, read-only pass (SPEC_FULL's
// domain-stack table).
func OpenReaders(ctx context.Context, client rangeio.RangeClient, cat *Catalog) (map[string]*stream.Reader, error) {
	readers := make(map[string]*stream.Reader, cat.Len())

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, field := range cat.Fields() {
		field := field
		meta, _ := cat.Lookup(field)

		g.Go(func() error {
			opts := []stream.ReaderOption{stream.WithSpan(int64(meta.ByteSize))} //nolint: gosec
			if meta.Compression != 0 {
				opts = append(opts, stream.WithCompression(meta.Compression))
			}

			r, err := stream.Open(gctx, client, int64(meta.BaseOffset), opts...) //nolint: gosec
			if err != nil {
				return fmt.Errorf("open reader for field %q: %w", field, err)
			}

			mu.Lock()
			readers[field] = r
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return readers, nil
}
