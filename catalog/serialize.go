package catalog

import (
	"fmt"

	"github.com/cityjson/flatcitybuf/attrindex/endian"
	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/format"
	"github.com/cityjson/flatcitybuf/attrindex/internal/pool"
)

// recordFixedSize is a catalog record's fixed-width portion: type_tag(4) +
// entry_count(8) + byte_size(8) + base_offset(8) + compression(1).
const recordFixedSize = 4 + 8 + 8 + 8 + 1

// Serialize writes the catalog's v1 layout (spec.md §6.2, extended per
// SPEC_FULL §5.1 with a one-byte compression field per record):
//
//	magic u32 | version u32 | index_count u32 | records[]
//
// each record:
//
//	field_name_len u16 | field_name | type_tag u32 | entry_count u64 |
//	byte_size u64 | base_offset u64 | compression u8
func (c *Catalog) Serialize(engine endian.EndianEngine) []byte {
	buf := pool.GetContainerBuffer()
	defer pool.PutContainerBuffer(buf)

	out := buf.Bytes()
	out = engine.AppendUint32(out, format.CatalogMagic)
	out = engine.AppendUint32(out, format.CatalogVersion)
	out = engine.AppendUint32(out, uint32(len(c.order))) //nolint: gosec

	for _, name := range c.order {
		meta := c.byName[name]

		out = engine.AppendUint16(out, uint16(len(name))) //nolint: gosec
		out = append(out, name...)
		out = engine.AppendUint32(out, uint32(meta.Tag))
		out = engine.AppendUint64(out, meta.EntryCount)
		out = engine.AppendUint64(out, meta.ByteSize)
		out = engine.AppendUint64(out, meta.BaseOffset)
		out = append(out, byte(meta.Compression))
	}

	result := make([]byte, len(out))
	copy(result, out)

	return result
}

// ParseCatalog parses a serialized catalog byte slice back into a Catalog.
func ParseCatalog(data []byte, engine endian.EndianEngine) (*Catalog, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("%w: truncated catalog header", errs.ErrFraming)
	}

	magic := engine.Uint32(data[0:4])
	if magic != format.CatalogMagic {
		return nil, fmt.Errorf("%w: got 0x%x", errs.ErrCatalogMagic, magic)
	}

	version := engine.Uint32(data[4:8])
	if version != format.CatalogVersion {
		return nil, fmt.Errorf("%w: got %d", errs.ErrCatalogVersion, version)
	}

	count := engine.Uint32(data[8:12])
	pos := 12

	c := New()

	for i := uint32(0); i < count; i++ {
		if len(data)-pos < 2 {
			return nil, fmt.Errorf("%w: truncated field_name_len in record %d", errs.ErrFraming, i)
		}

		nameLen := int(engine.Uint16(data[pos : pos+2]))
		pos += 2

		if len(data)-pos < nameLen+recordFixedSize {
			return nil, fmt.Errorf("%w: truncated record %d", errs.ErrFraming, i)
		}

		name := string(data[pos : pos+nameLen])
		pos += nameLen

		tag := format.TypeTag(engine.Uint32(data[pos : pos+4]))
		pos += 4

		entryCount := engine.Uint64(data[pos : pos+8])
		pos += 8

		byteSize := engine.Uint64(data[pos : pos+8])
		pos += 8

		baseOffset := engine.Uint64(data[pos : pos+8])
		pos += 8

		compression := format.CompressionType(data[pos])
		pos++

		if err := c.Register(IndexMeta{
			FieldName:   name,
			Tag:         tag,
			EntryCount:  entryCount,
			ByteSize:    byteSize,
			BaseOffset:  baseOffset,
			Compression: compression,
		}); err != nil {
			return nil, err
		}
	}

	return c, nil
}
