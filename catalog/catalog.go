// Package catalog implements the multi-index container catalog (C7,
// spec.md §6.2): the field-name -> (IndexMeta, base_offset) directory that
// lets a host open one container file/object and route a query's field
// name to the right stream.Reader without touching the other indices.
package catalog

import (
	"fmt"

	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/format"
	"github.com/cityjson/flatcitybuf/attrindex/internal/collision"
	"github.com/cityjson/flatcitybuf/attrindex/internal/hash"
)

// IndexMeta is one catalog record (spec.md §6.2): everything needed to
// open a stream.Reader over the index's bytes within the container,
// without touching the other indices.
type IndexMeta struct {
	FieldName  string
	Tag        format.TypeTag
	EntryCount uint64
	ByteSize   uint64 // total bytes of this index's blob (header + entries + any trailer)
	BaseOffset uint64 // absolute byte offset within the container

	// Compression is the SPEC_FULL §5.1 extension field: CompressionNone
	// unless this field's index used WithStringCompression.
	Compression format.CompressionType
}

// Catalog is the parsed, in-memory form of a container's field directory.
// Field lookup is authoritative by exact string; the xxhash fast path
// (SPEC_FULL §5.3) only short-circuits the common case and is never
// trusted for a hash known to collide.
type Catalog struct {
	order   []string
	byName  map[string]IndexMeta
	byHash  map[uint64]string
	tracker *collision.Tracker
}

// New creates an empty Catalog.
func New() *Catalog {
	return &Catalog{
		byName:  make(map[string]IndexMeta),
		byHash:  make(map[uint64]string),
		tracker: collision.NewTracker(),
	}
}

// Register adds meta to the catalog. It rejects a field name already
// registered with ErrDuplicateField.
func (c *Catalog) Register(meta IndexMeta) error {
	if _, exists := c.byName[meta.FieldName]; exists {
		return fmt.Errorf("%w: %s", errs.ErrDuplicateField, meta.FieldName)
	}

	h := hash.ID(meta.FieldName)
	if err := c.tracker.Track(meta.FieldName, h); err != nil {
		return err
	}

	c.order = append(c.order, meta.FieldName)
	c.byName[meta.FieldName] = meta

	if !c.tracker.HashHasCollision(h) {
		c.byHash[h] = meta.FieldName
	} else {
		delete(c.byHash, h)
	}

	return nil
}

// Lookup returns the IndexMeta registered for field, authoritative and
// O(1) via the exact-string map.
func (c *Catalog) Lookup(field string) (IndexMeta, bool) {
	meta, ok := c.byName[field]
	return meta, ok
}

// LookupByHash resolves a field name via its xxhash64 fast path, falling
// back to false when the hash is unknown or known to collide — callers
// must then fall back to Lookup with the field name they actually have.
func (c *Catalog) LookupByHash(hash uint64) (IndexMeta, bool) {
	if c.tracker.HashHasCollision(hash) {
		return IndexMeta{}, false
	}

	field, ok := c.byHash[hash]
	if !ok {
		return IndexMeta{}, false
	}

	meta, ok := c.byName[field]
	return meta, ok
}

// Fields returns every registered field name in registration order.
func (c *Catalog) Fields() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)

	return out
}

// Len reports how many indices the catalog describes.
func (c *Catalog) Len() int {
	return len(c.order)
}
