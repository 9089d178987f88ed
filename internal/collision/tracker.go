// Package collision tracks field-name hash collisions for the container
// catalog's fast xxhash-based field lookup (SPEC_FULL §5.3), adapted from
// the teacher's metric-name collision tracker.
package collision

import (
	"github.com/cityjson/flatcitybuf/attrindex/errs"
)

// Tracker tracks field names and detects xxhash64 collisions among them.
// The authoritative lookup always consults the exact-string map in
// catalog.Catalog; this tracker only tells the catalog when the fast hash
// path is unsafe to trust for a given hash.
type Tracker struct {
	fields    map[uint64]string   // hash -> first-seen field name
	collided  map[uint64]struct{} // hashes with more than one distinct field name
}

// NewTracker creates a new collision tracker.
func NewTracker() *Tracker {
	return &Tracker{
		fields:   make(map[uint64]string),
		collided: make(map[uint64]struct{}),
	}
}

// Track records a field name under its hash. Returns ErrDuplicateField if
// the same field name was already tracked under this hash; otherwise, if a
// different field name already maps to this hash, marks the hash collided
// (without erroring).
func (t *Tracker) Track(field string, hash uint64) error {
	if existing, ok := t.fields[hash]; ok {
		if existing == field {
			return errs.ErrDuplicateField
		}
		t.collided[hash] = struct{}{}

		return nil
	}

	t.fields[hash] = field

	return nil
}

// HasCollision reports whether any hash collision has been observed.
func (t *Tracker) HasCollision() bool {
	return len(t.collided) > 0
}

// HashHasCollision reports whether the given hash is known to collide
// between two or more distinct field names. When true, callers must not
// trust the hash -> name fast path for that hash and should fall back to
// the exact-string map.
func (t *Tracker) HashHasCollision(hash uint64) bool {
	_, ok := t.collided[hash]

	return ok
}
