// Package query implements the multi-index query engine (C6, spec.md
// §4.6): routing a Query's per-field Conditions to the right stream.Reader,
// intersecting their results, and returning a sorted-unique offset vector.
package query

import "github.com/cityjson/flatcitybuf/attrindex/index"

// Condition is one field-scoped comparison within a Query. Key is the
// already-encoded key bytes (key.Encode's output), matching the field's
// declared TypeTag.
type Condition struct {
	Field string
	Op    index.Operator
	Key   []byte
}

// Query is a conjunction of Conditions (spec.md §6.3): Execute returns the
// offsets satisfying every condition. A Query with no conditions is
// rejected by Engine.Execute with ErrEmptyQuery — "give me everything" is
// not expressible through the engine.
type Query struct {
	Conditions []Condition
}
