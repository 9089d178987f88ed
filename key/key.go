// Package key implements the canonical, order-preserving byte encoding of
// typed attribute keys (spec.md §4.1, C1 "Key Codec"). It is the single
// source of truth both in-memory components (index.Index) and streaming
// components (stream.Reader) use to compare keys, so the two comparisons
// never disagree.
package key

import (
	"time"

	"github.com/cityjson/flatcitybuf/attrindex/format"
)

// Key is satisfied by every supported scalar/temporal key type. The set is
// closed: callers cannot add new implementations and expect the codec to
// recognize them, since Encode/Decode/Compare switch on format.TypeTag.
type Key interface {
	// Tag returns the key's stable TypeTag.
	Tag() format.TypeTag
}

type (
	I8  int8
	I16 int16
	I32 int32
	I64 int64
	U8  uint8
	U16 uint16
	U32 uint32
	U64 uint64
	F32 float32
	F64 float64
	// Bool orders false before true.
	Bool bool
	// String orders bytewise on its UTF-8 bytes.
	String string
	// Date is a calendar date with no time-of-day; only the whole-day
	// component survives encoding (see Encode).
	Date time.Time
	// NaiveDateTime is a timezone-naive instant; it is compared and
	// encoded as its UTC wall-clock instant.
	NaiveDateTime time.Time
	// DateTime is a timezone-aware instant; it is compared and encoded
	// as its absolute instant (UnixNano), so two DateTime values that
	// represent the same instant in different zones are equal.
	DateTime time.Time
)

func (I8) Tag() format.TypeTag            { return format.I8 }
func (I16) Tag() format.TypeTag           { return format.I16 }
func (I32) Tag() format.TypeTag           { return format.I32 }
func (I64) Tag() format.TypeTag           { return format.I64 }
func (U8) Tag() format.TypeTag            { return format.U8 }
func (U16) Tag() format.TypeTag           { return format.U16 }
func (U32) Tag() format.TypeTag           { return format.U32 }
func (U64) Tag() format.TypeTag           { return format.U64 }
func (F32) Tag() format.TypeTag           { return format.F32 }
func (F64) Tag() format.TypeTag           { return format.F64 }
func (Bool) Tag() format.TypeTag          { return format.Bool }
func (String) Tag() format.TypeTag        { return format.String }
func (Date) Tag() format.TypeTag          { return format.Date }
func (NaiveDateTime) Tag() format.TypeTag { return format.NaiveDateTime }
func (DateTime) Tag() format.TypeTag      { return format.DateTime }
