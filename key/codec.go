package key

import (
	"fmt"
	"math"
	"time"
	"unicode/utf8"

	"github.com/cityjson/flatcitybuf/attrindex/endian"
	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/format"
)

// engine is fixed to little-endian, per the canonical on-disk format
// (spec.md §4.1: "Fixed-width types encode to their little-endian...
// bytes"). The endian package's abstraction is still used (rather than a
// bare encoding/binary call) so this codec shares the same byte-order
// plumbing the rest of the pack's binary formats use.
var engine = endian.GetLittleEndianEngine()

// Encode returns the canonical byte encoding of a key. Fixed-width types
// encode to their little-endian two's-complement or raw IEEE-754 bits;
// strings encode as their raw UTF-8 bytes with no length prefix (the index
// framing supplies that, see index.Entry). Encode is bijective: Decode is
// its exact inverse, including for distinct NaN bit patterns.
func Encode(k Key) ([]byte, error) {
	switch v := k.(type) {
	case I8:
		return []byte{byte(v)}, nil
	case U8:
		return []byte{byte(v)}, nil
	case Bool:
		if v {
			return []byte{1}, nil
		}

		return []byte{0}, nil
	case I16:
		b := make([]byte, 2)
		engine.PutUint16(b, uint16(v))

		return b, nil
	case U16:
		b := make([]byte, 2)
		engine.PutUint16(b, uint16(v))

		return b, nil
	case I32:
		b := make([]byte, 4)
		engine.PutUint32(b, uint32(v))

		return b, nil
	case U32:
		b := make([]byte, 4)
		engine.PutUint32(b, uint32(v))

		return b, nil
	case F32:
		b := make([]byte, 4)
		engine.PutUint32(b, math.Float32bits(float32(v)))

		return b, nil
	case I64:
		b := make([]byte, 8)
		engine.PutUint64(b, uint64(v))

		return b, nil
	case U64:
		b := make([]byte, 8)
		engine.PutUint64(b, uint64(v))

		return b, nil
	case F64:
		b := make([]byte, 8)
		engine.PutUint64(b, math.Float64bits(float64(v)))

		return b, nil
	case String:
		return []byte(v), nil
	case Date:
		days := dateToDays(time.Time(v))
		b := make([]byte, 4)
		engine.PutUint32(b, uint32(days))

		return b, nil
	case NaiveDateTime:
		b := make([]byte, 8)
		engine.PutUint64(b, uint64(time.Time(v).UTC().UnixNano()))

		return b, nil
	case DateTime:
		b := make([]byte, 8)
		engine.PutUint64(b, uint64(time.Time(v).UnixNano()))

		return b, nil
	default:
		return nil, fmt.Errorf("%w: %T", errs.ErrUnsupportedType, k)
	}
}

// Decode parses bytes encoded by Encode back into a typed Key, given the
// declared TypeTag. It fails with ErrDecode on truncated input or invalid
// UTF-8 for strings.
func Decode(data []byte, tag format.TypeTag) (Key, error) {
	if width, fixed := tag.FixedWidth(); fixed && len(data) != width {
		return nil, fmt.Errorf("%w: %s expects %d bytes, got %d", errs.ErrDecode, tag, width, len(data))
	}

	switch tag {
	case format.I8:
		return I8(int8(data[0])), nil
	case format.U8:
		return U8(data[0]), nil
	case format.Bool:
		return Bool(data[0] != 0), nil
	case format.I16:
		return I16(int16(engine.Uint16(data))), nil
	case format.U16:
		return U16(engine.Uint16(data)), nil
	case format.I32:
		return I32(int32(engine.Uint32(data))), nil
	case format.U32:
		return U32(engine.Uint32(data)), nil
	case format.F32:
		return F32(math.Float32frombits(engine.Uint32(data))), nil
	case format.I64:
		return I64(int64(engine.Uint64(data))), nil
	case format.U64:
		return U64(engine.Uint64(data)), nil
	case format.F64:
		return F64(math.Float64frombits(engine.Uint64(data))), nil
	case format.String:
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: invalid UTF-8 string key", errs.ErrDecode)
		}

		return String(data), nil
	case format.Date:
		days := int32(engine.Uint32(data)) //nolint: gosec
		return Date(daysToDate(days)), nil
	case format.NaiveDateTime:
		nanos := int64(engine.Uint64(data))

		return NaiveDateTime(time.Unix(0, nanos).UTC()), nil
	case format.DateTime:
		nanos := int64(engine.Uint64(data))

		return DateTime(time.Unix(0, nanos).UTC()), nil
	default:
		return nil, fmt.Errorf("%w: tag %d", errs.ErrUnsupportedType, tag)
	}
}

// TagOf returns the stable TypeTag of a key.
func TagOf(k Key) format.TypeTag {
	return k.Tag()
}

// Compare returns -1, 0, or 1 comparing two encoded keys of the same
// TypeTag, implementing each type's total order (spec.md §4.1):
//   - unsigned integers compare numerically
//   - signed integers are converted to their in-register signed value
//     before comparing (little-endian two's complement is not
//     byte-monotonic)
//   - floats use a NaN-last total order: any two NaN bit patterns compare
//     equal, and NaN compares greater than every non-NaN value
//   - strings compare byte-lexicographically
//   - booleans order false before true
//   - temporal keys compare as their integral representation
//
// Compare sees only bytes, so it cannot tell which TypeTag produced them;
// for a fixed-width tag, an operand whose length differs from the tag's
// width is rejected with ErrTypeMismatch. CompareKeys rejects typed keys of
// different TypeTags with ErrCrossTypeCompare.
func Compare(a, b []byte, tag format.TypeTag) (int, error) {
	if width, fixed := tag.FixedWidth(); fixed && (len(a) != width || len(b) != width) {
		return 0, fmt.Errorf("%w: %s keys are %d bytes, got %d and %d", errs.ErrTypeMismatch, tag, width, len(a), len(b))
	}

	switch tag {
	case format.I8:
		return compareInt(int64(int8(a[0])), int64(int8(b[0]))), nil
	case format.U8:
		return compareUint(uint64(a[0]), uint64(b[0])), nil
	case format.Bool:
		return compareUint(uint64(a[0]), uint64(b[0])), nil
	case format.I16:
		return compareInt(int64(int16(engine.Uint16(a))), int64(int16(engine.Uint16(b)))), nil
	case format.U16:
		return compareUint(uint64(engine.Uint16(a)), uint64(engine.Uint16(b))), nil
	case format.I32:
		return compareInt(int64(int32(engine.Uint32(a))), int64(int32(engine.Uint32(b)))), nil
	case format.U32:
		return compareUint(uint64(engine.Uint32(a)), uint64(engine.Uint32(b))), nil
	case format.F32:
		return compareF32Bits(engine.Uint32(a), engine.Uint32(b)), nil
	case format.I64:
		return compareInt(int64(engine.Uint64(a)), int64(engine.Uint64(b))), nil
	case format.U64:
		return compareUint(engine.Uint64(a), engine.Uint64(b)), nil
	case format.F64:
		return compareF64Bits(engine.Uint64(a), engine.Uint64(b)), nil
	case format.String:
		return compareBytes(a, b), nil
	case format.Date:
		return compareInt(int64(int32(engine.Uint32(a))), int64(int32(engine.Uint32(b)))), nil
	case format.NaiveDateTime, format.DateTime:
		return compareInt(int64(engine.Uint64(a)), int64(engine.Uint64(b))), nil
	default:
		return 0, fmt.Errorf("%w: tag %d", errs.ErrUnsupportedType, tag)
	}
}

// CompareKeys compares two typed keys by delegating to Encode + Compare, so
// the typed (in-memory) and byte-level (streaming) comparisons can never
// disagree: this codec is their single source of truth.
func CompareKeys(a, b Key) (int, error) {
	if a.Tag() != b.Tag() {
		return 0, fmt.Errorf("%w: %s vs %s", errs.ErrCrossTypeCompare, a.Tag(), b.Tag())
	}

	ab, err := Encode(a)
	if err != nil {
		return 0, err
	}

	bb, err := Encode(b)
	if err != nil {
		return 0, err
	}

	return Compare(ab, bb, a.Tag())
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareBytes(a, b []byte) int {
	switch {
	case string(a) < string(b):
		return -1
	case string(a) > string(b):
		return 1
	default:
		return 0
	}
}

func compareF32Bits(a, b uint32) int {
	aNaN, bNaN := isNaNBits32(a), isNaNBits32(b)

	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}

	return compareUint(uint64(orderedBits32(a)), uint64(orderedBits32(b)))
}

func compareF64Bits(a, b uint64) int {
	aNaN, bNaN := isNaNBits64(a), isNaNBits64(b)

	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return 1
	case bNaN:
		return -1
	}

	return compareUint(orderedBits64(a), orderedBits64(b))
}

const secondsPerDay = 86400

func dateToDays(t time.Time) int64 {
	u := t.UTC()
	midnight := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)

	return midnight.Unix() / secondsPerDay
}

func daysToDate(days int32) time.Time {
	return time.Unix(int64(days)*secondsPerDay, 0).UTC()
}
