// Package format holds the closed wire-format enums and on-disk constants
// shared by the key codec, index builder/reader, and container catalog.
package format

// TypeTag identifies the declared scalar type of an index's keys. The set
// is closed and the integer values are stable across format versions.
type TypeTag uint32

const (
	I8            TypeTag = 1
	I16           TypeTag = 2
	I32           TypeTag = 3
	I64           TypeTag = 4
	U8            TypeTag = 5
	U16           TypeTag = 6
	U32           TypeTag = 7
	U64           TypeTag = 8
	F32           TypeTag = 9
	F64           TypeTag = 10
	Bool          TypeTag = 11
	String        TypeTag = 12
	Date          TypeTag = 13
	NaiveDateTime TypeTag = 14
	DateTime      TypeTag = 15
)

func (t TypeTag) String() string {
	switch t {
	case I8:
		return "I8"
	case I16:
		return "I16"
	case I32:
		return "I32"
	case I64:
		return "I64"
	case U8:
		return "U8"
	case U16:
		return "U16"
	case U32:
		return "U32"
	case U64:
		return "U64"
	case F32:
		return "F32"
	case F64:
		return "F64"
	case Bool:
		return "Bool"
	case String:
		return "String"
	case Date:
		return "Date"
	case NaiveDateTime:
		return "NaiveDateTime"
	case DateTime:
		return "DateTime"
	default:
		return "Unknown"
	}
}

// FixedWidth returns the on-disk key_len, in bytes, for fixed-width tags
// and (0, false) for the variable-width String tag.
func (t TypeTag) FixedWidth() (int, bool) {
	switch t {
	case I8, U8, Bool:
		return 1, true
	case I16, U16:
		return 2, true
	case I32, U32, F32, Date:
		return 4, true
	case I64, U64, F64, NaiveDateTime, DateTime:
		return 8, true
	case String:
		return 0, false
	default:
		return 0, false
	}
}

// IsVariableWidth reports whether entries of this tag use variable-width
// (string) framing rather than fixed-width framing.
func (t TypeTag) IsVariableWidth() bool {
	return t == String
}

// CompressionType identifies an optional payload compression algorithm used
// by the supplemental compressed-string-block extension.
type CompressionType uint8

const (
	CompressionNone CompressionType = 0x1
	CompressionZstd CompressionType = 0x2
	CompressionS2   CompressionType = 0x3
	CompressionLZ4  CompressionType = 0x4
)

func (c CompressionType) String() string {
	switch c {
	case CompressionNone:
		return "None"
	case CompressionZstd:
		return "Zstd"
	case CompressionS2:
		return "S2"
	case CompressionLZ4:
		return "LZ4"
	default:
		return "Unknown"
	}
}
