// Package errs defines the sentinel errors returned across the attribute
// index core. Call sites wrap these with fmt.Errorf("...: %w", ...) to add
// context, mirroring the teacher's own error conventions.
package errs

import "errors"

var (
	// ErrIo indicates a transport-level read failure or timeout from a
	// RangeClient.
	ErrIo = errors.New("range client io error")

	// ErrFraming indicates an on-disk framing invariant was violated:
	// an out-of-range key_len/offset_count, a non-monotone key sequence,
	// or truncated input.
	ErrFraming = errors.New("index framing invariant violated")

	// ErrTypeMismatch indicates caller-supplied key bytes or a key value
	// disagree with an index's declared TypeTag.
	ErrTypeMismatch = errors.New("key type mismatch")

	// ErrDecode indicates the key codec could not decode a byte sequence
	// into a typed key (truncated input, invalid UTF-8, etc).
	ErrDecode = errors.New("key decode error")

	// ErrUnknownField indicates a query referenced a field with no
	// registered index.
	ErrUnknownField = errors.New("unknown field")

	// ErrEmptyQuery indicates a query had zero conditions.
	ErrEmptyQuery = errors.New("query has no conditions")

	// ErrEmpty indicates the builder was invoked with no (key, offset)
	// pairs.
	ErrEmpty = errors.New("builder received no entries")

	// ErrInvalidIndexEntry indicates a serialized entry could not be
	// parsed (too short, bad length fields).
	ErrInvalidIndexEntry = errors.New("invalid index entry")

	// ErrOffsetsTableNotBuilt indicates a streaming reader method was
	// called before the offsets_table was constructed.
	ErrOffsetsTableNotBuilt = errors.New("offsets table not built")

	// ErrCatalogMagic indicates a container's catalog does not begin
	// with the expected magic value.
	ErrCatalogMagic = errors.New("invalid catalog magic")

	// ErrCatalogVersion indicates a container's catalog version is not
	// supported by this reader.
	ErrCatalogVersion = errors.New("unsupported catalog version")

	// ErrDuplicateField indicates the same field name was registered
	// twice in one catalog.
	ErrDuplicateField = errors.New("duplicate field name")

	// ErrUnsupportedType indicates an operation was attempted against a
	// TypeTag the codec does not recognize.
	ErrUnsupportedType = errors.New("unsupported type tag")

	// ErrCrossTypeCompare indicates an attempt to compare keys of
	// different types, which is undefined per the key model.
	ErrCrossTypeCompare = errors.New("cross-type key comparison")
)
