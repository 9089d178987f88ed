package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityjson/flatcitybuf/attrindex/endian"
	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/format"
	"github.com/cityjson/flatcitybuf/attrindex/key"
)

func TestBuilder_Add_TypeMismatch(t *testing.T) {
	b, err := NewBuilder(format.I32)
	require.NoError(t, err)

	err = b.Add(key.I64(1), 0)
	require.ErrorIs(t, err, errs.ErrTypeMismatch)
}

func TestBuilder_Build_EmptyRejected(t *testing.T) {
	b, err := NewBuilder(format.I32)
	require.NoError(t, err)

	_, err = b.Build()
	require.ErrorIs(t, err, errs.ErrEmpty)
}

func TestBuilder_Build_SortsAndGroupsByKey(t *testing.T) {
	b, err := NewBuilder(format.I32)
	require.NoError(t, err)

	require.NoError(t, b.Add(key.I32(30), 100))
	require.NoError(t, b.Add(key.I32(10), 101))
	require.NoError(t, b.Add(key.I32(20), 102))
	require.NoError(t, b.Add(key.I32(10), 103))

	ix, err := b.Build()
	require.NoError(t, err)
	require.Equal(t, 3, ix.Len())

	offsets, err := ix.FindExact(mustEncode(t, key.I32(10)))
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{101, 103}, offsets)
}

func TestBuilder_Finish_ParsesBackToEquivalentIndex(t *testing.T) {
	b, err := NewBuilder(format.String)
	require.NoError(t, err)

	require.NoError(t, b.Add(key.String("paris"), 1))
	require.NoError(t, b.Add(key.String("berlin"), 2))
	require.NoError(t, b.Add(key.String("amsterdam"), 3))

	data, err := b.Finish()
	require.NoError(t, err)

	ix, err := ParseIndex(data, endian.GetLittleEndianEngine())
	require.NoError(t, err)
	assert.Equal(t, format.String, ix.Tag())
	assert.Equal(t, 3, ix.Len())

	offsets, err := ix.FindExact(mustEncode(t, key.String("berlin")))
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, offsets)
}

func TestBuilder_Finish_WithStringCompression(t *testing.T) {
	b, err := NewBuilder(format.String, WithStringCompression(format.CompressionZstd))
	require.NoError(t, err)

	require.NoError(t, b.Add(key.String("one"), 1))
	require.NoError(t, b.Add(key.String("two"), 2))

	data, err := b.Finish()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	ix, err := ParseIndexCompressed(data, endian.GetLittleEndianEngine())
	require.NoError(t, err)
	assert.Equal(t, format.String, ix.Tag())
	assert.Equal(t, 2, ix.Len())

	offsets, err := ix.FindExact(mustEncode(t, key.String("two")))
	require.NoError(t, err)
	assert.Equal(t, []uint64{2}, offsets)
}

func TestBuilder_Finish_OffsetsTableTrailer(t *testing.T) {
	b, err := NewBuilder(format.I32, WithOffsetsTableTrailer())
	require.NoError(t, err)

	require.NoError(t, b.Add(key.I32(1), 10))
	require.NoError(t, b.Add(key.I32(2), 20))

	data, err := b.Finish()
	require.NoError(t, err)

	ix, err := ParseIndex(data, endian.GetLittleEndianEngine())
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())
}

func TestBuilder_Finish_TrailerRejectsCompression(t *testing.T) {
	b, err := NewBuilder(format.String, WithStringCompression(format.CompressionZstd), WithOffsetsTableTrailer())
	require.NoError(t, err)

	require.NoError(t, b.Add(key.String("a"), 1))

	_, err = b.Finish()
	require.ErrorIs(t, err, errs.ErrUnsupportedType)
}

func mustEncode(t *testing.T, k key.Key) []byte {
	t.Helper()

	b, err := key.Encode(k)
	require.NoError(t, err)

	return b
}
