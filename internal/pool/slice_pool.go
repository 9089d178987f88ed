package pool

import "sync"

// Slice pools for efficient reuse of typed slices on the builder and
// streaming-reader hot paths (offset lists, small read windows).
var (
	uint64SlicePool = sync.Pool{
		New: func() any { return &[]uint64{} },
	}
	byteSlicePool = sync.Pool{
		New: func() any { return &[]byte{} },
	}
)

// GetUint64Slice retrieves and resizes a uint64 slice from the pool.
//
// The returned slice has length equal to size. The caller must call the
// returned cleanup function (typically via defer) to return the slice to
// the pool.
func GetUint64Slice(size int) ([]uint64, func()) {
	ptr, _ := uint64SlicePool.Get().(*[]uint64)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]uint64, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { uint64SlicePool.Put(ptr) }
}

// GetByteSlice retrieves and resizes a byte slice from the pool, useful for
// small fixed-size reads (framing headers, key bytes) during streaming
// queries.
func GetByteSlice(size int) ([]byte, func()) {
	ptr, _ := byteSlicePool.Get().(*[]byte)
	slice := (*ptr)[:0]

	if cap(slice) < size {
		slice = make([]byte, size)
		*ptr = slice
	} else {
		slice = slice[:size]
		*ptr = slice
	}

	return slice, func() { byteSlicePool.Put(ptr) }
}
