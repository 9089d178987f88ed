// Package rangeio implements the buffered range-client abstraction (C5)
// that the streaming index reader and container catalog use for seek-based
// byte access, whether backed by a local file or a remote HTTP object
// (spec.md §4.5).
package rangeio

import "context"

// RangeClient reads an arbitrary byte range from some backing store. It is
// the single abstraction stream.Reader and catalog.Catalog use for I/O, so
// neither cares whether the bytes live in a local file or behind an HTTP
// range request.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type RangeClient interface {
	// ReadRange returns exactly length bytes starting at offset, or an
	// error wrapping errs.ErrIo.
	ReadRange(ctx context.Context, offset int64, length int) ([]byte, error)

	// Size returns the total byte size of the backing object.
	Size(ctx context.Context) (int64, error)

	// Close releases any resources (open file descriptors, connections)
	// held by the client.
	Close() error
}

// ByteRange is one coalesced region of the feature file to fetch, the Go
// shape of spec.md §6.3's HttpResult entries.
type ByteRange struct {
	Start  uint64
	Length uint64
}
