package rangeio

import (
	"context"
	"fmt"
	"os"

	"github.com/cityjson/flatcitybuf/attrindex/errs"
)

// FileClient is a RangeClient backed by a local *os.File. It uses ReadAt
// directly; there is no library surface a pread wrapper could delegate to,
// so this implementation is stdlib only (see DESIGN.md).
type FileClient struct {
	f *os.File
}

var _ RangeClient = (*FileClient)(nil)

// OpenFile opens path for reading and returns a FileClient over it.
func OpenFile(path string) (*FileClient, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrIo, err)
	}

	return &FileClient{f: f}, nil
}

// NewFileClient wraps an already-open file.
func NewFileClient(f *os.File) *FileClient {
	return &FileClient{f: f}
}

func (c *FileClient) ReadRange(_ context.Context, offset int64, length int) ([]byte, error) {
	buf := make([]byte, length)

	n, err := c.f.ReadAt(buf, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: read %d bytes at offset %d: %w", errs.ErrIo, length, offset, err)
	}

	return buf[:n], nil
}

func (c *FileClient) Size(_ context.Context) (int64, error) {
	info, err := c.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", errs.ErrIo, err)
	}

	return info.Size(), nil
}

func (c *FileClient) Close() error {
	return c.f.Close()
}
