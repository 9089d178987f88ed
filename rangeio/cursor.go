package rangeio

// CursorClient is an optional capability a RangeClient may implement when
// its reads are not purely position-independent — e.g. it multiplexes
// several logical readers over one shared, stateful cursor (a raw socket,
// a non-seekable stream). query.Engine checks for this interface and, when
// present, saves and restores the cursor around every per-index call
// (spec.md §4.4.3).
//
// Neither FileClient (ReadAt) nor HTTPClient (stateless ranged requests)
// implements it, since both already serve ReadRange without touching any
// shared cursor; CursorClient exists for RangeClient implementations a host
// supplies that do share one.
type CursorClient interface {
	// Cursor returns the client's current read position.
	Cursor() int64

	// SeekCursor repositions the client's read cursor.
	SeekCursor(pos int64)
}
