package index

import (
	"fmt"

	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/format"
	"github.com/cityjson/flatcitybuf/attrindex/key"
)

// ValidateConformance checks the two on-disk invariants spec.md §6.1
// requires of a serialized index's entries: keys strictly ascending
// under the codec's total order (no duplicates, no inversions), and, for
// a fixed-width tag, every entry's key_len matching that tag's declared
// width. ParseIndex and ParseIndexCompressed call this once every entry
// is materialized; a violation fails parsing with ErrFraming rather than
// producing an index that silently returns wrong binary-search results.
func ValidateConformance(tag format.TypeTag, entries []Entry) error {
	width, fixed := tag.FixedWidth()

	for i, e := range entries {
		if fixed && len(e.Key) != width {
			return fmt.Errorf("%w: entry %d: key_len %d does not match %s's fixed width %d",
				errs.ErrFraming, i, len(e.Key), tag, width)
		}

		if i == 0 {
			continue
		}

		c, err := key.Compare(entries[i-1].Key, e.Key, tag)
		if err != nil {
			return err
		}

		if c >= 0 {
			return fmt.Errorf("%w: entry %d: keys not strictly ascending", errs.ErrFraming, i)
		}
	}

	return nil
}
