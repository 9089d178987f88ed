package query

import (
	"sort"

	"github.com/cityjson/flatcitybuf/attrindex/rangeio"
)

// CoalesceOffsets turns a sorted-unique offset vector (an Execute result)
// into the coalesced byte ranges spec.md §6.3 calls HttpResult, merging
// touching or overlapping records, and records whose gap is less than
// threshold bytes,
// into one range (spec.md §4.5's combine_request_threshold). recordSize
// reports how many bytes the record at a given offset occupies in the
// feature file; the caller supplies it since attrindex has no visibility
// into the feature format itself.
func CoalesceOffsets(offsets []uint64, recordSize func(uint64) uint64, threshold uint64) []rangeio.ByteRange {
	if len(offsets) == 0 {
		return nil
	}

	ranges := make([]rangeio.ByteRange, len(offsets))
	for i, off := range offsets {
		ranges[i] = rangeio.ByteRange{Start: off, Length: recordSize(off)}
	}

	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Start < ranges[j].Start })

	out := make([]rangeio.ByteRange, 0, len(ranges))
	cur := ranges[0]

	for _, r := range ranges[1:] {
		curEnd := cur.Start + cur.Length
		if r.Start <= curEnd || r.Start-curEnd < threshold {
			if end := r.Start + r.Length; end > curEnd {
				cur.Length = end - cur.Start
			}

			continue
		}

		out = append(out, cur)
		cur = r
	}

	return append(out, cur)
}
