package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cityjson/flatcitybuf/attrindex/rangeio"
)

func fixedRecordSize(n uint64) func(uint64) uint64 {
	return func(uint64) uint64 { return n }
}

func TestCoalesceOffsets_MergesWithinThreshold(t *testing.T) {
	got := CoalesceOffsets([]uint64{0, 100, 210}, fixedRecordSize(100), 20)
	assert.Equal(t, []rangeio.ByteRange{
		{Start: 0, Length: 310},
	}, got)
}

func TestCoalesceOffsets_SplitsBeyondThreshold(t *testing.T) {
	got := CoalesceOffsets([]uint64{0, 500}, fixedRecordSize(100), 20)
	assert.Equal(t, []rangeio.ByteRange{
		{Start: 0, Length: 100},
		{Start: 500, Length: 100},
	}, got)
}

func TestCoalesceOffsets_Empty(t *testing.T) {
	assert.Nil(t, CoalesceOffsets(nil, fixedRecordSize(10), 0))
}

func TestCoalesceOffsets_UnsortedInputIsSorted(t *testing.T) {
	got := CoalesceOffsets([]uint64{200, 0, 100}, fixedRecordSize(100), 0)
	assert.Equal(t, []rangeio.ByteRange{
		{Start: 0, Length: 300},
	}, got)
}
