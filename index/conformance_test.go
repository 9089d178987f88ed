package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/format"
	"github.com/cityjson/flatcitybuf/attrindex/key"
)

func TestValidateConformance_RejectsNonAscendingKeys(t *testing.T) {
	entries := []Entry{
		{Key: mustEncode(t, key.I32(5)), Offsets: []uint64{0}},
		{Key: mustEncode(t, key.I32(3)), Offsets: []uint64{1}},
	}

	err := ValidateConformance(format.I32, entries)
	assert.ErrorIs(t, err, errs.ErrFraming)
}

func TestValidateConformance_RejectsDuplicateKeys(t *testing.T) {
	entries := []Entry{
		{Key: mustEncode(t, key.I32(5)), Offsets: []uint64{0}},
		{Key: mustEncode(t, key.I32(5)), Offsets: []uint64{1}},
	}

	err := ValidateConformance(format.I32, entries)
	assert.ErrorIs(t, err, errs.ErrFraming)
}

func TestValidateConformance_RejectsWrongFixedWidth(t *testing.T) {
	entries := []Entry{
		{Key: []byte{1, 2, 3}, Offsets: []uint64{0}},
	}

	err := ValidateConformance(format.I32, entries)
	assert.ErrorIs(t, err, errs.ErrFraming)
}

func TestValidateConformance_AcceptsAscendingFixedWidth(t *testing.T) {
	entries := []Entry{
		{Key: mustEncode(t, key.I32(1)), Offsets: []uint64{0}},
		{Key: mustEncode(t, key.I32(2)), Offsets: []uint64{1}},
	}

	assert.NoError(t, ValidateConformance(format.I32, entries))
}
