package format

// On-disk constants for the single-index format (spec.md §6.1) and the
// multi-index container catalog (spec.md §6.2).
const (
	// CatalogMagic is "FCBI" read as a big-endian u32 (written little-endian,
	// its on-disk bytes are "IBCF").
	CatalogMagic uint32 = 0x46434249

	// CatalogVersion is the only supported catalog version.
	CatalogVersion uint32 = 1

	// IndexHeaderSize is the size, in bytes, of a single index's header
	// (TypeTag u32 + entry_count u64).
	IndexHeaderSize = 4 + 8

	// OffsetsTableTrailerMagic marks the optional offsets_table trailer
	// described in SPEC_FULL §5.2 ("OFFT").
	OffsetsTableTrailerMagic uint32 = 0x4F464654
)
