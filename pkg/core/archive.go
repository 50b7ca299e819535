package core

// Archive layout constants
const (
	HeaderOffset = 256 // Fixed prolog before the header
	HeaderSize   = 16  // version, entry count, directory offset, reserved

	EntrySlotSize = 316 // Distance between directory records
	EntryPathSize = 256 // NUL-padded path field
	EntryMetaSize = 24  // Metadata following the path; the rest of the slot is reserved

	// Offsets inside the metadata field
	metaSizeOffset   = 8
	metaOffsetOffset = 12

	// PayloadPrefixSize is skipped before the ciphertext of encrypted entries.
	PayloadPrefixSize = 16

	// ArchiveMarker identifies path components naming the archive itself.
	ArchiveMarker = ".pak"

	// ExportDir is appended to the output root.
	ExportDir = "Export"
)

// Header is the fixed record at HeaderOffset
type Header struct {
	Version         uint32
	EntryCount      uint32
	DirectoryOffset uint32
}

// Entry is one directory record
type Entry struct {
	Index          int    // Position in the directory
	Path           string // Relative path as stored, leading separator removed
	CompressedSize uint32 // Bytes stored at PayloadOffset
	PayloadOffset  uint32 // Absolute offset of the payload
}

// Outcome is the per-entry result class used by the report
type Outcome int

const (
	Written Outcome = iota // Plaintext written to disk
	Skipped                // No key matched or inflate failed
	Failed                 // I/O, format or path error
)

func (o Outcome) String() string {
	switch o {
	case Written:
		return "written"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}
