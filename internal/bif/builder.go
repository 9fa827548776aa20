// Package bif assembles BIF (Base Index Frame) trickplay containers: a
// 64-byte header, an index table of (ordinal, offset) pairs terminated by a
// sentinel entry, and the concatenated JPEG payloads. Consumers seek into
// the file in O(1) per frame via the index.
package bif

const (
	// HeaderSize is the fixed byte length of the BIF header.
	HeaderSize = 64
	// IndexEntrySize is the byte length of one index entry.
	IndexEntrySize = 8
	// SentinelOrdinal marks the terminal index entry; its offset field holds
	// the total file size so readers can derive the last frame's length.
	SentinelOrdinal = 0xFFFFFFFF
	// Version is the only BIF version this package produces.
	Version = 0
)

// Magic is the 8-byte BIF file signature.
var Magic = [8]byte{0x89, 0x42, 0x49, 0x46, 0x0D, 0x0A, 0x1A, 0x0A}

// Header holds the variable fields of the 64-byte BIF header. The remaining
// 44 bytes are reserved and always zero.
type Header struct {
	Version    uint32
	FrameCount uint32
	IntervalMS uint32
}

// IndexEntry maps a 0-based frame ordinal to an absolute byte offset.
type IndexEntry struct {
	Ordinal uint32
	Offset  uint32
}

// Index is a fully computed BIF layout: header plus N+1 index entries, the
// last being the sentinel.
type Index struct {
	Header  Header
	Entries []IndexEntry
}

// FrameCount is the number of payload frames (the sentinel excluded).
func (ix Index) FrameCount() int {
	return len(ix.Entries) - 1
}

// TotalSize is the byte length of the complete file, taken from the
// sentinel entry.
func (ix Index) TotalSize() uint32 {
	return ix.Entries[len(ix.Entries)-1].Offset
}

// FrameLength returns the payload length of 0-based frame n, derived from
// adjacent offsets.
func (ix Index) FrameLength(n int) uint32 {
	return ix.Entries[n+1].Offset - ix.Entries[n].Offset
}

// BuildIndex computes the header and index table for frames of the given
// byte lengths, in ordinal order. Offsets are prefix sums starting at the
// end of the index table, so the payload regions are contiguous with no
// gaps. lengths may be empty: the result is a structurally valid empty BIF
// whose only entry is the sentinel.
func BuildIndex(lengths []int, intervalMS uint32) Index {
	n := len(lengths)
	entries := make([]IndexEntry, 0, n+1)

	offset := uint32(HeaderSize + IndexEntrySize*(n+1))
	for i, l := range lengths {
		entries = append(entries, IndexEntry{Ordinal: uint32(i), Offset: offset})
		offset += uint32(l)
	}
	entries = append(entries, IndexEntry{Ordinal: SentinelOrdinal, Offset: offset})

	return Index{
		Header: Header{
			Version:    Version,
			FrameCount: uint32(n),
			IntervalMS: intervalMS,
		},
		Entries: entries,
	}
}
