package bif

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
)

// File is a parsed BIF container.
type File struct {
	Index   Index
	payload []byte
}

// FrameCount is the number of embedded frames.
func (f *File) FrameCount() int {
	return f.Index.FrameCount()
}

// Frame returns the JPEG bytes of 0-based frame n, sliced out of the
// payload per the index.
func (f *File) Frame(n int) ([]byte, error) {
	if n < 0 || n >= f.Index.FrameCount() {
		return nil, fmt.Errorf("frame %d out of range [0,%d)", n, f.Index.FrameCount())
	}
	start := f.Index.Entries[n].Offset - f.payloadStart()
	end := f.Index.Entries[n+1].Offset - f.payloadStart()
	return f.payload[start:end], nil
}

func (f *File) payloadStart() uint32 {
	return f.Index.Entries[0].Offset
}

// Parse validates and decodes a complete BIF file held in memory.
func Parse(data []byte) (*File, error) {
	if len(data) < HeaderSize+IndexEntrySize {
		return nil, fmt.Errorf("file too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:8], Magic[:]) {
		return nil, fmt.Errorf("bad magic %x", data[:8])
	}

	h := Header{
		Version:    binary.LittleEndian.Uint32(data[8:12]),
		FrameCount: binary.LittleEndian.Uint32(data[12:16]),
		IntervalMS: binary.LittleEndian.Uint32(data[16:20]),
	}
	if h.Version != Version {
		return nil, fmt.Errorf("unsupported version %d", h.Version)
	}

	n := int(h.FrameCount)
	indexEnd := HeaderSize + IndexEntrySize*(n+1)
	if len(data) < indexEnd {
		return nil, fmt.Errorf("file truncated inside index: %d bytes, need %d", len(data), indexEnd)
	}

	entries := make([]IndexEntry, 0, n+1)
	for i := 0; i <= n; i++ {
		base := HeaderSize + IndexEntrySize*i
		entries = append(entries, IndexEntry{
			Ordinal: binary.LittleEndian.Uint32(data[base : base+4]),
			Offset:  binary.LittleEndian.Uint32(data[base+4 : base+8]),
		})
	}

	if entries[n].Ordinal != SentinelOrdinal {
		return nil, fmt.Errorf("missing sentinel entry, got ordinal %#x", entries[n].Ordinal)
	}
	if entries[0].Offset != uint32(indexEnd) {
		return nil, fmt.Errorf("first frame offset %d, want %d", entries[0].Offset, indexEnd)
	}
	if entries[n].Offset != uint32(len(data)) {
		return nil, fmt.Errorf("sentinel offset %d does not match file size %d", entries[n].Offset, len(data))
	}
	for i := 0; i < n; i++ {
		if entries[i+1].Offset < entries[i].Offset {
			return nil, fmt.Errorf("index offsets not monotonic at entry %d", i)
		}
	}

	return &File{
		Index:   Index{Header: h, Entries: entries},
		payload: data[indexEnd:],
	}, nil
}

// ReadFile parses the BIF file at path.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bif: %w", err)
	}
	return Parse(data)
}
