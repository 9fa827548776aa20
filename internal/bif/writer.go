package bif

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Writer emits a BIF file to an append-only sink in a single sequential
// pass: header, index table, then payloads. It never seeks; all offsets
// must already be computed by BuildIndex. All multi-byte integers are
// little-endian. After any error the sink contents are indeterminate and
// the caller must discard them.
type Writer struct {
	w io.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader emits the magic bytes, version, frame count, interval and the
// 44 reserved zero bytes.
func (bw *Writer) WriteHeader(h Header) error {
	if _, err := bw.w.Write(Magic[:]); err != nil {
		return fmt.Errorf("write magic: %w", err)
	}
	for _, v := range []uint32{h.Version, h.FrameCount, h.IntervalMS} {
		if err := binary.Write(bw.w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write header field: %w", err)
		}
	}
	if _, err := bw.w.Write(make([]byte, HeaderSize-20)); err != nil {
		return fmt.Errorf("write reserved bytes: %w", err)
	}
	return nil
}

// WriteIndex emits the index table, sentinel included, as little-endian
// (ordinal, offset) pairs.
func (bw *Writer) WriteIndex(entries []IndexEntry) error {
	for _, e := range entries {
		if err := binary.Write(bw.w, binary.LittleEndian, e.Ordinal); err != nil {
			return fmt.Errorf("write index ordinal: %w", err)
		}
		if err := binary.Write(bw.w, binary.LittleEndian, e.Offset); err != nil {
			return fmt.Errorf("write index offset: %w", err)
		}
	}
	return nil
}

// WriteFrame emits one frame's raw JPEG bytes. Frames must be written in
// ordinal order with nothing in between.
func (bw *Writer) WriteFrame(data []byte) error {
	if _, err := bw.w.Write(data); err != nil {
		return fmt.Errorf("write frame payload: %w", err)
	}
	return nil
}

// Write emits a complete BIF file for a precomputed index and its frames.
// len(frames) must equal ix.FrameCount() and each frame's length must match
// the lengths the index was built from.
func Write(w io.Writer, ix Index, frames [][]byte) error {
	bw := NewWriter(w)
	if err := bw.WriteHeader(ix.Header); err != nil {
		return err
	}
	if err := bw.WriteIndex(ix.Entries); err != nil {
		return err
	}
	for _, f := range frames {
		if err := bw.WriteFrame(f); err != nil {
			return err
		}
	}
	return nil
}
