package entity

import (
	"fmt"
	"math"
)

// VideoMetadata describes the source video. Derived once at probe time and
// immutable afterwards.
type VideoMetadata struct {
	Width       int
	Height      int
	Aspect      float64
	DurationSec int
	DurationMS  int
}

// NewVideoMetadata validates the probed dimensions and derives the aspect
// ratio and millisecond duration. durationSec is already truncated to whole
// seconds by the prober; DurationMS is intentionally computed from the
// truncated value so the sampled frame count matches existing consumers.
func NewVideoMetadata(width, height, durationSec int) (VideoMetadata, error) {
	if width <= 0 || height <= 0 {
		return VideoMetadata{}, fmt.Errorf("invalid video dimensions %dx%d", width, height)
	}
	if durationSec < 0 {
		return VideoMetadata{}, fmt.Errorf("invalid video duration %ds", durationSec)
	}
	return VideoMetadata{
		Width:       width,
		Height:      height,
		Aspect:      float64(width) / float64(height),
		DurationSec: durationSec,
		DurationMS:  durationSec * 1000,
	}, nil
}

// Mode is a named thumbnail resolution profile.
type Mode string

const (
	ModeSD Mode = "sd"
	ModeHD Mode = "hd"
)

// baseHeights maps each mode to its thumbnail height in pixels. Widths are
// never taken from here; they are recomputed from the source aspect ratio.
var baseHeights = map[Mode]int{
	ModeSD: 136,
	ModeHD: 180,
}

func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if _, ok := baseHeights[m]; !ok {
		return "", fmt.Errorf("unknown resolution mode %q", s)
	}
	return m, nil
}

// BaseHeight returns the thumbnail height for the mode.
func (m Mode) BaseHeight() int {
	return baseHeights[m]
}

// Suffix is the uppercase tag used in artifact names, e.g. "movie-HD.bif".
func (m Mode) Suffix() string {
	switch m {
	case ModeSD:
		return "SD"
	default:
		return "HD"
	}
}

// Resolution is a concrete target size in pixels.
type Resolution struct {
	Width  int
	Height int
}

// Resolve computes the target resolution for the mode against a source
// aspect ratio: height is fixed per mode, width = round(aspect * height).
func (m Mode) Resolve(aspect float64) Resolution {
	h := m.BaseHeight()
	return Resolution{
		Width:  int(math.Round(aspect * float64(h))),
		Height: h,
	}
}

// SampleSpec defines where and how often frames are captured.
type SampleSpec struct {
	OffsetSec   int
	IntervalSec int
	Target      Resolution
}

// NewSampleSpec validates the sampling parameters.
func NewSampleSpec(offsetSec, intervalSec int, target Resolution) (SampleSpec, error) {
	if offsetSec < 0 {
		return SampleSpec{}, fmt.Errorf("sample offset must be >= 0, got %d", offsetSec)
	}
	if intervalSec <= 0 {
		return SampleSpec{}, fmt.Errorf("sample interval must be > 0, got %d", intervalSec)
	}
	return SampleSpec{OffsetSec: offsetSec, IntervalSec: intervalSec, Target: target}, nil
}

// IntervalMS is the capture interval in milliseconds, as stored in the BIF
// header.
func (s SampleSpec) IntervalMS() uint32 {
	return uint32(s.IntervalSec * 1000)
}

// Timestamp returns the capture time in seconds for 0-based sample slot k.
func (s SampleSpec) Timestamp(k int) int {
	return s.OffsetSec + k*s.IntervalSec
}

// Count is the number of frames the spec yields for a video: all k with
// (offset + k*interval) * 1000 < duration_ms.
func (s SampleSpec) Count(meta VideoMetadata) int {
	n := 0
	for s.Timestamp(n)*1000 < meta.DurationMS {
		n++
	}
	return n
}

// Frame is one captured thumbnail: a 1-based capture ordinal and the encoded
// JPEG bytes. Frames are immutable once produced.
type Frame struct {
	Ordinal int
	Data    []byte
}

func (f Frame) Size() int {
	return len(f.Data)
}
