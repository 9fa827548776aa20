package port

import (
	"context"

	"github.com/entrez/bifgen/internal/domain/entity"
)

// VideoHandle is an opened, probed source video.
type VideoHandle struct {
	Path string
	Meta entity.VideoMetadata
}

// FrameSource produces the ordered thumbnail sequence for a video. Sample
// calls emit once per captured frame, in ordinal order; the sequence is
// finite and consumed exactly once. Any decode failure aborts the sequence
// and is returned as-is, partial output is never emitted past it.
type FrameSource interface {
	Open(ctx context.Context, path string) (*VideoHandle, error)
	Sample(ctx context.Context, h *VideoHandle, spec entity.SampleSpec, emit func(entity.Frame) error) error
}
