package bif

import (
	"context"
	"fmt"
	"os"

	"github.com/entrez/bifgen/internal/domain/entity"
	"github.com/entrez/bifgen/internal/domain/port"
	"go.uber.org/zap"
)

// State names the assembler's pipeline stage.
type State string

const (
	StateExtracting State = "EXTRACTING"
	StateIndexing   State = "INDEXING"
	StateWriting    State = "WRITING"
	StateDone       State = "DONE"
	StateFailed     State = "FAILED"
)

// Progress is reported to the optional callback at frame granularity while
// extracting and once per state transition. It is a pure side channel and
// has no effect on the produced file.
type Progress struct {
	State State
	Frame int
	Total int
}

type ProgressFunc func(Progress)

// Result summarizes a completed assembly.
type Result struct {
	Path       string
	FrameCount int
	FileSize   int64
}

// Assembler drives FrameSource -> BuildIndex -> Writer end to end. Encoded
// frames are buffered in memory between extraction and writing: offsets are
// prefix sums of the frame lengths, so every length must be known before
// the first payload byte is emitted.
type Assembler struct {
	source   port.FrameSource
	logger   *zap.Logger
	progress ProgressFunc
}

func NewAssembler(source port.FrameSource, logger *zap.Logger, progress ProgressFunc) *Assembler {
	return &Assembler{source: source, logger: logger, progress: progress}
}

// Assemble samples the video behind h per spec and writes the BIF to dest.
// The file is staged at dest + ".part" and renamed into place only after
// every byte is written, so dest never holds a partial artifact. Zero
// sampled frames still produce a valid empty BIF. On any error dest is left
// untouched and the staging file is removed.
func (a *Assembler) Assemble(ctx context.Context, h *port.VideoHandle, spec entity.SampleSpec, dest string) (*Result, error) {
	total := spec.Count(h.Meta)
	log := a.logger.With(
		zap.String("video", h.Path),
		zap.Int("expected_frames", total),
		zap.Int("interval_s", spec.IntervalSec),
	)

	log.Info("extracting frames")
	a.report(Progress{State: StateExtracting, Total: total})

	frames := make([][]byte, 0, total)
	err := a.source.Sample(ctx, h, spec, func(f entity.Frame) error {
		if f.Ordinal != len(frames)+1 {
			return fmt.Errorf("frame ordinal %d out of sequence, want %d", f.Ordinal, len(frames)+1)
		}
		frames = append(frames, f.Data)
		a.report(Progress{State: StateExtracting, Frame: f.Ordinal, Total: total})
		return nil
	})
	if err != nil {
		a.report(Progress{State: StateFailed, Frame: len(frames), Total: total})
		return nil, err
	}

	a.report(Progress{State: StateIndexing, Frame: len(frames), Total: total})
	lengths := make([]int, len(frames))
	for i, f := range frames {
		lengths[i] = len(f)
	}
	ix := BuildIndex(lengths, spec.IntervalMS())

	log.Info("writing bif",
		zap.Int("frames", ix.FrameCount()),
		zap.Uint32("file_size", ix.TotalSize()),
	)
	a.report(Progress{State: StateWriting, Frame: len(frames), Total: total})

	if err := a.writeStaged(ix, frames, dest); err != nil {
		a.report(Progress{State: StateFailed, Frame: len(frames), Total: total})
		return nil, err
	}

	a.report(Progress{State: StateDone, Frame: len(frames), Total: total})
	return &Result{
		Path:       dest,
		FrameCount: ix.FrameCount(),
		FileSize:   int64(ix.TotalSize()),
	}, nil
}

func (a *Assembler) writeStaged(ix Index, frames [][]byte, dest string) error {
	staging := dest + ".part"

	f, err := os.Create(staging)
	if err != nil {
		return &IOError{Path: staging, Err: err}
	}

	if err := Write(f, ix, frames); err != nil {
		f.Close()
		os.Remove(staging)
		return &IOError{Path: staging, Err: err}
	}
	if err := f.Close(); err != nil {
		os.Remove(staging)
		return &IOError{Path: staging, Err: err}
	}

	if err := os.Rename(staging, dest); err != nil {
		os.Remove(staging)
		return &IOError{Path: dest, Err: err}
	}
	return nil
}

func (a *Assembler) report(p Progress) {
	if a.progress != nil {
		a.progress(p)
	}
}
