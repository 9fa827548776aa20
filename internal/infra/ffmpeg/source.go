// Package ffmpeg implements port.FrameSource on top of the ffmpeg and
// ffprobe binaries. Frames are decoded one timestamp at a time as raw RGBA,
// downscaled in-process with a Catmull-Rom filter and re-encoded as JPEG.
package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/entrez/bifgen/internal/bif"
	"github.com/entrez/bifgen/internal/domain/entity"
	"github.com/entrez/bifgen/internal/domain/port"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

type SourceConfig struct {
	FFmpegBin   string
	FFprobeBin  string
	JPEGQuality int
	// Workers > 1 samples timestamps across a pool. Output order is
	// preserved either way; the first decode failure aborts the run.
	Workers int
}

type Source struct {
	cfg    SourceConfig
	logger *zap.Logger
}

func NewSource(cfg SourceConfig, logger *zap.Logger) *Source {
	if cfg.FFmpegBin == "" {
		cfg.FFmpegBin = "ffmpeg"
	}
	if cfg.FFprobeBin == "" {
		cfg.FFprobeBin = "ffprobe"
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 75
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Source{cfg: cfg, logger: logger}
}

// Open probes the video and returns a handle with its metadata. Missing
// files, unreadable streams and zero dimensions surface as bif.SourceError.
func (s *Source) Open(ctx context.Context, path string) (*port.VideoHandle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &bif.SourceError{Path: path, Err: err}
	}

	width, height, err := s.probeDimensions(ctx, path)
	if err != nil {
		return nil, &bif.SourceError{Path: path, Err: err}
	}

	durationSec, err := s.probeDuration(ctx, path)
	if err != nil {
		return nil, &bif.SourceError{Path: path, Err: err}
	}

	meta, err := entity.NewVideoMetadata(width, height, durationSec)
	if err != nil {
		return nil, &bif.SourceError{Path: path, Err: err}
	}

	s.logger.Info("video probed",
		zap.String("path", path),
		zap.Int("width", meta.Width),
		zap.Int("height", meta.Height),
		zap.Int("duration_s", meta.DurationSec),
	)

	return &port.VideoHandle{Path: path, Meta: meta}, nil
}

// Sample emits one frame per timestamp t = offset + k*interval while
// t*1000 < duration_ms, in ordinal order.
func (s *Source) Sample(ctx context.Context, h *port.VideoHandle, spec entity.SampleSpec, emit func(entity.Frame) error) error {
	total := spec.Count(h.Meta)
	if total == 0 {
		return nil
	}
	if s.cfg.Workers > 1 {
		return s.sampleParallel(ctx, h, spec, total, emit)
	}

	for k := 0; k < total; k++ {
		data, err := s.extractAt(ctx, h, spec.Timestamp(k), spec.Target)
		if err != nil {
			return &bif.DecodeError{Ordinal: k + 1, TimestampSec: spec.Timestamp(k), Err: err}
		}
		if err := emit(entity.Frame{Ordinal: k + 1, Data: data}); err != nil {
			return err
		}
	}
	return nil
}

// sampleParallel fans timestamps out over a worker pool. Results land in a
// slot per ordinal so emission order matches capture order; the pool is
// cancelled on the first failure so no partial sequence escapes.
func (s *Source) sampleParallel(ctx context.Context, h *port.VideoHandle, spec entity.SampleSpec, total int, emit func(entity.Frame) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([][]byte, total)
	jobs := make(chan int)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel()
	}

	for w := 0; w < s.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := range jobs {
				data, err := s.extractAt(ctx, h, spec.Timestamp(k), spec.Target)
				if err != nil {
					fail(&bif.DecodeError{Ordinal: k + 1, TimestampSec: spec.Timestamp(k), Err: err})
					return
				}
				results[k] = data
			}
		}()
	}

	go func() {
		defer close(jobs)
		for k := 0; k < total; k++ {
			select {
			case jobs <- k:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	if firstErr != nil {
		return firstErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for k, data := range results {
		if err := emit(entity.Frame{Ordinal: k + 1, Data: data}); err != nil {
			return err
		}
	}
	return nil
}

// extractAt decodes the frame nearest tSec at native resolution, scales it
// to target and encodes a JPEG.
func (s *Source) extractAt(ctx context.Context, h *port.VideoHandle, tSec int, target entity.Resolution) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.cfg.FFmpegBin,
		"-ss", strconv.Itoa(tSec),
		"-i", h.Path,
		"-frames:v", "1",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"pipe:1",
	)
	cmd.Stderr = nil

	raw, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg: %w", err)
	}

	want := rawFrameSize(h.Meta.Width, h.Meta.Height)
	if len(raw) != want {
		return nil, fmt.Errorf("raw frame is %d bytes, want %d", len(raw), want)
	}

	src := &image.RGBA{
		Pix:    raw,
		Stride: 4 * h.Meta.Width,
		Rect:   image.Rect(0, 0, h.Meta.Width, h.Meta.Height),
	}

	dst := image.NewRGBA(image.Rect(0, 0, target.Width, target.Height))
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: s.cfg.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// rawFrameSize is the byte length of one rawvideo RGBA frame.
func rawFrameSize(width, height int) int {
	return width * height * 4
}

func (s *Source) probeDimensions(ctx context.Context, path string) (int, int, error) {
	cmd := exec.CommandContext(ctx, s.cfg.FFprobeBin,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height",
		"-of", "csv=s=x:p=0",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe dimensions: %w", err)
	}
	return parseDimensions(string(out))
}

func (s *Source) probeDuration(ctx context.Context, path string) (int, error) {
	cmd := exec.CommandContext(ctx, s.cfg.FFprobeBin,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe duration: %w", err)
	}
	return parseDurationSec(string(out))
}

func parseDimensions(out string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(out), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected ffprobe dimensions output %q", out)
	}
	width, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse width %q: %w", parts[0], err)
	}
	height, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse height %q: %w", parts[1], err)
	}
	return width, height, nil
}

// parseDurationSec truncates ffprobe's fractional duration to whole seconds.
// Existing BIF consumers expect the truncated value to drive the sample
// count, so the fraction is dropped before any ms conversion.
func parseDurationSec(out string) (int, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", out, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("negative duration %f", f)
	}
	return int(f), nil
}
