package bif

import "fmt"

// SourceError reports a video that is missing, unreadable, or has invalid
// dimensions. Nothing has been produced when it is returned.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// DecodeError reports a sampled timestamp that failed to decode. It is fatal
// to the whole run: no partial BIF is ever written after one.
type DecodeError struct {
	Ordinal      int
	TimestampSec int
	Err          error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame %d (@%ds): %v", e.Ordinal, e.TimestampSec, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IOError reports a failure writing the output artifact. The destination is
// left untouched; only the staging file may have existed and it is removed.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
