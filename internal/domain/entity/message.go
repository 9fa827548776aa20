package entity

import "github.com/google/uuid"

// BifRequestMessage is the inbound message from the bif.generate queue.
// Mode, IntervalSec and OffsetSec are optional overrides; zero values fall
// back to the worker's configured defaults.
type BifRequestMessage struct {
	JobID       uuid.UUID `json:"job_id"`
	UserID      string    `json:"user_id"`
	VideoKey    string    `json:"video_key"`
	FileSize    int64     `json:"file_size"`
	Mode        string    `json:"mode,omitempty"`
	IntervalSec int       `json:"interval_seconds,omitempty"`
	OffsetSec   int       `json:"offset_seconds,omitempty"`
	UserEmail   string    `json:"user_email"`
}

// BifStatusMessage is the outbound message published to the bif.status queue.
type BifStatusMessage struct {
	JobID        uuid.UUID `json:"job_id"`
	UserID       string    `json:"user_id"`
	Status       JobStatus `json:"status"`
	VideoKey     string    `json:"video_key"`
	BifKey       string    `json:"bif_key,omitempty"`
	Mode         string    `json:"mode,omitempty"`
	FrameCount   int       `json:"frame_count,omitempty"`
	BifSize      int64     `json:"bif_size,omitempty"`
	Duration     int       `json:"duration_seconds,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	Attempt      int       `json:"attempt"`
	MaxAttempts  int       `json:"max_attempts"`
}
