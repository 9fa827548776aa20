package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobLifecycle(t *testing.T) {
	job := NewJob("user-1", "user-1/movie.mkv", ModeHD, 10, 1<<30, 3)

	require.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 0, job.Attempt)
	assert.True(t, job.CanRetry())

	job.MarkProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	assert.Equal(t, 1, job.Attempt)

	job.MarkCompleted("user-1/movie-HD.bif", 427, 3_200_000, 4271)
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Equal(t, "user-1/movie-HD.bif", job.BifKey)
	assert.Equal(t, 427, job.FrameCount)
	assert.Equal(t, int64(3_200_000), job.BifSize)
	assert.Equal(t, 4271, job.VideoDuration)
	require.NotNil(t, job.CompletedAt)
}

func TestJobRetryBudget(t *testing.T) {
	job := NewJob("user-1", "user-1/movie.mkv", ModeSD, 10, 0, 2)

	job.MarkProcessing()
	job.MarkFailed("decode frame 5 (@40s): broken stream")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.True(t, job.CanRetry())

	job.MarkProcessing()
	job.MarkFailed("decode frame 5 (@40s): broken stream")
	assert.False(t, job.CanRetry())
	assert.Contains(t, job.ErrorMessage, "decode frame 5")
}
