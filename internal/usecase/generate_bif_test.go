package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/entrez/bifgen/internal/bif"
	"github.com/entrez/bifgen/internal/domain/entity"
	"github.com/entrez/bifgen/internal/domain/port"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	jobs map[uuid.UUID]*entity.Job
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: make(map[uuid.UUID]*entity.Job)}
}

func (r *fakeRepo) Create(_ context.Context, job *entity.Job) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeRepo) Update(_ context.Context, job *entity.Job) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Job, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s not found", id)
	}
	return job, nil
}

type fakeStorage struct {
	downloadErr error
	uploaded    map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{uploaded: make(map[string][]byte)}
}

func (s *fakeStorage) DownloadVideo(_ context.Context, _ string, destPath string) error {
	if s.downloadErr != nil {
		return s.downloadErr
	}
	return os.WriteFile(destPath, []byte("not really a video"), 0644)
}

func (s *fakeStorage) UploadBif(_ context.Context, objectKey string, reader io.Reader, _ int64) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	s.uploaded[objectKey] = data
	return nil
}

type fakeFrameSource struct {
	frames [][]byte
	failAt int
}

func (s *fakeFrameSource) Open(_ context.Context, path string) (*port.VideoHandle, error) {
	meta, err := entity.NewVideoMetadata(1920, 1080, len(s.frames)*10)
	if err != nil {
		return nil, err
	}
	return &port.VideoHandle{Path: path, Meta: meta}, nil
}

func (s *fakeFrameSource) Sample(_ context.Context, _ *port.VideoHandle, spec entity.SampleSpec, emit func(entity.Frame) error) error {
	for i, data := range s.frames {
		if i+1 == s.failAt {
			return &bif.DecodeError{Ordinal: i + 1, TimestampSec: spec.Timestamp(i), Err: os.ErrInvalid}
		}
		if err := emit(entity.Frame{Ordinal: i + 1, Data: data}); err != nil {
			return err
		}
	}
	return nil
}

type fakePublisher struct {
	statuses [][]byte
}

func (p *fakePublisher) PublishStatus(_ context.Context, msg []byte) error {
	p.statuses = append(p.statuses, msg)
	return nil
}

type fakeDLQ struct {
	messages []string
}

func (d *fakeDLQ) PublishToDLQ(_ context.Context, _ []byte, reason string) error {
	d.messages = append(d.messages, reason)
	return nil
}

type fakeNotifier struct {
	notified []string
}

func (n *fakeNotifier) NotifyFailure(_ context.Context, userEmail, _, _, _ string) error {
	n.notified = append(n.notified, userEmail)
	return nil
}

type ucFixture struct {
	uc       *GenerateBIFUseCase
	repo     *fakeRepo
	storage  *fakeStorage
	source   *fakeFrameSource
	pub      *fakePublisher
	dlq      *fakeDLQ
	notifier *fakeNotifier
}

func newFixture(t *testing.T, source *fakeFrameSource) *ucFixture {
	t.Helper()
	f := &ucFixture{
		repo:     newFakeRepo(),
		storage:  newFakeStorage(),
		source:   source,
		pub:      &fakePublisher{},
		dlq:      &fakeDLQ{},
		notifier: &fakeNotifier{},
	}
	f.uc = NewGenerateBIFUseCase(
		f.repo, f.storage, f.source, f.pub, f.dlq, f.notifier,
		zap.NewNop(),
		GenerateBIFConfig{
			TempDir:            t.TempDir(),
			MaxRetries:         3,
			DefaultMode:        entity.ModeHD,
			DefaultIntervalSec: 10,
		},
	)
	return f
}

func requestMsg(t *testing.T, jobID uuid.UUID) []byte {
	t.Helper()
	raw, err := json.Marshal(entity.BifRequestMessage{
		JobID:     jobID,
		UserID:    "user-1",
		VideoKey:  "user-1/movie.mkv",
		FileSize:  1 << 20,
		UserEmail: "user@example.com",
	})
	require.NoError(t, err)
	return raw
}

func TestExecuteHappyPath(t *testing.T) {
	source := &fakeFrameSource{frames: [][]byte{
		bytes.Repeat([]byte{1}, 1000),
		bytes.Repeat([]byte{2}, 2000),
		bytes.Repeat([]byte{3}, 1500),
	}}
	f := newFixture(t, source)
	jobID := uuid.New()

	err := f.uc.Execute(context.Background(), requestMsg(t, jobID))
	require.NoError(t, err)

	job, err := f.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 3, job.FrameCount)
	assert.Equal(t, "user-1/movie-HD.bif", job.BifKey)
	assert.Equal(t, int64(4596), job.BifSize)
	assert.Equal(t, 30, job.VideoDuration)

	// Uploaded artifact is a valid BIF with the original frames.
	data, ok := f.storage.uploaded["user-1/movie-HD.bif"]
	require.True(t, ok)
	parsed, err := bif.Parse(data)
	require.NoError(t, err)
	require.Equal(t, 3, parsed.FrameCount())
	frame, err := parsed.Frame(1)
	require.NoError(t, err)
	assert.Equal(t, source.frames[1], frame)

	require.Len(t, f.pub.statuses, 1)
	var status entity.BifStatusMessage
	require.NoError(t, json.Unmarshal(f.pub.statuses[0], &status))
	assert.Equal(t, entity.JobStatusCompleted, status.Status)
	assert.Equal(t, "hd", status.Mode)
	assert.Empty(t, f.dlq.messages)
	assert.Empty(t, f.notifier.notified)
}

func TestExecuteDecodeFailureGoesStraightToDLQ(t *testing.T) {
	frames := make([][]byte, 20)
	for i := range frames {
		frames[i] = bytes.Repeat([]byte{byte(i)}, 50)
	}
	f := newFixture(t, &fakeFrameSource{frames: frames, failAt: 5})
	jobID := uuid.New()

	// A deterministic decode failure is acked (nil) and dead-lettered, not
	// retried.
	err := f.uc.Execute(context.Background(), requestMsg(t, jobID))
	require.NoError(t, err)

	job, err := f.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "decode frame 5")

	require.Len(t, f.dlq.messages, 1)
	assert.Contains(t, f.dlq.messages[0], "decode frame 5")
	assert.Equal(t, []string{"user@example.com"}, f.notifier.notified)
	assert.Empty(t, f.storage.uploaded)
}

func TestExecuteDownloadFailureIsRetryable(t *testing.T) {
	f := newFixture(t, &fakeFrameSource{frames: [][]byte{{1}}})
	f.storage.downloadErr = fmt.Errorf("connection reset")
	jobID := uuid.New()

	err := f.uc.Execute(context.Background(), requestMsg(t, jobID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retryable failure")

	job, findErr := f.repo.FindByID(context.Background(), jobID)
	require.NoError(t, findErr)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.True(t, job.CanRetry())
	assert.Empty(t, f.dlq.messages)
}

func TestExecuteExhaustedRetriesDeadLetters(t *testing.T) {
	f := newFixture(t, &fakeFrameSource{frames: [][]byte{{1}}})
	f.storage.downloadErr = fmt.Errorf("connection reset")
	jobID := uuid.New()
	raw := requestMsg(t, jobID)

	for i := 0; i < 2; i++ {
		require.Error(t, f.uc.Execute(context.Background(), raw))
	}
	// Third attempt exhausts the budget and is acked after dead-lettering.
	require.NoError(t, f.uc.Execute(context.Background(), raw))

	job, err := f.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, job.Status)
	assert.False(t, job.CanRetry())
	require.Len(t, f.dlq.messages, 1)
	assert.Equal(t, []string{"user@example.com"}, f.notifier.notified)
}

func TestExecuteMalformedMessage(t *testing.T) {
	f := newFixture(t, &fakeFrameSource{})

	err := f.uc.Execute(context.Background(), []byte("{broken"))
	require.NoError(t, err)
	require.Len(t, f.dlq.messages, 1)
	assert.Contains(t, f.dlq.messages[0], "unmarshal_error")
}

func TestExecuteUnknownMode(t *testing.T) {
	f := newFixture(t, &fakeFrameSource{})
	raw, err := json.Marshal(entity.BifRequestMessage{
		JobID:    uuid.New(),
		UserID:   "user-1",
		VideoKey: "user-1/movie.mkv",
		Mode:     "4k",
	})
	require.NoError(t, err)

	require.NoError(t, f.uc.Execute(context.Background(), raw))
	require.Len(t, f.dlq.messages, 1)
	assert.Contains(t, f.dlq.messages[0], "invalid_params")
}

func TestExecuteZeroFramesProducesEmptyBif(t *testing.T) {
	// A video shorter than the first sample timestamp still yields a valid,
	// empty artifact.
	f := newFixture(t, &fakeFrameSource{})
	jobID := uuid.New()

	err := f.uc.Execute(context.Background(), requestMsg(t, jobID))
	require.NoError(t, err)

	data, ok := f.storage.uploaded["user-1/movie-HD.bif"]
	require.True(t, ok)
	require.Len(t, data, 72)

	parsed, err := bif.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 0, parsed.FrameCount())

	job, err := f.repo.FindByID(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, job.Status)
	assert.Equal(t, 0, job.FrameCount)
}

func TestBifName(t *testing.T) {
	assert.Equal(t, "movie-HD.bif", BifName("movie.mkv", entity.ModeHD))
	assert.Equal(t, "movie-SD.bif", BifName("movie.mkv", entity.ModeSD))
	assert.Equal(t, "clip-HD.bif", BifName("clip", entity.ModeHD))
}
