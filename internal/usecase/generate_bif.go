package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/entrez/bifgen/internal/bif"
	"github.com/entrez/bifgen/internal/domain/entity"
	"github.com/entrez/bifgen/internal/domain/port"
	"github.com/entrez/bifgen/internal/infra/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type GenerateBIFUseCase struct {
	repo      port.JobRepository
	storage   port.VideoStorage
	source    port.FrameSource
	publisher port.StatusPublisher
	dlq       port.DLQPublisher
	notifier  port.FailureNotifier
	logger    *zap.Logger
	cfg       GenerateBIFConfig
}

type GenerateBIFConfig struct {
	TempDir            string
	MaxRetries         int
	DefaultMode        entity.Mode
	DefaultIntervalSec int
	DefaultOffsetSec   int
}

func NewGenerateBIFUseCase(
	repo port.JobRepository,
	storage port.VideoStorage,
	source port.FrameSource,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg GenerateBIFConfig,
) *GenerateBIFUseCase {
	return &GenerateBIFUseCase{
		repo:      repo,
		storage:   storage,
		source:    source,
		publisher: publisher,
		dlq:       dlq,
		notifier:  notifier,
		logger:    logger,
		cfg:       cfg,
	}
}

// BifName derives the default artifact name from the source file name, e.g.
// "movie.mkv" with mode hd becomes "movie-HD.bif".
func BifName(sourceName string, mode entity.Mode) string {
	base := strings.TrimSuffix(sourceName, filepath.Ext(sourceName))
	return fmt.Sprintf("%s-%s.bif", base, mode.Suffix())
}

func (uc *GenerateBIFUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "GenerateBIFUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.BifRequestMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	mode, intervalSec, offsetSec, err := uc.sampleParams(msg)
	if err != nil {
		uc.logger.Error("invalid sampling parameters", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "invalid_params: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.video_key", msg.VideoKey),
		attribute.String("job.mode", string(mode)),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("video_key", msg.VideoKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewJob(msg.UserID, msg.VideoKey, mode, intervalSec, msg.FileSize, uc.cfg.MaxRetries)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max retries exceeded")
		return nil
	}

	job.MarkProcessing()
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.generatePipeline(ctx, job, msg, rawMsg, mode, intervalSec, offsetSec, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

// sampleParams resolves the message's overrides against the configured
// defaults.
func (uc *GenerateBIFUseCase) sampleParams(msg entity.BifRequestMessage) (entity.Mode, int, int, error) {
	mode := uc.cfg.DefaultMode
	if msg.Mode != "" {
		parsed, err := entity.ParseMode(msg.Mode)
		if err != nil {
			return "", 0, 0, err
		}
		mode = parsed
	}

	intervalSec := uc.cfg.DefaultIntervalSec
	if msg.IntervalSec != 0 {
		intervalSec = msg.IntervalSec
	}
	if intervalSec <= 0 {
		return "", 0, 0, fmt.Errorf("interval must be > 0, got %d", intervalSec)
	}

	offsetSec := uc.cfg.DefaultOffsetSec
	if msg.OffsetSec != 0 {
		offsetSec = msg.OffsetSec
	}
	if offsetSec < 0 {
		return "", 0, 0, fmt.Errorf("offset must be >= 0, got %d", offsetSec)
	}

	return mode, intervalSec, offsetSec, nil
}

func (uc *GenerateBIFUseCase) generatePipeline(
	ctx context.Context,
	job *entity.Job,
	msg entity.BifRequestMessage,
	rawMsg []byte,
	mode entity.Mode,
	intervalSec int,
	offsetSec int,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")

	workDir := filepath.Join(uc.cfg.TempDir, job.ID.String())
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	// Download source video from object storage.
	dlStart := time.Now()
	ctx2, spanDl := tracer.Start(ctx, "download_video")
	videoPath := filepath.Join(workDir, filepath.Base(msg.VideoKey))
	if err := uc.storage.DownloadVideo(ctx2, msg.VideoKey, videoPath); err != nil {
		spanDl.End()
		log.Error("failed to download video", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("download_video: %w", err), log)
	}
	spanDl.End()
	metrics.JobStageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	// Probe metadata and resolve the target resolution from the source
	// aspect ratio.
	probeStart := time.Now()
	ctx3, spanProbe := tracer.Start(ctx, "probe_video")
	handle, err := uc.source.Open(ctx3, videoPath)
	if err != nil {
		spanProbe.End()
		log.Error("failed to probe video", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("probe_video: %w", err), log)
	}
	spanProbe.End()
	metrics.JobStageDuration.WithLabelValues("probe").Observe(time.Since(probeStart).Seconds())

	spec, err := entity.NewSampleSpec(offsetSec, intervalSec, mode.Resolve(handle.Meta.Aspect))
	if err != nil {
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("sample_spec: %w", err), log)
	}

	// Assemble the BIF in the job workdir.
	asmStart := time.Now()
	ctx4, spanAsm := tracer.Start(ctx, "assemble_bif")
	assembler := bif.NewAssembler(uc.source, log, func(p bif.Progress) {
		if p.State == bif.StateExtracting && p.Frame > 0 {
			metrics.FramesSampledTotal.Inc()
			log.Debug("frame sampled", zap.Int("frame", p.Frame), zap.Int("total", p.Total))
		}
	})
	bifName := BifName(filepath.Base(msg.VideoKey), mode)
	bifPath := filepath.Join(workDir, bifName)
	result, err := assembler.Assemble(ctx4, handle, spec, bifPath)
	if err != nil {
		spanAsm.End()
		log.Error("bif assembly failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("assemble_bif: %w", err), log)
	}
	spanAsm.End()
	metrics.JobStageDuration.WithLabelValues("assemble").Observe(time.Since(asmStart).Seconds())
	metrics.BifBytesTotal.Add(float64(result.FileSize))

	// Upload the artifact.
	upStart := time.Now()
	ctx5, spanUp := tracer.Start(ctx, "upload_bif")
	bifKey := fmt.Sprintf("%s/%s", msg.UserID, bifName)
	bifFile, err := os.Open(bifPath)
	if err != nil {
		spanUp.End()
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("open_bif: %w", err), log)
	}
	if err := uc.storage.UploadBif(ctx5, bifKey, bifFile, result.FileSize); err != nil {
		bifFile.Close()
		spanUp.End()
		log.Error("bif upload failed", zap.Error(err))
		return uc.handleFailure(ctx, job, msg, rawMsg, fmt.Errorf("upload_bif: %w", err), log)
	}
	bifFile.Close()
	spanUp.End()
	metrics.JobStageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	job.Mode = mode
	job.IntervalSec = intervalSec
	job.MarkCompleted(bifKey, result.FrameCount, result.FileSize, handle.Meta.DurationSec)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)

	log.Info("job completed successfully",
		zap.Int("frame_count", result.FrameCount),
		zap.Int64("bif_size", result.FileSize),
		zap.Int("duration_s", handle.Meta.DurationSec),
		zap.String("bif_key", bifKey),
	)

	return nil
}

// handleFailure routes an error to the retry path or, for failures that are
// deterministic (bad source, broken frame), straight to the DLQ: re-running
// the same decode cannot succeed, so burning retry attempts on it is
// pointless.
func (uc *GenerateBIFUseCase) handleFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.BifRequestMessage,
	rawMsg []byte,
	cause error,
	log *zap.Logger,
) error {
	if isDeterministicFailure(cause) {
		log.Warn("permanent failure, skipping retries", zap.Error(cause))
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, cause.Error())
	}
	return uc.handleRetryableFailure(ctx, job, msg, rawMsg, cause.Error(), log)
}

func isDeterministicFailure(err error) bool {
	var se *bif.SourceError
	var de *bif.DecodeError
	return errors.As(err, &se) || errors.As(err, &de)
}

func (uc *GenerateBIFUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.BifRequestMessage,
	rawMsg []byte,
	errMsg string,
	log *zap.Logger,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *GenerateBIFUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.Job,
	msg entity.BifRequestMessage,
	rawMsg []byte,
	errMsg string,
) error {
	job.MarkFailed(errMsg)
	_ = uc.repo.Update(ctx, job)

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), msg.VideoKey, errMsg)
	}

	return nil
}

func (uc *GenerateBIFUseCase) publishStatus(ctx context.Context, job *entity.Job, log *zap.Logger) {
	statusMsg := entity.BifStatusMessage{
		JobID:        job.ID,
		UserID:       job.UserID,
		Status:       job.Status,
		VideoKey:     job.VideoKey,
		BifKey:       job.BifKey,
		Mode:         string(job.Mode),
		FrameCount:   job.FrameCount,
		BifSize:      job.BifSize,
		Duration:     job.VideoDuration,
		ErrorMessage: job.ErrorMessage,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}
