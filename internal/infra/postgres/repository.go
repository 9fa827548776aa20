package postgres

import (
	"context"
	"fmt"

	"github.com/entrez/bifgen/internal/domain/entity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.Job) error {
	query := `
		INSERT INTO bif_jobs (
			id, user_id, video_key, bif_key, mode, interval_seconds,
			status, frame_count, file_size, bif_size, video_duration,
			attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.VideoKey, job.BifKey, string(job.Mode), job.IntervalSec,
		string(job.Status), job.FrameCount, job.FileSize, job.BifSize, job.VideoDuration,
		job.Attempt, job.MaxAttempts, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.Job) error {
	query := `
		UPDATE bif_jobs SET
			status=$2, bif_key=$3, mode=$4, interval_seconds=$5,
			frame_count=$6, bif_size=$7, video_duration=$8,
			attempt=$9, error_message=$10, updated_at=$11, completed_at=$12
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.BifKey, string(job.Mode), job.IntervalSec,
		job.FrameCount, job.BifSize, job.VideoDuration,
		job.Attempt, job.ErrorMessage, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Job, error) {
	query := `
		SELECT id, user_id, video_key, bif_key, mode, interval_seconds,
			status, frame_count, file_size, bif_size, video_duration,
			attempt, max_attempts, error_message,
			created_at, updated_at, completed_at
		FROM bif_jobs WHERE id=$1`

	job := &entity.Job{}
	var status, mode string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.VideoKey, &job.BifKey, &mode, &job.IntervalSec,
		&status, &job.FrameCount, &job.FileSize, &job.BifSize, &job.VideoDuration,
		&job.Attempt, &job.MaxAttempts, &job.ErrorMessage,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	job.Mode = entity.Mode(mode)
	return job, nil
}
