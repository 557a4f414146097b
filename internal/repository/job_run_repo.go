package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type JobRunRepository struct {
	db DBTX
}

func NewJobRunRepository(db DBTX) *JobRunRepository {
	return &JobRunRepository{db: db}
}

type JobRunInput struct {
	TenantID    string
	JobName     string
	JobID       string
	Status      string
	Payload     []byte
	Result      []byte
	Error       *string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Log upserts the run record keyed by (job_id, job_name) so retries of the
// same job update one row instead of piling up duplicates.
func (r *JobRunRepository) Log(ctx context.Context, input JobRunInput) error {
	var existingID string
	err := r.db.QueryRow(ctx,
		`SELECT id FROM job_runs WHERE job_id = $1 AND job_name = $2`,
		input.JobID, input.JobName).Scan(&existingID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	if existingID != "" {
		query := `
			UPDATE job_runs
			SET status = $2, result = COALESCE($3, result), error = $4,
			    attempts = attempts + CASE WHEN $2 = 'failed' THEN 1 ELSE 0 END,
			    completed_at = COALESCE($5, completed_at)
			WHERE id = $1
		`
		_, err = r.db.Exec(ctx, query, existingID, input.Status, input.Result, input.Error, input.CompletedAt)
		return err
	}

	query := `
		INSERT INTO job_runs (tenant_id, job_name, job_id, status, payload, result, error, attempts, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
	`
	_, err = r.db.Exec(ctx, query,
		input.TenantID, input.JobName, input.JobID, input.Status,
		input.Payload, input.Result, input.Error, input.StartedAt, input.CompletedAt)
	return err
}

// CountCompletedForLesson counts completed runs of a job kind that carried
// the given lessonId in their payload. Backs the chase attempt numbering.
func (r *JobRunRepository) CountCompletedForLesson(ctx context.Context, tenantID, jobName, lessonID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM job_runs
		WHERE tenant_id = $1 AND job_name = $2 AND status = 'completed'
		  AND payload->>'lessonId' = $3
	`
	var count int
	err := r.db.QueryRow(ctx, query, tenantID, jobName, lessonID).Scan(&count)
	return count, err
}
