package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hoony8355/searcap/internal/models"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

const jobsSchema = `
CREATE TABLE IF NOT EXISTS capture_jobs (
	id           UUID PRIMARY KEY,
	keyword      TEXT NOT NULL,
	surface      TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at   TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS capture_jobs_created_idx ON capture_jobs (created_at DESC);
`

// Job is one requested capture run for a keyword.
type Job struct {
	ID          string         `json:"id"`
	Keyword     string         `json:"keyword"`
	Surface     models.Surface `json:"surface"`
	Status      JobStatus      `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Stats summarizes jobs and captures for the stats endpoint.
type Stats struct {
	TotalJobs         int     `json:"total_jobs"`
	PendingJobs       int     `json:"pending_jobs"`
	RunningJobs       int     `json:"running_jobs"`
	CompletedJobs     int     `json:"completed_jobs"`
	FailedJobs        int     `json:"failed_jobs"`
	TotalCaptures     int     `json:"total_captures"`
	CompletedCaptures int     `json:"completed_captures"`
	SuccessRate       float64 `json:"success_rate"`
}

// CreateJob persists a new pending job.
func (db *DB) CreateJob(ctx context.Context, keyword string, surface models.Surface) (*Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		Keyword:   keyword,
		Surface:   surface,
		Status:    JobPending,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO capture_jobs (id, keyword, surface, status, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := db.pool.Exec(ctx, query, job.ID, job.Keyword, job.Surface, job.Status, job.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	return job, nil
}

// GetJob retrieves a job by ID. Returns (nil, nil) when not found.
func (db *DB) GetJob(ctx context.Context, id string) (*Job, error) {
	query := `
		SELECT id, keyword, surface, status, error, created_at, started_at, completed_at
		FROM capture_jobs
		WHERE id = $1`

	job := &Job{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.Keyword, &job.Surface, &job.Status, &job.Error,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// ListJobs lists recent jobs, newest first.
func (db *DB) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, keyword, surface, status, error, created_at, started_at, completed_at
		FROM capture_jobs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := db.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job := &Job{}
		err := rows.Scan(
			&job.ID, &job.Keyword, &job.Surface, &job.Status, &job.Error,
			&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// ListUnfinishedJobs returns jobs still pending or running, oldest first.
// Used at startup to requeue work that was queued before a restart.
func (db *DB) ListUnfinishedJobs(ctx context.Context) ([]*Job, error) {
	query := `
		SELECT id, keyword, surface, status, error, created_at, started_at, completed_at
		FROM capture_jobs
		WHERE status IN ('pending', 'running')
		ORDER BY created_at ASC`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unfinished jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job := &Job{}
		err := rows.Scan(
			&job.ID, &job.Keyword, &job.Surface, &job.Status, &job.Error,
			&job.CreatedAt, &job.StartedAt, &job.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// UpdateJobStatus transitions a job, stamping started_at/completed_at as
// appropriate.
func (db *DB) UpdateJobStatus(ctx context.Context, id string, status JobStatus, jobErr error) error {
	var query string
	var args []interface{}

	now := time.Now().UTC()
	switch {
	case status == JobRunning:
		query = `UPDATE capture_jobs SET status = $1, started_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	case status == JobCompleted:
		query = `UPDATE capture_jobs SET status = $1, completed_at = $2 WHERE id = $3`
		args = []interface{}{status, now, id}
	case status == JobFailed && jobErr != nil:
		query = `UPDATE capture_jobs SET status = $1, completed_at = $2, error = $3 WHERE id = $4`
		args = []interface{}{status, now, jobErr.Error(), id}
	default:
		query = `UPDATE capture_jobs SET status = $1 WHERE id = $2`
		args = []interface{}{status, id}
	}

	if _, err := db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return nil
}

// GetStats aggregates job and capture counters.
func (db *DB) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	jobQuery := `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN status = 'pending' THEN 1 END) as pending,
			COUNT(CASE WHEN status = 'running' THEN 1 END) as running,
			COUNT(CASE WHEN status = 'completed' THEN 1 END) as completed,
			COUNT(CASE WHEN status = 'failed' THEN 1 END) as failed
		FROM capture_jobs`

	err := db.pool.QueryRow(ctx, jobQuery).Scan(
		&stats.TotalJobs, &stats.PendingJobs, &stats.RunningJobs,
		&stats.CompletedJobs, &stats.FailedJobs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get job stats: %w", err)
	}

	captureQuery := `
		SELECT
			COUNT(*) as total,
			COUNT(CASE WHEN status = 'completed' THEN 1 END) as completed
		FROM captures`

	if err := db.pool.QueryRow(ctx, captureQuery).Scan(&stats.TotalCaptures, &stats.CompletedCaptures); err != nil {
		return nil, fmt.Errorf("failed to get capture stats: %w", err)
	}

	if stats.TotalCaptures > 0 {
		stats.SuccessRate = float64(stats.CompletedCaptures) / float64(stats.TotalCaptures) * 100
	}

	return stats, nil
}
