package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/hoony8355/searcap/internal/models"
)

const capturesSchema = `
CREATE TABLE IF NOT EXISTS captures (
	id             UUID PRIMARY KEY,
	job_id         UUID,
	keyword        TEXT NOT NULL,
	surface        TEXT NOT NULL,
	section_kind   TEXT NOT NULL,
	page_url       TEXT NOT NULL DEFAULT '',
	selector       TEXT NOT NULL DEFAULT '',
	strategy       TEXT NOT NULL DEFAULT '',
	capture_method TEXT NOT NULL DEFAULT '',
	object_key     TEXT NOT NULL DEFAULT '',
	image_url      TEXT NOT NULL DEFAULT '',
	image_bytes    INTEGER NOT NULL DEFAULT 0,
	region         JSONB,
	status         TEXT NOT NULL DEFAULT 'pending',
	error_message  TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS captures_keyword_idx ON captures (keyword, created_at DESC);
CREATE INDEX IF NOT EXISTS captures_job_idx ON captures (job_id);
`

// Migrate creates the schema if it does not exist yet.
func (db *DB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, capturesSchema); err != nil {
		return fmt.Errorf("failed to migrate captures: %w", err)
	}
	if _, err := db.pool.Exec(ctx, jobsSchema); err != nil {
		return fmt.Errorf("failed to migrate jobs: %w", err)
	}
	return nil
}

// InsertCapture inserts a capture record, updating it if the ID exists.
func (db *DB) InsertCapture(ctx context.Context, rec *models.CaptureRecord) error {
	return db.InsertCaptureForJob(ctx, rec, "")
}

// InsertCaptureForJob inserts a capture record linked to a job.
func (db *DB) InsertCaptureForJob(ctx context.Context, rec *models.CaptureRecord, jobID string) error {
	regionJSON, err := json.Marshal(rec.Region)
	if err != nil {
		return fmt.Errorf("failed to marshal region: %w", err)
	}

	var job interface{}
	if jobID != "" {
		job = jobID
	}

	query := `
		INSERT INTO captures (id, job_id, keyword, surface, section_kind, page_url,
			selector, strategy, capture_method, object_key, image_url,
			image_bytes, region, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			object_key = EXCLUDED.object_key,
			image_url = EXCLUDED.image_url,
			image_bytes = EXCLUDED.image_bytes,
			region = EXCLUDED.region,
			status = EXCLUDED.status,
			error_message = EXCLUDED.error_message,
			updated_at = EXCLUDED.updated_at`

	_, err = db.pool.Exec(ctx, query,
		rec.ID, job, rec.Keyword, rec.Surface, rec.SectionKind, rec.PageURL,
		rec.Selector, rec.Strategy, rec.CaptureMethod, rec.ObjectKey, rec.ImageURL,
		rec.ImageBytes, regionJSON, rec.Status, rec.Error, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert capture: %w", err)
	}

	return nil
}

// UpdateCaptureStatus updates the status and error message of a capture.
func (db *DB) UpdateCaptureStatus(ctx context.Context, id string, status models.CaptureStatus, errorMsg string) error {
	query := `
		UPDATE captures SET
			status = $2,
			error_message = $3,
			updated_at = now()
		WHERE id = $1`

	_, err := db.pool.Exec(ctx, query, id, status, errorMsg)
	if err != nil {
		return fmt.Errorf("failed to update capture status: %w", err)
	}

	return nil
}

const captureColumns = `id, keyword, surface, section_kind, page_url, selector,
	strategy, capture_method, object_key, image_url, image_bytes, region,
	status, error_message, created_at, updated_at`

// GetCapture retrieves a single capture by ID. Returns (nil, nil) when the
// record does not exist.
func (db *DB) GetCapture(ctx context.Context, id string) (*models.CaptureRecord, error) {
	query := `SELECT ` + captureColumns + ` FROM captures WHERE id = $1`

	rec, err := scanCapture(db.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}

	return rec, nil
}

// ListCapturesByKeyword returns the most recent captures for a keyword.
func (db *DB) ListCapturesByKeyword(ctx context.Context, keyword string, limit int) ([]*models.CaptureRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT ` + captureColumns + `
		FROM captures
		WHERE keyword = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := db.pool.Query(ctx, query, keyword, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query captures: %w", err)
	}
	defer rows.Close()

	var records []*models.CaptureRecord
	for rows.Next() {
		rec, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ListCapturesByJob returns all captures recorded for a job.
func (db *DB) ListCapturesByJob(ctx context.Context, jobID string) ([]*models.CaptureRecord, error) {
	query := `SELECT ` + captureColumns + `
		FROM captures
		WHERE job_id = $1
		ORDER BY created_at ASC`

	rows, err := db.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to query job captures: %w", err)
	}
	defer rows.Close()

	var records []*models.CaptureRecord
	for rows.Next() {
		rec, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// CountCapturesByStatus returns capture counts per status.
func (db *DB) CountCapturesByStatus(ctx context.Context) (map[models.CaptureStatus]int, error) {
	query := `
		SELECT status, COUNT(*) as count
		FROM captures
		GROUP BY status`

	rows, err := db.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count captures: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.CaptureStatus]int)
	for rows.Next() {
		var status models.CaptureStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

func scanCapture(row pgx.Row) (*models.CaptureRecord, error) {
	rec := &models.CaptureRecord{}
	var regionJSON []byte

	err := row.Scan(
		&rec.ID, &rec.Keyword, &rec.Surface, &rec.SectionKind, &rec.PageURL,
		&rec.Selector, &rec.Strategy, &rec.CaptureMethod, &rec.ObjectKey,
		&rec.ImageURL, &rec.ImageBytes, &regionJSON, &rec.Status, &rec.Error,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(regionJSON) > 0 {
		if err := json.Unmarshal(regionJSON, &rec.Region); err != nil {
			return nil, fmt.Errorf("failed to unmarshal region: %w", err)
		}
	}

	return rec, nil
}
