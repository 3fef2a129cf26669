package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lindenworks/studio-ops-api/internal/models"
)

const ingestJobColumns = `id, type, params, status, progress, imported, skipped,
       created_by, created_at, started_at, finished_at, error_message`

// IngestJobRepository persists source import job state. The row is the
// single source of truth for progress, so restarts never lose a job.
type IngestJobRepository struct {
	db *sqlx.DB
}

// NewIngestJobRepository constructs the repository.
func NewIngestJobRepository(db *sqlx.DB) *IngestJobRepository {
	return &IngestJobRepository{db: db}
}

// Create inserts a new job row with generated defaults.
func (r *IngestJobRepository) Create(ctx context.Context, job *models.IngestJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.IngestJobStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO ingest_jobs
	(id, type, params, status, progress, imported, skipped, created_by, created_at, started_at, finished_at, error_message)
	VALUES (:id, :type, :params, :status, :progress, :imported, :skipped, :created_by, :created_at, :started_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create ingest job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *IngestJobRepository) GetByID(ctx context.Context, id string) (*models.IngestJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM ingest_jobs WHERE id = $1`, ingestJobColumns)
	var job models.IngestJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, err
	}
	return &job, nil
}

// List returns recent jobs, newest first.
func (r *IngestJobRepository) List(ctx context.Context, limit int) ([]models.IngestJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM ingest_jobs ORDER BY created_at DESC LIMIT $1`, ingestJobColumns)
	var jobs []models.IngestJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list ingest jobs: %w", err)
	}
	return jobs, nil
}

// UpdateIngestJobParams defines the mutable fields.
type UpdateIngestJobParams struct {
	Status       *models.IngestJobStatus
	Progress     *int
	Imported     *int
	Skipped      *int
	StartedAt    *time.Time
	FinishedAt   *time.Time
	ErrorMessage *string
}

// Update persists the provided changes for a job row.
func (r *IngestJobRepository) Update(ctx context.Context, id string, params UpdateIngestJobParams) error {
	set := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.Progress != nil {
		set = append(set, fmt.Sprintf("progress = $%d", argPos))
		args = append(args, *params.Progress)
		argPos++
	}
	if params.Imported != nil {
		set = append(set, fmt.Sprintf("imported = $%d", argPos))
		args = append(args, *params.Imported)
		argPos++
	}
	if params.Skipped != nil {
		set = append(set, fmt.Sprintf("skipped = $%d", argPos))
		args = append(args, *params.Skipped)
		argPos++
	}
	if params.StartedAt != nil {
		set = append(set, fmt.Sprintf("started_at = $%d", argPos))
		args = append(args, *params.StartedAt)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE ingest_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update ingest job: %w", err)
	}
	return nil
}

// ListQueued fetches queued jobs (used for cold start recovery).
func (r *IngestJobRepository) ListQueued(ctx context.Context, limit int) ([]models.IngestJob, error) {
	if limit <= 0 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM ingest_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1`, ingestJobColumns)
	var jobs []models.IngestJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list queued ingest jobs: %w", err)
	}
	return jobs, nil
}
