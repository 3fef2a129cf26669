package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/lindenworks/studio-ops-api/internal/models"
)

func newIngestJobRepoMock(t *testing.T) (*IngestJobRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewIngestJobRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func ingestJobRows(id string, status models.IngestJobStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "type", "params", "status", "progress", "imported", "skipped",
		"created_by", "created_at", "started_at", "finished_at", "error_message",
	}).AddRow(id, "EMAIL_IMPORT", `{"file_name":"inbox.json"}`, status, 0, 0, 0,
		"svc-feeder", now, nil, nil, nil)
}

func TestIngestJobRepositoryCreateDefaults(t *testing.T) {
	repo, mock, cleanup := newIngestJobRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ingest_jobs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.IngestJob{
		Type:      models.IngestJobTypeEmails,
		Params:    models.IngestJobParams{FileName: "inbox.json"},
		CreatedBy: "svc-feeder",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	require.NotEmpty(t, job.ID)
	require.Equal(t, models.IngestJobStatusQueued, job.Status)
	require.False(t, job.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestJobRepositoryGetByIDMissing(t *testing.T) {
	repo, mock, cleanup := newIngestJobRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM ingest_jobs WHERE id = $1")).
		WithArgs("job-404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "job-404")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestJobRepositoryUpdatePartial(t *testing.T) {
	repo, mock, cleanup := newIngestJobRepoMock(t)
	defer cleanup()

	running := models.IngestJobStatusRunning
	startedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ingest_jobs SET status = $1, started_at = $2 WHERE id = $3")).
		WithArgs(running, startedAt, "job-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "job-1", UpdateIngestJobParams{
		Status:    &running,
		StartedAt: &startedAt,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestJobRepositoryUpdateNothing(t *testing.T) {
	repo, mock, cleanup := newIngestJobRepoMock(t)
	defer cleanup()

	require.NoError(t, repo.Update(context.Background(), "job-1", UpdateIngestJobParams{}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestJobRepositoryListQueuedOldestFirst(t *testing.T) {
	repo, mock, cleanup := newIngestJobRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(50).
		WillReturnRows(ingestJobRows("job-1", models.IngestJobStatusQueued))

	jobs, err := repo.ListQueued(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "job-1", jobs[0].ID)
	require.Equal(t, "inbox.json", jobs[0].Params.FileName)
	require.NoError(t, mock.ExpectationsWereMet())
}
