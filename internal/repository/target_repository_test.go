package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/lindenworks/studio-ops-api/internal/models"
)

func newTargetRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTargetRepositoryRejectsUnknownTable(t *testing.T) {
	db, _, cleanup := newTargetRepoMock(t)
	defer cleanup()

	repo := NewTargetRepository(db)
	_, err := repo.FetchRow(context.Background(), db, "users", "u-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not registered")

	err = repo.InsertRow(context.Background(), db, "audit_logs", "x", nil)
	require.Error(t, err)
}

func TestTargetRepositoryRejectsUnknownColumn(t *testing.T) {
	db, _, cleanup := newTargetRepoMock(t)
	defer cleanup()

	repo := NewTargetRepository(db)
	value := "x"
	err := repo.InsertRow(context.Background(), db, "contacts", "c-1", map[string]*string{
		"password_hash": &value,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "not writable")
}

func TestTargetRepositoryFetchRowNormalisesNulls(t *testing.T) {
	db, mock, cleanup := newTargetRepoMock(t)
	defer cleanup()

	repo := NewTargetRepository(db)
	rows := sqlmock.NewRows([]string{"full_name", "email", "phone", "company", "role"}).
		AddRow("Jane Doe", "jane@acmecorp.com", nil, "Acme Corp", nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM contacts WHERE id = $1")).
		WithArgs("c-1").
		WillReturnRows(rows)

	fields, err := repo.FetchRow(context.Background(), db, "contacts", "c-1")
	require.NoError(t, err)
	require.Equal(t, "Jane Doe", *fields["full_name"])
	require.Nil(t, fields["phone"])
	require.Nil(t, fields["role"])
	require.Equal(t, "Acme Corp", *fields["company"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetRepositoryFetchRowMissing(t *testing.T) {
	db, mock, cleanup := newTargetRepoMock(t)
	defer cleanup()

	repo := NewTargetRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("FROM projects WHERE id = $1")).
		WithArgs("PRJ-404").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FetchRow(context.Background(), db, "projects", "PRJ-404")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetRepositoryInsertRowUsesWhitelistedColumns(t *testing.T) {
	db, mock, cleanup := newTargetRepoMock(t)
	defer cleanup()

	repo := NewTargetRepository(db)
	emailID := "1042"
	projectID := "PRJ-7"
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO email_links (id, email_id, project_id) VALUES ($1, $2, $3)")).
		WithArgs("link-1", &emailID, &projectID).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.InsertRow(context.Background(), db, "email_links", "link-1", map[string]*string{
		"email_id":   &emailID,
		"project_id": &projectID,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetRepositoryUpdateRowMissing(t *testing.T) {
	db, mock, cleanup := newTargetRepoMock(t)
	defer cleanup()

	repo := NewTargetRepository(db)
	name := "Atrium Rework"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE projects SET name = $1 WHERE id = $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateRow(context.Background(), db, "projects", "PRJ-404", map[string]*string{"name": &name})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetRepositoryDeleteRow(t *testing.T) {
	db, mock, cleanup := newTargetRepoMock(t)
	defer cleanup()

	repo := NewTargetRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM email_links WHERE id = $1")).
		WithArgs("link-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.DeleteRow(context.Background(), db, "email_links", "link-1"))

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM email_links WHERE id = $1")).
		WithArgs("link-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.DeleteRow(context.Background(), db, "email_links", "link-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTargetRepositoryLookupsReturnEmptyWhenAbsent(t *testing.T) {
	db, mock, cleanup := newTargetRepoMock(t)
	defer cleanup()

	repo := NewTargetRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM contacts WHERE LOWER(email)")).
		WithArgs("jane@acmecorp.com").
		WillReturnError(sql.ErrNoRows)

	id, err := repo.FindContactIDByEmail(context.Background(), db, "jane@acmecorp.com")
	require.NoError(t, err)
	require.Empty(t, id)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM email_links WHERE email_id = $1 AND project_id = $2")).
		WithArgs("1042", "PRJ-7").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("link-9"))

	linkID, err := repo.FindEmailLinkID(context.Background(), db, "1042", "project_id", "PRJ-7")
	require.NoError(t, err)
	require.Equal(t, "link-9", linkID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTableForTarget(t *testing.T) {
	table, ok := TableForTarget(models.RefProject)
	require.True(t, ok)
	require.Equal(t, "projects", table)

	_, ok = TableForTarget(models.RefEmail)
	require.False(t, ok)
}
