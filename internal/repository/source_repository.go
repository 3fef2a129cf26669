package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lindenworks/studio-ops-api/internal/models"
)

// SourceRepository reads and imports correspondence metadata. Raw bodies
// live on disk; only their paths are stored here.
type SourceRepository struct {
	db *sqlx.DB
}

// NewSourceRepository constructs the repository.
func NewSourceRepository(db *sqlx.DB) *SourceRepository {
	return &SourceRepository{db: db}
}

// GetEmail fetches an email by identifier.
func (r *SourceRepository) GetEmail(ctx context.Context, id string) (*models.Email, error) {
	const query = `SELECT id, message_id, sender, sender_name, recipients, subject, snippet, body_path, received_at, imported_at
	FROM emails WHERE id = $1`
	var email models.Email
	if err := r.db.GetContext(ctx, &email, query, id); err != nil {
		return nil, err
	}
	return &email, nil
}

// GetTranscript fetches a transcript by identifier.
func (r *SourceRepository) GetTranscript(ctx context.Context, id string) (*models.Transcript, error) {
	const query = `SELECT id, title, participants, snippet, body_path, meeting_at, imported_at
	FROM transcripts WHERE id = $1`
	var transcript models.Transcript
	if err := r.db.GetContext(ctx, &transcript, query, id); err != nil {
		return nil, err
	}
	return &transcript, nil
}

// InsertEmail imports one email. Re-imports of the same message id are
// skipped; the return value reports whether a row was written.
func (r *SourceRepository) InsertEmail(ctx context.Context, email *models.Email) (bool, error) {
	if email.ID == "" {
		email.ID = uuid.NewString()
	}
	if email.ImportedAt.IsZero() {
		email.ImportedAt = time.Now().UTC()
	}
	const query = `INSERT INTO emails
	(id, message_id, sender, sender_name, recipients, subject, snippet, body_path, received_at, imported_at)
	VALUES (:id, :message_id, :sender, :sender_name, :recipients, :subject, :snippet, :body_path, :received_at, :imported_at)
	ON CONFLICT (message_id) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, email)
	if err != nil {
		return false, fmt.Errorf("insert email: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check email insert rows: %w", err)
	}
	return rows > 0, nil
}

// InsertTranscript imports one transcript.
func (r *SourceRepository) InsertTranscript(ctx context.Context, transcript *models.Transcript) (bool, error) {
	if transcript.ID == "" {
		transcript.ID = uuid.NewString()
	}
	if transcript.ImportedAt.IsZero() {
		transcript.ImportedAt = time.Now().UTC()
	}
	const query = `INSERT INTO transcripts
	(id, title, participants, snippet, body_path, meeting_at, imported_at)
	VALUES (:id, :title, :participants, :snippet, :body_path, :meeting_at, :imported_at)
	ON CONFLICT (id) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, transcript)
	if err != nil {
		return false, fmt.Errorf("insert transcript: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check transcript insert rows: %w", err)
	}
	return rows > 0, nil
}
