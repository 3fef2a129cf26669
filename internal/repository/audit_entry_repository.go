package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lindenworks/studio-ops-api/internal/models"
)

const auditEntryColumns = `id, suggestion_id, seq, action, target_table, target_key,
       field_changes, performed_by, created_at, reversed_at`

// AuditEntryRepository persists the reversible change ledger.
type AuditEntryRepository struct {
	db *sqlx.DB
}

// NewAuditEntryRepository constructs the repository.
func NewAuditEntryRepository(db *sqlx.DB) *AuditEntryRepository {
	return &AuditEntryRepository{db: db}
}

// InsertEntries appends ledger entries, normally inside the approval
// transaction so the ledger and the applied changes commit together.
func (r *AuditEntryRepository) InsertEntries(ctx context.Context, exec sqlx.ExtContext, entries []models.AuditEntry) error {
	const query = `INSERT INTO suggestion_audit_entries
	(id, suggestion_id, seq, action, target_table, target_key, field_changes, performed_by, created_at)
	VALUES (:id, :suggestion_id, :seq, :action, :target_table, :target_key, :field_changes, :performed_by, :created_at)`
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = uuid.NewString()
		}
		if entries[i].CreatedAt.IsZero() {
			entries[i].CreatedAt = time.Now().UTC()
		}
		if _, err := sqlx.NamedExecContext(ctx, exec, query, entries[i]); err != nil {
			return fmt.Errorf("insert audit entry %d: %w", entries[i].Seq, err)
		}
	}
	return nil
}

// NextSeq returns the next per-suggestion sequence number.
func (r *AuditEntryRepository) NextSeq(ctx context.Context, exec sqlx.ExtContext, suggestionID string) (int, error) {
	const query = `SELECT COALESCE(MAX(seq), 0) + 1 FROM suggestion_audit_entries WHERE suggestion_id = $1`
	var next int
	if err := sqlx.GetContext(ctx, exec, &next, query, suggestionID); err != nil {
		return 0, fmt.Errorf("next audit seq: %w", err)
	}
	return next, nil
}

// ListBySuggestion returns the full ledger for a suggestion, oldest first.
func (r *AuditEntryRepository) ListBySuggestion(ctx context.Context, suggestionID string) ([]models.AuditEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM suggestion_audit_entries WHERE suggestion_id = $1 ORDER BY seq ASC`, auditEntryColumns)
	var entries []models.AuditEntry
	if err := r.db.SelectContext(ctx, &entries, query, suggestionID); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// ListActive returns not-yet-reversed entries newest first, the order
// rollback must undo them in.
func (r *AuditEntryRepository) ListActive(ctx context.Context, exec sqlx.ExtContext, suggestionID string) ([]models.AuditEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM suggestion_audit_entries
	WHERE suggestion_id = $1 AND reversed_at IS NULL ORDER BY seq DESC`, auditEntryColumns)
	var entries []models.AuditEntry
	if err := sqlx.SelectContext(ctx, exec, &entries, query, suggestionID); err != nil {
		return nil, fmt.Errorf("list active audit entries: %w", err)
	}
	return entries, nil
}

// MarkReversed stamps entries as undone. Entries are never deleted; a
// reversed entry keeps the history inspectable. Fails when any entry was
// already reversed concurrently.
func (r *AuditEntryRepository) MarkReversed(ctx context.Context, exec sqlx.ExtContext, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE suggestion_audit_entries SET reversed_at = $1 WHERE id = ANY($2) AND reversed_at IS NULL`
	result, err := exec.ExecContext(ctx, query, at, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark audit entries reversed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check reversed rows: %w", err)
	}
	if int(rows) != len(ids) {
		return fmt.Errorf("reversed %d of %d audit entries", rows, len(ids))
	}
	return nil
}
