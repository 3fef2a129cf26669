package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/lindenworks/studio-ops-api/internal/models"
)

// TableSpec describes one business table the apply engine may write.
// Columns lists the mutable columns in a fixed order so plans and audit
// entries come out deterministic.
type TableSpec struct {
	Name      string
	KeyColumn string
	Columns   []string
}

// targetTables is the closed registry of writable business tables. The
// generic engine refuses anything outside it.
var targetTables = map[string]TableSpec{
	"projects": {
		Name:      "projects",
		KeyColumn: "id",
		Columns:   []string{"name", "client_name", "status", "primary_contact_id"},
	},
	"proposals": {
		Name:      "proposals",
		KeyColumn: "id",
		Columns:   []string{"title", "client_name", "status"},
	},
	"contacts": {
		Name:      "contacts",
		KeyColumn: "id",
		Columns:   []string{"full_name", "email", "phone", "company", "role"},
	},
	"project_aliases": {
		Name:      "project_aliases",
		KeyColumn: "id",
		Columns:   []string{"project_id", "alias"},
	},
	"email_links": {
		Name:      "email_links",
		KeyColumn: "id",
		Columns:   []string{"email_id", "project_id", "proposal_id"},
	},
	"contact_links": {
		Name:      "contact_links",
		KeyColumn: "id",
		Columns:   []string{"email_id", "contact_id"},
	},
	"transcript_links": {
		Name:      "transcript_links",
		KeyColumn: "id",
		Columns:   []string{"transcript_id", "project_id"},
	},
}

// TableForTarget maps a target reference kind onto its backing table.
func TableForTarget(kind models.RefKind) (string, bool) {
	switch kind {
	case models.RefProject:
		return "projects", true
	case models.RefProposal:
		return "proposals", true
	case models.RefContact:
		return "contacts", true
	default:
		return "", false
	}
}

// TargetRepository performs generic, whitelisted row operations against
// the business tables on behalf of the apply and rollback engines.
type TargetRepository struct {
	db *sqlx.DB
}

// NewTargetRepository constructs the repository.
func NewTargetRepository(db *sqlx.DB) *TargetRepository {
	return &TargetRepository{db: db}
}

// Ext exposes the plain connection for callers that plan outside a
// transaction.
func (r *TargetRepository) Ext() sqlx.ExtContext {
	return r.db
}

// Spec returns the table spec for a registered table.
func (r *TargetRepository) Spec(table string) (TableSpec, bool) {
	spec, ok := targetTables[table]
	return spec, ok
}

func (r *TargetRepository) spec(table string) (TableSpec, error) {
	spec, ok := targetTables[table]
	if !ok {
		return TableSpec{}, fmt.Errorf("table %q is not registered for suggestion changes", table)
	}
	return spec, nil
}

// FetchRow loads the current state of one row with every column rendered
// as text, nil meaning SQL NULL. Returns sql.ErrNoRows when absent.
func (r *TargetRepository) FetchRow(ctx context.Context, exec sqlx.ExtContext, table, key string) (map[string]*string, error) {
	spec, err := r.spec(table)
	if err != nil {
		return nil, err
	}

	selects := make([]string, 0, len(spec.Columns))
	for _, col := range spec.Columns {
		selects = append(selects, fmt.Sprintf("%s::text AS %s", col, col))
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1",
		strings.Join(selects, ", "), spec.Name, spec.KeyColumn)

	row := exec.QueryRowxContext(ctx, query, key)
	values := make([]sql.NullString, len(spec.Columns))
	dest := make([]interface{}, len(spec.Columns))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := row.Scan(dest...); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("fetch %s row: %w", spec.Name, err)
	}

	fields := make(map[string]*string, len(spec.Columns))
	for i, col := range spec.Columns {
		if values[i].Valid {
			v := values[i].String
			fields[col] = &v
		} else {
			fields[col] = nil
		}
	}
	return fields, nil
}

// Exists reports whether a row is present.
func (r *TargetRepository) Exists(ctx context.Context, exec sqlx.ExtContext, table, key string) (bool, error) {
	spec, err := r.spec(table)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)", spec.Name, spec.KeyColumn)
	var exists bool
	if err := sqlx.GetContext(ctx, exec, &exists, query, key); err != nil {
		return false, fmt.Errorf("check %s row: %w", spec.Name, err)
	}
	return exists, nil
}

// InsertRow creates a row from text-rendered field values.
func (r *TargetRepository) InsertRow(ctx context.Context, exec sqlx.ExtContext, table, key string, fields map[string]*string) error {
	spec, err := r.spec(table)
	if err != nil {
		return err
	}
	if err := checkColumns(spec, fields); err != nil {
		return err
	}

	columns := []string{spec.KeyColumn}
	placeholders := []string{"$1"}
	args := []interface{}{key}
	for _, col := range spec.Columns {
		value, ok := fields[col]
		if !ok {
			continue
		}
		args = append(args, value)
		columns = append(columns, col)
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		spec.Name, strings.Join(columns, ", "), strings.Join(placeholders, ", "))
	if _, err := exec.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s row: %w", spec.Name, err)
	}
	return nil
}

// UpdateRow writes field values onto an existing row. Missing rows
// surface as sql.ErrNoRows so the engine can fail instead of silently
// writing nothing.
func (r *TargetRepository) UpdateRow(ctx context.Context, exec sqlx.ExtContext, table, key string, fields map[string]*string) error {
	spec, err := r.spec(table)
	if err != nil {
		return err
	}
	if err := checkColumns(spec, fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		return fmt.Errorf("update %s row: no fields", spec.Name)
	}

	setParts := make([]string, 0, len(fields))
	args := make([]interface{}, 0, len(fields)+1)
	for _, col := range spec.Columns {
		value, ok := fields[col]
		if !ok {
			continue
		}
		args = append(args, value)
		setParts = append(setParts, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	args = append(args, key)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d",
		spec.Name, strings.Join(setParts, ", "), spec.KeyColumn, len(args))
	result, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update %s row: %w", spec.Name, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s update rows: %w", spec.Name, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteRow removes a row. Missing rows surface as sql.ErrNoRows.
func (r *TargetRepository) DeleteRow(ctx context.Context, exec sqlx.ExtContext, table, key string) error {
	spec, err := r.spec(table)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", spec.Name, spec.KeyColumn)
	result, err := exec.ExecContext(ctx, query, key)
	if err != nil {
		return fmt.Errorf("delete %s row: %w", spec.Name, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check %s delete rows: %w", spec.Name, err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func checkColumns(spec TableSpec, fields map[string]*string) error {
	for col := range fields {
		allowed := false
		for _, known := range spec.Columns {
			if col == known {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("column %q is not writable on %s", col, spec.Name)
		}
	}
	return nil
}

// Planner lookups. These answer "would this change duplicate something
// that already exists" against current state, inside or outside the
// review transaction.

// FindContactIDByEmail returns the id of a contact with the given email,
// or empty when none exists.
func (r *TargetRepository) FindContactIDByEmail(ctx context.Context, exec sqlx.ExtContext, email string) (string, error) {
	const query = `SELECT id FROM contacts WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var id string
	err := sqlx.GetContext(ctx, exec, &id, query, email)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find contact by email: %w", err)
	}
	return id, nil
}

// FindAliasID returns the id of an existing alias row for the project.
func (r *TargetRepository) FindAliasID(ctx context.Context, exec sqlx.ExtContext, projectID, alias string) (string, error) {
	const query = `SELECT id FROM project_aliases WHERE project_id = $1 AND LOWER(alias) = LOWER($2) LIMIT 1`
	var id string
	err := sqlx.GetContext(ctx, exec, &id, query, projectID, alias)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find project alias: %w", err)
	}
	return id, nil
}

// FindEmailLinkID returns the id of an existing email link to the target
// column (project_id or proposal_id).
func (r *TargetRepository) FindEmailLinkID(ctx context.Context, exec sqlx.ExtContext, emailID, targetColumn, targetID string) (string, error) {
	if targetColumn != "project_id" && targetColumn != "proposal_id" {
		return "", fmt.Errorf("unsupported email link column %q", targetColumn)
	}
	query := fmt.Sprintf(`SELECT id FROM email_links WHERE email_id = $1 AND %s = $2 LIMIT 1`, targetColumn)
	var id string
	err := sqlx.GetContext(ctx, exec, &id, query, emailID, targetID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find email link: %w", err)
	}
	return id, nil
}

// FindContactLinkID returns the id of an existing email-contact link.
func (r *TargetRepository) FindContactLinkID(ctx context.Context, exec sqlx.ExtContext, emailID, contactID string) (string, error) {
	const query = `SELECT id FROM contact_links WHERE email_id = $1 AND contact_id = $2 LIMIT 1`
	var id string
	err := sqlx.GetContext(ctx, exec, &id, query, emailID, contactID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find contact link: %w", err)
	}
	return id, nil
}

// FindTranscriptLinkID returns the id of an existing transcript link.
func (r *TargetRepository) FindTranscriptLinkID(ctx context.Context, exec sqlx.ExtContext, transcriptID, projectID string) (string, error) {
	const query = `SELECT id FROM transcript_links WHERE transcript_id = $1 AND project_id = $2 LIMIT 1`
	var id string
	err := sqlx.GetContext(ctx, exec, &id, query, transcriptID, projectID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find transcript link: %w", err)
	}
	return id, nil
}
