package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lindenworks/studio-ops-api/internal/models"
)

const suggestionColumns = `id, suggestion_type, status, priority, confidence, suggested_data,
       source_reference, target_reference, review_notes, rejection_reason,
       reviewed_by, reviewed_at, created_at, updated_at`

// SuggestionRepository persists review queue data.
type SuggestionRepository struct {
	db *sqlx.DB
}

// NewSuggestionRepository constructs the repository.
func NewSuggestionRepository(db *sqlx.DB) *SuggestionRepository {
	return &SuggestionRepository{db: db}
}

// Create inserts a new suggestion row.
func (r *SuggestionRepository) Create(ctx context.Context, suggestion *models.Suggestion) error {
	if suggestion.ID == "" {
		suggestion.ID = uuid.NewString()
	}
	if suggestion.Status == "" {
		suggestion.Status = models.SuggestionStatusPending
	}
	if suggestion.Priority == "" {
		suggestion.Priority = models.PriorityNormal
	}
	now := time.Now().UTC()
	if suggestion.CreatedAt.IsZero() {
		suggestion.CreatedAt = now
	}
	suggestion.UpdatedAt = now

	const query = `INSERT INTO suggestions
	(id, suggestion_type, status, priority, confidence, suggested_data, source_reference, target_reference,
	 review_notes, rejection_reason, reviewed_by, reviewed_at, created_at, updated_at)
	VALUES (:id, :suggestion_type, :status, :priority, :confidence, :suggested_data, :source_reference, :target_reference,
	 :review_notes, :rejection_reason, :reviewed_by, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, suggestion); err != nil {
		return fmt.Errorf("create suggestion: %w", err)
	}
	return nil
}

// GetByID fetches a suggestion by identifier.
func (r *SuggestionRepository) GetByID(ctx context.Context, id string) (*models.Suggestion, error) {
	query := fmt.Sprintf(`SELECT %s FROM suggestions WHERE id = $1`, suggestionColumns)
	var suggestion models.Suggestion
	if err := r.db.GetContext(ctx, &suggestion, query, id); err != nil {
		return nil, err
	}
	return &suggestion, nil
}

// LockForReview fetches a suggestion with a row lock so concurrent review
// decisions serialise on the same row.
func (r *SuggestionRepository) LockForReview(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Suggestion, error) {
	query := fmt.Sprintf(`SELECT %s FROM suggestions WHERE id = $1 FOR UPDATE`, suggestionColumns)
	var suggestion models.Suggestion
	if err := sqlx.GetContext(ctx, exec, &suggestion, query, id); err != nil {
		return nil, err
	}
	return &suggestion, nil
}

// List returns suggestions matching the filter plus the total match count.
// The queue orders by priority, then confidence, then age.
func (r *SuggestionRepository) List(ctx context.Context, filter models.SuggestionFilter) ([]models.Suggestion, int, error) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 8)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("suggestion_type = $%d", len(args)))
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.MinConfidence != nil {
		args = append(args, *filter.MinConfidence)
		conditions = append(conditions, fmt.Sprintf("confidence >= $%d", len(args)))
	}
	if filter.TargetReference != "" {
		if filter.TargetReference == models.GroupUngrouped {
			conditions = append(conditions, "target_reference IS NULL")
		} else {
			args = append(args, filter.TargetReference)
			conditions = append(conditions, fmt.Sprintf("target_reference = $%d", len(args)))
		}
	}
	if filter.SourceReference != "" {
		args = append(args, filter.SourceReference)
		conditions = append(conditions, fmt.Sprintf("source_reference = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM suggestions" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count suggestions: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	listQuery := fmt.Sprintf(`SELECT %s FROM suggestions%s
	ORDER BY CASE priority WHEN 'HIGH' THEN 0 WHEN 'NORMAL' THEN 1 ELSE 2 END,
	         confidence DESC, created_at ASC
	LIMIT %d OFFSET %d`, suggestionColumns, where, pageSize, (page-1)*pageSize)

	var suggestions []models.Suggestion
	if err := r.db.SelectContext(ctx, &suggestions, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list suggestions: %w", err)
	}
	return suggestions, total, nil
}

// Groups clusters pending suggestions by target reference. Suggestions
// without a target land in the ungrouped bucket.
func (r *SuggestionRepository) Groups(ctx context.Context) ([]models.SuggestionGroup, error) {
	const query = `SELECT COALESCE(target_reference, 'ungrouped') AS target_reference,
	       COUNT(*) AS cnt,
	       COUNT(*) FILTER (WHERE priority = 'HIGH') AS high_priority,
	       AVG(confidence) AS avg_confidence,
	       MAX(confidence) AS max_confidence
	FROM suggestions
	WHERE status = 'PENDING'
	GROUP BY COALESCE(target_reference, 'ungrouped')
	ORDER BY cnt DESC, target_reference ASC`
	var groups []models.SuggestionGroup
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("group suggestions: %w", err)
	}
	return groups, nil
}

// PendingIDsByTarget lists pending suggestion ids for one target group,
// oldest first so bulk review processes them in arrival order.
func (r *SuggestionRepository) PendingIDsByTarget(ctx context.Context, targetReference string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 200
	}
	query := `SELECT id FROM suggestions WHERE status = 'PENDING' AND target_reference = $1 ORDER BY created_at ASC LIMIT $2`
	args := []interface{}{targetReference, limit}
	if targetReference == models.GroupUngrouped {
		query = `SELECT id FROM suggestions WHERE status = 'PENDING' AND target_reference IS NULL ORDER BY created_at ASC LIMIT $1`
		args = []interface{}{limit}
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("list pending ids by target: %w", err)
	}
	return ids, nil
}

// PendingIDsAboveConfidence lists pending suggestion ids at or above the
// confidence floor.
func (r *SuggestionRepository) PendingIDsAboveConfidence(ctx context.Context, minConfidence float64, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 200
	}
	const query = `SELECT id FROM suggestions WHERE status = 'PENDING' AND confidence >= $1 ORDER BY confidence DESC, created_at ASC LIMIT $2`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, minConfidence, limit); err != nil {
		return nil, fmt.Errorf("list pending ids above confidence: %w", err)
	}
	return ids, nil
}

// ReviewOutcome groups the columns a review decision writes.
type ReviewOutcome struct {
	ID              string
	Status          models.SuggestionStatus
	ReviewedBy      string
	ReviewedAt      time.Time
	ReviewNotes     *string
	RejectionReason *string
	TargetReference *string
}

// MarkReviewed records a review decision. The update is guarded on the
// pending status; losing a race surfaces as sql.ErrNoRows.
func (r *SuggestionRepository) MarkReviewed(ctx context.Context, exec sqlx.ExtContext, outcome ReviewOutcome) error {
	setParts := []string{
		"status = :status",
		"reviewed_by = :reviewed_by",
		"reviewed_at = :reviewed_at",
		"updated_at = :reviewed_at",
	}
	if outcome.ReviewNotes != nil {
		setParts = append(setParts, "review_notes = :review_notes")
	}
	if outcome.RejectionReason != nil {
		setParts = append(setParts, "rejection_reason = :rejection_reason")
	}
	if outcome.TargetReference != nil {
		setParts = append(setParts, "target_reference = :target_reference")
	}
	query := fmt.Sprintf("UPDATE suggestions SET %s WHERE id = :id AND status = '%s'",
		strings.Join(setParts, ", "),
		models.SuggestionStatusPending,
	)
	result, err := sqlx.NamedExecContext(ctx, exec, query, map[string]interface{}{
		"id":               outcome.ID,
		"status":           outcome.Status,
		"reviewed_by":      outcome.ReviewedBy,
		"reviewed_at":      outcome.ReviewedAt,
		"review_notes":     outcome.ReviewNotes,
		"rejection_reason": outcome.RejectionReason,
		"target_reference": outcome.TargetReference,
	})
	if err != nil {
		return fmt.Errorf("mark suggestion reviewed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check review update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReopenFromReview returns an applied suggestion to the pending state
// after its changes were reversed. Guarded so only applied suggestions
// can be reopened; anything else surfaces as sql.ErrNoRows.
func (r *SuggestionRepository) ReopenFromReview(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error {
	const query = `UPDATE suggestions
	SET status = 'PENDING', reviewed_by = NULL, reviewed_at = NULL, updated_at = $2
	WHERE id = $1 AND status IN ('APPROVED', 'CORRECTED')`
	result, err := exec.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("reopen suggestion: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check reopen rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
