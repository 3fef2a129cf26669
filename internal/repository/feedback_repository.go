package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lindenworks/studio-ops-api/internal/models"
)

const feedbackColumns = `id, suggestion_id, notes, tags, contact_role, priority_override,
       created_by, created_at, updated_at`

// FeedbackRepository persists reviewer feedback attached to suggestions.
type FeedbackRepository struct {
	db *sqlx.DB
}

// NewFeedbackRepository constructs the repository.
func NewFeedbackRepository(db *sqlx.DB) *FeedbackRepository {
	return &FeedbackRepository{db: db}
}

// Upsert writes feedback for a suggestion. One record per suggestion;
// saving again replaces the content.
func (r *FeedbackRepository) Upsert(ctx context.Context, feedback *models.UserFeedback) (*models.UserFeedback, error) {
	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = now
	}
	feedback.UpdatedAt = now

	query := fmt.Sprintf(`INSERT INTO suggestion_feedback
	(id, suggestion_id, notes, tags, contact_role, priority_override, created_by, created_at, updated_at)
	VALUES (:id, :suggestion_id, :notes, :tags, :contact_role, :priority_override, :created_by, :created_at, :updated_at)
	ON CONFLICT (suggestion_id) DO UPDATE SET
	    notes = EXCLUDED.notes,
	    tags = EXCLUDED.tags,
	    contact_role = EXCLUDED.contact_role,
	    priority_override = EXCLUDED.priority_override,
	    created_by = EXCLUDED.created_by,
	    updated_at = EXCLUDED.updated_at
	RETURNING %s`, feedbackColumns)

	rows, err := sqlx.NamedQueryContext(ctx, r.db, query, feedback)
	if err != nil {
		return nil, fmt.Errorf("upsert feedback: %w", err)
	}
	defer rows.Close()

	var saved models.UserFeedback
	if rows.Next() {
		if err := rows.StructScan(&saved); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read feedback: %w", err)
	}
	return &saved, nil
}

// GetBySuggestion fetches feedback for a suggestion if present.
func (r *FeedbackRepository) GetBySuggestion(ctx context.Context, suggestionID string) (*models.UserFeedback, error) {
	query := fmt.Sprintf(`SELECT %s FROM suggestion_feedback WHERE suggestion_id = $1`, feedbackColumns)
	var feedback models.UserFeedback
	if err := r.db.GetContext(ctx, &feedback, query, suggestionID); err != nil {
		return nil, err
	}
	return &feedback, nil
}

// ListTags aggregates distinct feedback tags with usage counts.
func (r *FeedbackRepository) ListTags(ctx context.Context) ([]models.TagCount, error) {
	const query = `SELECT tag, COUNT(*) AS cnt
	FROM suggestion_feedback, unnest(tags) AS tag
	GROUP BY tag ORDER BY cnt DESC, tag ASC`
	var tags []models.TagCount
	if err := r.db.SelectContext(ctx, &tags, query); err != nil {
		return nil, fmt.Errorf("list feedback tags: %w", err)
	}
	return tags, nil
}
