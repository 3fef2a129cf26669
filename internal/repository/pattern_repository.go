package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lindenworks/studio-ops-api/internal/models"
)

const patternColumns = `id, pattern_type, pattern_key, target_reference, confidence_boost,
       times_used, times_correct, times_rejected, notes, created_at, updated_at`

// PatternRepository persists learned correspondence patterns.
type PatternRepository struct {
	db *sqlx.DB
}

// NewPatternRepository constructs the repository.
func NewPatternRepository(db *sqlx.DB) *PatternRepository {
	return &PatternRepository{db: db}
}

// Upsert records one learning event. The (type, key, target) triple is
// unique; an existing pattern gets its counters incremented instead of a
// duplicate row, which makes repeated learning idempotent in shape.
func (r *PatternRepository) Upsert(ctx context.Context, up models.PatternUpsert) (*models.LearnedPattern, error) {
	correctInc := 0
	rejectedInc := 0
	if up.Correct {
		correctInc = 1
	} else {
		rejectedInc = 1
	}
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO learned_patterns
	(id, pattern_type, pattern_key, target_reference, confidence_boost, times_used, times_correct, times_rejected, notes, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, 1, $6, $7, $8, $9, $9)
	ON CONFLICT (pattern_type, pattern_key, target_reference) DO UPDATE SET
	    times_used = learned_patterns.times_used + 1,
	    times_correct = learned_patterns.times_correct + $6,
	    times_rejected = learned_patterns.times_rejected + $7,
	    notes = COALESCE(EXCLUDED.notes, learned_patterns.notes),
	    updated_at = $9
	RETURNING %s`, patternColumns)

	var pattern models.LearnedPattern
	err := r.db.GetContext(ctx, &pattern, query,
		uuid.NewString(), up.Type, up.Key, up.TargetReference, up.ConfidenceBoost,
		correctInc, rejectedInc, up.Notes, now,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert pattern: %w", err)
	}
	return &pattern, nil
}

// List returns patterns matching the filter plus the total match count.
func (r *PatternRepository) List(ctx context.Context, filter models.PatternFilter) ([]models.LearnedPattern, int, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)

	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("pattern_type = $%d", len(args)))
	}
	if filter.TargetReference != "" {
		args = append(args, filter.TargetReference)
		conditions = append(conditions, fmt.Sprintf("target_reference = $%d", len(args)))
	}
	if filter.MinBoost != nil {
		args = append(args, *filter.MinBoost)
		conditions = append(conditions, fmt.Sprintf("confidence_boost >= $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM learned_patterns"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count patterns: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM learned_patterns%s
	ORDER BY times_used DESC, updated_at DESC LIMIT %d OFFSET %d`,
		patternColumns, where, pageSize, (page-1)*pageSize)

	var patterns []models.LearnedPattern
	if err := r.db.SelectContext(ctx, &patterns, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list patterns: %w", err)
	}
	return patterns, total, nil
}

// Match finds patterns keyed on any of the given signals.
func (r *PatternRepository) Match(ctx context.Context, sender, domain string, keywords []string) ([]models.LearnedPattern, error) {
	conditions := make([]string, 0, 3)
	args := make([]interface{}, 0, 3)

	if sender != "" {
		args = append(args, sender)
		conditions = append(conditions, fmt.Sprintf("(pattern_type = 'SENDER' AND pattern_key = $%d)", len(args)))
	}
	if domain != "" {
		args = append(args, domain)
		conditions = append(conditions, fmt.Sprintf("(pattern_type = 'DOMAIN' AND pattern_key = $%d)", len(args)))
	}
	if len(keywords) > 0 {
		args = append(args, pq.Array(keywords))
		conditions = append(conditions, fmt.Sprintf("(pattern_type = 'KEYWORD' AND pattern_key = ANY($%d))", len(args)))
	}
	if len(conditions) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM learned_patterns WHERE %s
	ORDER BY confidence_boost DESC, times_used DESC`,
		patternColumns, strings.Join(conditions, " OR "))

	var patterns []models.LearnedPattern
	if err := r.db.SelectContext(ctx, &patterns, query, args...); err != nil {
		return nil, fmt.Errorf("match patterns: %w", err)
	}
	return patterns, nil
}
