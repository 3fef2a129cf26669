package models

import "time"

// PatternType enumerates the signals the learning engine keys on.
type PatternType string

const (
	PatternTypeSender  PatternType = "SENDER"
	PatternTypeDomain  PatternType = "DOMAIN"
	PatternTypeKeyword PatternType = "KEYWORD"
)

// LearnedPattern is an association between a correspondence signal and a
// business entity, accumulated from review decisions. The combination of
// (type, key, target) is unique; repeated learning increments counters
// instead of inserting duplicates.
type LearnedPattern struct {
	ID              string      `db:"id" json:"id"`
	Type            PatternType `db:"pattern_type" json:"pattern_type"`
	Key             string      `db:"pattern_key" json:"pattern_key"`
	TargetReference string      `db:"target_reference" json:"target_reference"`
	ConfidenceBoost float64     `db:"confidence_boost" json:"confidence_boost"`
	TimesUsed       int         `db:"times_used" json:"times_used"`
	TimesCorrect    int         `db:"times_correct" json:"times_correct"`
	TimesRejected   int         `db:"times_rejected" json:"times_rejected"`
	Notes           *string     `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at" json:"updated_at"`
}

// PatternUpsert is the input for the idempotent learn operation.
type PatternUpsert struct {
	Type            PatternType
	Key             string
	TargetReference string
	ConfidenceBoost float64
	Correct         bool
	Notes           *string
}

// PatternFilter constrains pattern listing queries.
type PatternFilter struct {
	Type            PatternType
	TargetReference string
	MinBoost        *float64
	Page            int
	PageSize        int
}

// PatternMatch is the lookup result served to the candidate generator.
type PatternMatch struct {
	Patterns      []LearnedPattern `json:"patterns"`
	CombinedBoost float64          `json:"combined_boost"`
}
