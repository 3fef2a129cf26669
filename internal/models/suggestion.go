package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// SuggestionType enumerates supported suggestion categories.
type SuggestionType string

const (
	SuggestionTypeNewContact     SuggestionType = "NEW_CONTACT"
	SuggestionTypeProjectAlias   SuggestionType = "PROJECT_ALIAS"
	SuggestionTypeEmailLink      SuggestionType = "EMAIL_LINK"
	SuggestionTypeContactLink    SuggestionType = "CONTACT_LINK"
	SuggestionTypeTranscriptLink SuggestionType = "TRANSCRIPT_LINK"
	SuggestionTypeOther          SuggestionType = "OTHER"
)

// SuggestionStatus captures review workflow states.
type SuggestionStatus string

const (
	SuggestionStatusPending   SuggestionStatus = "PENDING"
	SuggestionStatusApproved  SuggestionStatus = "APPROVED"
	SuggestionStatusRejected  SuggestionStatus = "REJECTED"
	SuggestionStatusCorrected SuggestionStatus = "CORRECTED"
)

// SuggestionPriority orders the review queue.
type SuggestionPriority string

const (
	PriorityLow    SuggestionPriority = "LOW"
	PriorityNormal SuggestionPriority = "NORMAL"
	PriorityHigh   SuggestionPriority = "HIGH"
)

// Suggestion is a proposed change to the business records, produced by the
// candidate generator from a piece of correspondence and awaiting review.
type Suggestion struct {
	ID              string             `db:"id" json:"id"`
	Type            SuggestionType     `db:"suggestion_type" json:"suggestion_type"`
	Status          SuggestionStatus   `db:"status" json:"status"`
	Priority        SuggestionPriority `db:"priority" json:"priority"`
	Confidence      float64            `db:"confidence" json:"confidence"`
	SuggestedData   types.JSONText     `db:"suggested_data" json:"suggested_data"`
	SourceReference string             `db:"source_reference" json:"source_reference"`
	TargetReference *string            `db:"target_reference" json:"target_reference,omitempty"`
	ReviewNotes     *string            `db:"review_notes" json:"review_notes,omitempty"`
	RejectionReason *string            `db:"rejection_reason" json:"rejection_reason,omitempty"`
	ReviewedBy      *string            `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time         `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}

// Reviewed reports whether a terminal review decision has been recorded.
func (s *Suggestion) Reviewed() bool {
	return s.Status != SuggestionStatusPending
}

// SuggestionFilter constrains listing queries.
type SuggestionFilter struct {
	Status          []SuggestionStatus
	Type            SuggestionType
	Priority        SuggestionPriority
	MinConfidence   *float64
	TargetReference string
	SourceReference string
	Page            int
	PageSize        int
}

// SuggestionGroup aggregates pending suggestions sharing a target.
type SuggestionGroup struct {
	TargetReference string  `db:"target_reference" json:"target_reference"`
	Count           int     `db:"cnt" json:"count"`
	HighPriority    int     `db:"high_priority" json:"high_priority"`
	AvgConfidence   float64 `db:"avg_confidence" json:"avg_confidence"`
	MaxConfidence   float64 `db:"max_confidence" json:"max_confidence"`
}

// GroupUngrouped is the bucket for suggestions without a target reference.
const GroupUngrouped = "ungrouped"
