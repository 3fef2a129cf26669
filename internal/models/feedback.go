package models

import (
	"time"

	"github.com/lib/pq"
)

// UserFeedback captures reviewer context attached to a suggestion. At
// most one record per suggestion; saving again replaces the content.
type UserFeedback struct {
	ID               string              `db:"id" json:"id"`
	SuggestionID     string              `db:"suggestion_id" json:"suggestion_id"`
	Notes            *string             `db:"notes" json:"notes,omitempty"`
	Tags             pq.StringArray      `db:"tags" json:"tags"`
	ContactRole      *string             `db:"contact_role" json:"contact_role,omitempty"`
	PriorityOverride *SuggestionPriority `db:"priority_override" json:"priority_override,omitempty"`
	CreatedBy        string              `db:"created_by" json:"created_by"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`
}

// TagCount aggregates feedback tag usage for the tag directory.
type TagCount struct {
	Tag   string `db:"tag" json:"tag"`
	Count int    `db:"cnt" json:"count"`
}
