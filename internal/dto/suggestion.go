package dto

import (
	"encoding/json"

	"github.com/lindenworks/studio-ops-api/internal/models"
)

// IngestSuggestionRequest is the payload the candidate generator POSTs
// for each proposed entity link.
type IngestSuggestionRequest struct {
	Type            models.SuggestionType     `json:"type" validate:"required"`
	SourceReference string                    `json:"sourceReference" validate:"required"`
	Confidence      float64                   `json:"confidence" validate:"gte=0,lte=1"`
	Priority        models.SuggestionPriority `json:"priority"`
	SuggestedData   json.RawMessage           `json:"suggestedData" validate:"required"`
}

// SuggestionQuery mirrors supported listing filters.
type SuggestionQuery struct {
	Status          []models.SuggestionStatus `form:"status"`
	Type            models.SuggestionType     `form:"type"`
	Priority        models.SuggestionPriority `form:"priority"`
	MinConfidence   *float64                  `form:"minConfidence"`
	TargetReference string                    `form:"targetReference"`
	SourceReference string                    `form:"sourceReference"`
	Page            int                       `form:"page"`
	PageSize        int                       `form:"pageSize"`
}

// SuggestionDetail bundles a suggestion with its review context.
type SuggestionDetail struct {
	Suggestion *models.Suggestion   `json:"suggestion"`
	Feedback   *models.UserFeedback `json:"feedback,omitempty"`
	AuditTrail []models.AuditEntry  `json:"audit_trail"`
}
