package dto

import "github.com/lindenworks/studio-ops-api/internal/models"

// PatternFlags selects which learned patterns a review decision derives
// from the suggestion's source.
type PatternFlags struct {
	CreateSenderPattern bool     `json:"createSenderPattern"`
	CreateDomainPattern bool     `json:"createDomainPattern"`
	Keywords            []string `json:"keywords"`
	Notes               string   `json:"patternNotes"`
}

// FeedbackPayload carries optional reviewer context saved alongside a
// decision.
type FeedbackPayload struct {
	Notes            *string                    `json:"notes"`
	Tags             []string                   `json:"tags"`
	ContactRole      *string                    `json:"contactRole"`
	PriorityOverride *models.SuggestionPriority `json:"priorityOverride"`
}

// ExtraAction is a reviewer-supplied addition to an approval bundle.
type ExtraAction struct {
	Action models.ChangeAction `json:"action" validate:"required"`
	Table  string              `json:"table" validate:"required"`
	Key    string              `json:"key"`
	Fields map[string]*string  `json:"fields"`
}

// ApproveSuggestionRequest captures the approve operation options. Edits
// override planned field values; Actions extend the bundle.
type ApproveSuggestionRequest struct {
	Edits    map[string]*string `json:"edits"`
	Actions  []ExtraAction      `json:"actions"`
	Notes    string             `json:"notes"`
	Patterns PatternFlags       `json:"patterns"`
	Feedback *FeedbackPayload   `json:"feedback"`
}

// RejectSuggestionRequest captures the reject operation.
type RejectSuggestionRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// CorrectSuggestionRequest redirects a suggestion at the right target.
type CorrectSuggestionRequest struct {
	CorrectTarget string   `json:"correctTarget" validate:"required"`
	Reason        string   `json:"reason" validate:"required"`
	CreatePattern bool     `json:"createPattern"`
	PatternNotes  string   `json:"patternNotes"`
	Keywords      []string `json:"keywords"`
}

// BulkApproveRequest approves a set of ids, or every pending suggestion
// at or above a confidence floor when MinConfidence is set.
type BulkApproveRequest struct {
	IDs           []string `json:"ids"`
	MinConfidence *float64 `json:"minConfidence"`
}

// BulkRejectRequest rejects a set of ids with a shared reason.
type BulkRejectRequest struct {
	IDs    []string `json:"ids" validate:"required,min=1"`
	Reason string   `json:"reason" validate:"required"`
}

// GroupApproveRequest approves every pending suggestion in one target
// group ("ungrouped" addresses suggestions without a target).
type GroupApproveRequest struct {
	TargetReference string `json:"targetReference" validate:"required"`
}

// BulkSkip reports an id left untouched because it was no longer pending.
type BulkSkip struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkFailure reports an id whose processing failed.
type BulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// BulkReviewResult summarises a batch review. Items are processed
// independently; the batch itself never fails.
type BulkReviewResult struct {
	Processed int           `json:"processed"`
	Succeeded []string      `json:"succeeded"`
	Skipped   []BulkSkip    `json:"skipped"`
	Failed    []BulkFailure `json:"failed"`
}

// ReviewResult is returned by approve/correct: the updated suggestion,
// the row mutations that were committed, and any patterns learned.
type ReviewResult struct {
	Suggestion      *models.Suggestion      `json:"suggestion"`
	AppliedChanges  []models.AuditEntry     `json:"applied_changes,omitempty"`
	PatternsCreated []models.LearnedPattern `json:"patterns_created,omitempty"`
}

// RollbackResult reports a completed reversal.
type RollbackResult struct {
	Suggestion      *models.Suggestion `json:"suggestion"`
	ReversedEntries int                `json:"reversed_entries"`
}

// FeedbackRequest saves reviewer feedback outside a review decision.
type FeedbackRequest struct {
	Notes            *string                    `json:"notes"`
	Tags             []string                   `json:"tags"`
	ContactRole      *string                    `json:"contactRole"`
	PriorityOverride *models.SuggestionPriority `json:"priorityOverride"`
}
