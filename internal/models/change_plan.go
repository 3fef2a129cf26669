package models

// PlannedAction is one row-level operation an approval would perform.
// Changes carry the full field transition so the same shape serves the
// preview response and the persisted audit entry.
type PlannedAction struct {
	Action  ChangeAction    `json:"action"`
	Table   string          `json:"table"`
	Key     string          `json:"key"`
	Changes FieldChangeList `json:"changes"`
}

// ChangePlan is the computed effect of approving a suggestion. Planning
// is read-only; applying the plan is the commit engine's job.
type ChangePlan struct {
	SuggestionID string          `json:"suggestion_id"`
	Actionable   bool            `json:"actionable"`
	Reason       string          `json:"reason,omitempty"`
	Summary      string          `json:"summary"`
	Actions      []PlannedAction `json:"actions"`
}

// NotActionablePlan builds a plan that explains why nothing would happen.
func NotActionablePlan(suggestionID, reason string) *ChangePlan {
	return &ChangePlan{
		SuggestionID: suggestionID,
		Actionable:   false,
		Reason:       reason,
		Summary:      reason,
		Actions:      nil,
	}
}
