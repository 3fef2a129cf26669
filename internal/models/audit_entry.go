package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ChangeAction enumerates the row-level operations the apply engine
// performs against business records.
type ChangeAction string

const (
	ChangeActionInsert ChangeAction = "insert"
	ChangeActionUpdate ChangeAction = "update"
	ChangeActionDelete ChangeAction = "delete"
)

// FieldChange records one field-level transition. Old and New are the
// textual representations persisted in the ledger; nil means SQL NULL.
type FieldChange struct {
	Field string  `json:"field"`
	Old   *string `json:"old"`
	New   *string `json:"new"`
}

// FieldChangeList persists an ordered set of field changes as JSONB.
type FieldChangeList []FieldChange

// Value marshals the change list for persistence.
func (l FieldChangeList) Value() (driver.Value, error) {
	if l == nil {
		l = FieldChangeList{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return nil, fmt.Errorf("marshal field changes: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the change list.
func (l *FieldChangeList) Scan(value interface{}) error {
	if value == nil {
		*l = FieldChangeList{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for FieldChangeList", value)
	}
	if len(data) == 0 {
		*l = FieldChangeList{}
		return nil
	}
	if err := json.Unmarshal(data, l); err != nil {
		return fmt.Errorf("unmarshal field changes: %w", err)
	}
	return nil
}

// AuditEntry is one reversible row mutation performed by an approval.
// Entries are retained forever; rollback marks them reversed instead of
// deleting them. Seq orders entries within a suggestion so rollback can
// replay them newest-first.
type AuditEntry struct {
	ID           string          `db:"id" json:"id"`
	SuggestionID string          `db:"suggestion_id" json:"suggestion_id"`
	Seq          int             `db:"seq" json:"seq"`
	Action       ChangeAction    `db:"action" json:"action"`
	TargetTable  string          `db:"target_table" json:"target_table"`
	TargetKey    string          `db:"target_key" json:"target_key"`
	FieldChanges FieldChangeList `db:"field_changes" json:"field_changes"`
	PerformedBy  string          `db:"performed_by" json:"performed_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ReversedAt   *time.Time      `db:"reversed_at" json:"reversed_at,omitempty"`
}

// Reversed reports whether this entry has already been undone.
func (e *AuditEntry) Reversed() bool {
	return e.ReversedAt != nil
}
