package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// IngestJobType enumerates supported source import categories.
type IngestJobType string

const (
	IngestJobTypeEmails      IngestJobType = "EMAIL_IMPORT"
	IngestJobTypeTranscripts IngestJobType = "TRANSCRIPT_IMPORT"
)

// IngestJobStatus captures background job lifecycle states.
type IngestJobStatus string

const (
	IngestJobStatusQueued    IngestJobStatus = "QUEUED"
	IngestJobStatusRunning   IngestJobStatus = "RUNNING"
	IngestJobStatusCompleted IngestJobStatus = "COMPLETED"
	IngestJobStatusFailed    IngestJobStatus = "FAILED"
)

// IngestJob is the durable record of a source import run. The row, not
// process memory, is the single source of truth for job state, so
// progress survives restarts and queued jobs can be recovered.
type IngestJob struct {
	ID           string          `db:"id" json:"id"`
	Type         IngestJobType   `db:"type" json:"type"`
	Params       IngestJobParams `db:"params" json:"params"`
	Status       IngestJobStatus `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	Imported     int             `db:"imported" json:"imported"`
	Skipped      int             `db:"skipped" json:"skipped"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	StartedAt    *time.Time      `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// IngestJobParams stores request-scoped options persisted as JSONB.
type IngestJobParams struct {
	FileName string            `json:"file_name"`
	Mailbox  string            `json:"mailbox,omitempty"`
	Extras   map[string]string `json:"extras,omitempty"`
}

// Value marshals params to JSON for persistence.
func (p IngestJobParams) Value() (driver.Value, error) {
	if p.Extras == nil {
		p.Extras = map[string]string{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal ingest job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *IngestJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = IngestJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for IngestJobParams", value)
	}
	if len(data) == 0 {
		*p = IngestJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal ingest job params: %w", err)
	}
	return nil
}
