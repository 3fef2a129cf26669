package models

import (
	"time"

	"github.com/lib/pq"
)

// Email is an imported piece of correspondence. The indexed metadata
// lives in Postgres; the raw body is kept on disk under BodyPath.
type Email struct {
	ID         string         `db:"id" json:"id"`
	MessageID  string         `db:"message_id" json:"message_id"`
	Sender     string         `db:"sender" json:"sender"`
	SenderName *string        `db:"sender_name" json:"sender_name,omitempty"`
	Recipients pq.StringArray `db:"recipients" json:"recipients"`
	Subject    string         `db:"subject" json:"subject"`
	Snippet    string         `db:"snippet" json:"snippet"`
	BodyPath   *string        `db:"body_path" json:"-"`
	ReceivedAt time.Time      `db:"received_at" json:"received_at"`
	ImportedAt time.Time      `db:"imported_at" json:"imported_at"`
}

// Transcript is an imported meeting transcript.
type Transcript struct {
	ID           string         `db:"id" json:"id"`
	Title        string         `db:"title" json:"title"`
	Participants pq.StringArray `db:"participants" json:"participants"`
	Snippet      string         `db:"snippet" json:"snippet"`
	BodyPath     *string        `db:"body_path" json:"-"`
	MeetingAt    time.Time      `db:"meeting_at" json:"meeting_at"`
	ImportedAt   time.Time      `db:"imported_at" json:"imported_at"`
}

// SourceContent is a resolved source reference: metadata plus, when the
// storage read succeeds, the raw body text.
type SourceContent struct {
	Reference  string      `json:"reference"`
	Kind       RefKind     `json:"kind"`
	Email      *Email      `json:"email,omitempty"`
	Transcript *Transcript `json:"transcript,omitempty"`
	Body       string      `json:"body,omitempty"`
}
