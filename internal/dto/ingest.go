package dto

import "github.com/lindenworks/studio-ops-api/internal/models"

// CreateIngestJobRequest starts a source import from a file previously
// placed in the import drop directory.
type CreateIngestJobRequest struct {
	Type     models.IngestJobType `json:"type" validate:"required"`
	FileName string               `json:"fileName" validate:"required"`
	Mailbox  string               `json:"mailbox"`
}

// IngestJobResponse is returned after enqueueing an import.
type IngestJobResponse struct {
	ID       string                 `json:"id"`
	Status   models.IngestJobStatus `json:"status"`
	Progress int                    `json:"progress"`
}

// ImportedEmail is one email record in a drop file.
type ImportedEmail struct {
	MessageID  string   `json:"message_id"`
	Sender     string   `json:"sender"`
	SenderName string   `json:"sender_name,omitempty"`
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
	ReceivedAt string   `json:"received_at"`
}

// ImportedTranscript is one transcript record in a drop file.
type ImportedTranscript struct {
	Title        string   `json:"title"`
	Participants []string `json:"participants"`
	Body         string   `json:"body"`
	MeetingAt    string   `json:"meeting_at"`
}
