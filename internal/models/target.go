package models

import "time"

// Business entity rows the apply engine mutates. The engine itself works
// through the generic table registry; these structs back lookups and
// seed/test fixtures.

// Project is a studio engagement.
type Project struct {
	ID             string    `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	ClientName     string    `db:"client_name" json:"client_name"`
	Status         string    `db:"status" json:"status"`
	PrimaryContact *string   `db:"primary_contact_id" json:"primary_contact_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Proposal is a pitch that may become a project.
type Proposal struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	ClientName string    `db:"client_name" json:"client_name"`
	Status     string    `db:"status" json:"status"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Contact is a person the studio corresponds with.
type Contact struct {
	ID        string    `db:"id" json:"id"`
	FullName  string    `db:"full_name" json:"full_name"`
	Email     string    `db:"email" json:"email"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Company   *string   `db:"company" json:"company,omitempty"`
	Role      *string   `db:"role" json:"role,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ProjectAlias is an alternate name a project goes by in correspondence.
type ProjectAlias struct {
	ID        string    `db:"id" json:"id"`
	ProjectID string    `db:"project_id" json:"project_id"`
	Alias     string    `db:"alias" json:"alias"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// EmailLink associates an email with a project or proposal.
type EmailLink struct {
	ID         string    `db:"id" json:"id"`
	EmailID    string    `db:"email_id" json:"email_id"`
	ProjectID  *string   `db:"project_id" json:"project_id,omitempty"`
	ProposalID *string   `db:"proposal_id" json:"proposal_id,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ContactLink associates an email with a contact.
type ContactLink struct {
	ID        string    `db:"id" json:"id"`
	EmailID   string    `db:"email_id" json:"email_id"`
	ContactID string    `db:"contact_id" json:"contact_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TranscriptLink associates a meeting transcript with a project.
type TranscriptLink struct {
	ID           string    `db:"id" json:"id"`
	TranscriptID string    `db:"transcript_id" json:"transcript_id"`
	ProjectID    string    `db:"project_id" json:"project_id"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
