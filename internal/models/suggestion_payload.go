package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// SuggestedPayload is the typed content of a suggestion's suggested_data
// column. Each suggestion type has exactly one payload shape; anything
// else is rejected at ingestion.
type SuggestedPayload interface {
	Validate() error
}

// NewContactData proposes creating a contact record for a sender the
// generator could not resolve.
type NewContactData struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Company  string `json:"company,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (d NewContactData) Validate() error {
	if strings.TrimSpace(d.FullName) == "" {
		return fmt.Errorf("full_name is required")
	}
	if strings.TrimSpace(d.Email) == "" {
		return fmt.Errorf("email is required")
	}
	return nil
}

// ProjectAliasData proposes registering an alternate name under which a
// project appears in correspondence.
type ProjectAliasData struct {
	ProjectID string `json:"project_id"`
	Alias     string `json:"alias"`
}

func (d ProjectAliasData) Validate() error {
	if d.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	if strings.TrimSpace(d.Alias) == "" {
		return fmt.Errorf("alias is required")
	}
	return nil
}

// EmailLinkData proposes linking an email to a project or a proposal.
// Exactly one of the two targets must be set.
type EmailLinkData struct {
	EmailID    string `json:"email_id"`
	ProjectID  string `json:"project_id,omitempty"`
	ProposalID string `json:"proposal_id,omitempty"`
}

func (d EmailLinkData) Validate() error {
	if d.EmailID == "" {
		return fmt.Errorf("email_id is required")
	}
	if (d.ProjectID == "") == (d.ProposalID == "") {
		return fmt.Errorf("exactly one of project_id or proposal_id must be set")
	}
	return nil
}

// ContactLinkData proposes linking an email to an existing contact.
type ContactLinkData struct {
	EmailID   string `json:"email_id"`
	ContactID string `json:"contact_id"`
}

func (d ContactLinkData) Validate() error {
	if d.EmailID == "" {
		return fmt.Errorf("email_id is required")
	}
	if d.ContactID == "" {
		return fmt.Errorf("contact_id is required")
	}
	return nil
}

// TranscriptLinkData proposes linking a meeting transcript to a project.
type TranscriptLinkData struct {
	TranscriptID string `json:"transcript_id"`
	ProjectID    string `json:"project_id"`
}

func (d TranscriptLinkData) Validate() error {
	if d.TranscriptID == "" {
		return fmt.Errorf("transcript_id is required")
	}
	if d.ProjectID == "" {
		return fmt.Errorf("project_id is required")
	}
	return nil
}

// OtherData carries a free-form observation with no executable change.
type OtherData struct {
	Note string `json:"note"`
}

func (d OtherData) Validate() error {
	if strings.TrimSpace(d.Note) == "" {
		return fmt.Errorf("note is required")
	}
	return nil
}

// DecodeSuggestedData parses and validates raw suggested_data for the
// given suggestion type. Unknown fields are rejected so malformed
// generator output fails loudly instead of being silently dropped.
func DecodeSuggestedData(t SuggestionType, raw []byte) (SuggestedPayload, error) {
	var payload SuggestedPayload
	switch t {
	case SuggestionTypeNewContact:
		payload = &NewContactData{}
	case SuggestionTypeProjectAlias:
		payload = &ProjectAliasData{}
	case SuggestionTypeEmailLink:
		payload = &EmailLinkData{}
	case SuggestionTypeContactLink:
		payload = &ContactLinkData{}
	case SuggestionTypeTranscriptLink:
		payload = &TranscriptLinkData{}
	case SuggestionTypeOther:
		payload = &OtherData{}
	default:
		return nil, fmt.Errorf("unknown suggestion type %q", t)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(payload); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", t, err)
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", t, err)
	}
	return payload, nil
}

// DeriveTargetReference computes the canonical target locator for a
// payload. Suggestions whose target does not exist yet (new contacts,
// informational notes) have none and land in the ungrouped bucket.
func DeriveTargetReference(payload SuggestedPayload) *string {
	var ref string
	switch d := payload.(type) {
	case *ProjectAliasData:
		ref = Reference{Kind: RefProject, ID: d.ProjectID}.String()
	case *EmailLinkData:
		if d.ProjectID != "" {
			ref = Reference{Kind: RefProject, ID: d.ProjectID}.String()
		} else {
			ref = Reference{Kind: RefProposal, ID: d.ProposalID}.String()
		}
	case *ContactLinkData:
		ref = Reference{Kind: RefContact, ID: d.ContactID}.String()
	case *TranscriptLinkData:
		ref = Reference{Kind: RefProject, ID: d.ProjectID}.String()
	default:
		return nil
	}
	return &ref
}
