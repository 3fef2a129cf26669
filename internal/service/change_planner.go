package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lindenworks/studio-ops-api/internal/dto"
	"github.com/lindenworks/studio-ops-api/internal/models"
	"github.com/lindenworks/studio-ops-api/internal/repository"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
)

// plannerTargets is the read-only view of the business tables the planner
// resolves suggestions against.
type plannerTargets interface {
	Spec(table string) (repository.TableSpec, bool)
	FetchRow(ctx context.Context, exec sqlx.ExtContext, table, key string) (map[string]*string, error)
	Exists(ctx context.Context, exec sqlx.ExtContext, table, key string) (bool, error)
	FindContactIDByEmail(ctx context.Context, exec sqlx.ExtContext, email string) (string, error)
	FindAliasID(ctx context.Context, exec sqlx.ExtContext, projectID, alias string) (string, error)
	FindEmailLinkID(ctx context.Context, exec sqlx.ExtContext, emailID, targetColumn, targetID string) (string, error)
	FindContactLinkID(ctx context.Context, exec sqlx.ExtContext, emailID, contactID string) (string, error)
	FindTranscriptLinkID(ctx context.Context, exec sqlx.ExtContext, transcriptID, projectID string) (string, error)
}

// PlanOptions carries reviewer adjustments that participate in planning.
// Edits override field values on the suggestion's own action; Actions
// extend the bundle with additional row operations.
type PlanOptions struct {
	Edits   map[string]*string
	Actions []dto.ExtraAction
}

type typePlanner func(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, payload models.SuggestedPayload) (*models.ChangePlan, error)

// ChangePlanner computes, without side effects, the exact row mutations an
// approval would perform. Each suggestion type has its own planner;
// dispatch happens through a registry so the apply engine stays
// table-agnostic.
type ChangePlanner struct {
	targets  plannerTargets
	planners map[models.SuggestionType]typePlanner
}

// NewChangePlanner constructs the planner with the built-in type registry.
func NewChangePlanner(targets plannerTargets) *ChangePlanner {
	p := &ChangePlanner{targets: targets}
	p.planners = map[models.SuggestionType]typePlanner{
		models.SuggestionTypeNewContact:     p.planNewContact,
		models.SuggestionTypeProjectAlias:   p.planProjectAlias,
		models.SuggestionTypeEmailLink:      p.planEmailLink,
		models.SuggestionTypeContactLink:    p.planContactLink,
		models.SuggestionTypeTranscriptLink: p.planTranscriptLink,
		models.SuggestionTypeOther:          p.planOther,
	}
	return p
}

// Plan resolves the suggestion's payload against current target state and
// returns the change plan. Planning never mutates anything; insert keys
// are derived deterministically from the suggestion id so repeated
// previews of an unmodified suggestion return identical plans.
func (p *ChangePlanner) Plan(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, opts PlanOptions) (*models.ChangePlan, error) {
	payload, err := models.DecodeSuggestedData(suggestion.Type, suggestion.SuggestedData)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored suggestion payload is invalid")
	}
	planner, ok := p.planners[suggestion.Type]
	if !ok {
		return models.NotActionablePlan(suggestion.ID, fmt.Sprintf("no planner registered for type %s", suggestion.Type)), nil
	}
	plan, err := planner(ctx, exec, suggestion, payload)
	if err != nil {
		return nil, err
	}
	plan.SuggestionID = suggestion.ID

	if plan.Actionable && len(opts.Edits) > 0 {
		if err := p.applyEdits(plan, opts.Edits); err != nil {
			return nil, err
		}
	}
	if plan.Actionable && len(opts.Actions) > 0 {
		if err := p.appendExtraActions(ctx, exec, suggestion, plan, opts.Actions); err != nil {
			return nil, err
		}
	}
	return plan, nil
}

// PlanCorrection computes the plan for redirecting a suggestion at a
// reviewer-chosen target. Aliases move to the corrected project; every
// other type links the suggestion's source to the corrected target. The
// caller has already verified the target row exists.
func (p *ChangePlanner) PlanCorrection(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, target models.Reference) (*models.ChangePlan, error) {
	if suggestion.Type == models.SuggestionTypeProjectAlias {
		if target.Kind != models.RefProject {
			return nil, appErrors.Clone(appErrors.ErrValidation, "an alias suggestion can only be corrected to a project")
		}
		payload, err := models.DecodeSuggestedData(suggestion.Type, suggestion.SuggestedData)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored suggestion payload is invalid")
		}
		alias := payload.(*models.ProjectAliasData).Alias
		existing, err := p.targets.FindAliasID(ctx, exec, target.ID, alias)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing alias")
		}
		if existing != "" {
			return models.NotActionablePlan(suggestion.ID,
				fmt.Sprintf("alias %q is already registered for %s", alias, target.String())), nil
		}
		plan := p.insertPlan(suggestion.ID, "project_aliases", correctionKey(suggestion.ID, "project_aliases"), map[string]*string{
			"project_id": textValue(target.ID),
			"alias":      textValue(alias),
		})
		plan.Summary = fmt.Sprintf("register alias %q for %s", alias, target.String())
		return plan, nil
	}

	source, err := models.ParseSourceReference(suggestion.SourceReference)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored source reference is invalid")
	}
	plan, err := p.planSourceLink(ctx, exec, suggestion.ID, source, target, true)
	if err != nil || plan == nil || !plan.Actionable {
		return plan, err
	}
	plan.Summary = fmt.Sprintf("link %s to %s", source.String(), target.String())
	return plan, nil
}

func (p *ChangePlanner) planNewContact(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, payload models.SuggestedPayload) (*models.ChangePlan, error) {
	data := payload.(*models.NewContactData)
	existing, err := p.targets.FindContactIDByEmail(ctx, exec, data.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing contacts")
	}
	if existing != "" {
		return models.NotActionablePlan(suggestion.ID,
			fmt.Sprintf("a contact with email %s already exists (contact:%s)", data.Email, existing)), nil
	}
	plan := p.insertPlan(suggestion.ID, "contacts", insertKey(suggestion.ID, "contacts"), map[string]*string{
		"full_name": textValue(data.FullName),
		"email":     textValue(data.Email),
		"phone":     textValue(data.Phone),
		"company":   textValue(data.Company),
		"role":      textValue(data.Role),
	})
	plan.Summary = fmt.Sprintf("create contact %q <%s>", data.FullName, data.Email)
	return plan, nil
}

func (p *ChangePlanner) planProjectAlias(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, payload models.SuggestedPayload) (*models.ChangePlan, error) {
	data := payload.(*models.ProjectAliasData)
	exists, err := p.targets.Exists(ctx, exec, "projects", data.ProjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve project")
	}
	if !exists {
		return models.NotActionablePlan(suggestion.ID, fmt.Sprintf("project:%s not found", data.ProjectID)), nil
	}
	existing, err := p.targets.FindAliasID(ctx, exec, data.ProjectID, data.Alias)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing alias")
	}
	if existing != "" {
		return models.NotActionablePlan(suggestion.ID,
			fmt.Sprintf("alias %q is already registered for project:%s", data.Alias, data.ProjectID)), nil
	}
	plan := p.insertPlan(suggestion.ID, "project_aliases", insertKey(suggestion.ID, "project_aliases"), map[string]*string{
		"project_id": textValue(data.ProjectID),
		"alias":      textValue(data.Alias),
	})
	plan.Summary = fmt.Sprintf("register alias %q for project:%s", data.Alias, data.ProjectID)
	return plan, nil
}

func (p *ChangePlanner) planEmailLink(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, payload models.SuggestedPayload) (*models.ChangePlan, error) {
	data := payload.(*models.EmailLinkData)
	target := models.Reference{Kind: models.RefProject, ID: data.ProjectID}
	if data.ProjectID == "" {
		target = models.Reference{Kind: models.RefProposal, ID: data.ProposalID}
	}
	plan, err := p.planSourceLink(ctx, exec, suggestion.ID, models.Reference{Kind: models.RefEmail, ID: data.EmailID}, target, false)
	if err != nil || plan == nil || !plan.Actionable {
		return plan, err
	}
	plan.Summary = fmt.Sprintf("link email:%s to %s", data.EmailID, target.String())
	return plan, nil
}

func (p *ChangePlanner) planContactLink(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, payload models.SuggestedPayload) (*models.ChangePlan, error) {
	data := payload.(*models.ContactLinkData)
	plan, err := p.planSourceLink(ctx, exec, suggestion.ID,
		models.Reference{Kind: models.RefEmail, ID: data.EmailID},
		models.Reference{Kind: models.RefContact, ID: data.ContactID}, false)
	if err != nil || plan == nil || !plan.Actionable {
		return plan, err
	}
	plan.Summary = fmt.Sprintf("link email:%s to contact:%s", data.EmailID, data.ContactID)
	return plan, nil
}

func (p *ChangePlanner) planTranscriptLink(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, payload models.SuggestedPayload) (*models.ChangePlan, error) {
	data := payload.(*models.TranscriptLinkData)
	plan, err := p.planSourceLink(ctx, exec, suggestion.ID,
		models.Reference{Kind: models.RefTranscript, ID: data.TranscriptID},
		models.Reference{Kind: models.RefProject, ID: data.ProjectID}, false)
	if err != nil || plan == nil || !plan.Actionable {
		return plan, err
	}
	plan.Summary = fmt.Sprintf("link transcript:%s to project:%s", data.TranscriptID, data.ProjectID)
	return plan, nil
}

func (p *ChangePlanner) planOther(_ context.Context, _ sqlx.ExtContext, suggestion *models.Suggestion, _ models.SuggestedPayload) (*models.ChangePlan, error) {
	return models.NotActionablePlan(suggestion.ID, "informational suggestion, nothing to apply"), nil
}

// planSourceLink builds the insert plan for a source-to-target link row,
// checking the target still exists and the link is not a duplicate.
func (p *ChangePlanner) planSourceLink(ctx context.Context, exec sqlx.ExtContext, suggestionID string, source, target models.Reference, correction bool) (*models.ChangePlan, error) {
	targetTable, ok := repository.TableForTarget(target.Kind)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported target kind %q", target.Kind))
	}
	exists, err := p.targets.Exists(ctx, exec, targetTable, target.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve link target")
	}
	if !exists {
		return models.NotActionablePlan(suggestionID, fmt.Sprintf("%s not found", target.String())), nil
	}

	var table string
	fields := map[string]*string{}
	var existing string
	switch source.Kind {
	case models.RefEmail:
		switch target.Kind {
		case models.RefProject:
			table = "email_links"
			fields["email_id"] = textValue(source.ID)
			fields["project_id"] = textValue(target.ID)
			existing, err = p.targets.FindEmailLinkID(ctx, exec, source.ID, "project_id", target.ID)
		case models.RefProposal:
			table = "email_links"
			fields["email_id"] = textValue(source.ID)
			fields["proposal_id"] = textValue(target.ID)
			existing, err = p.targets.FindEmailLinkID(ctx, exec, source.ID, "proposal_id", target.ID)
		case models.RefContact:
			table = "contact_links"
			fields["email_id"] = textValue(source.ID)
			fields["contact_id"] = textValue(target.ID)
			existing, err = p.targets.FindContactLinkID(ctx, exec, source.ID, target.ID)
		}
	case models.RefTranscript:
		if target.Kind != models.RefProject {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a transcript can only be linked to a project")
		}
		table = "transcript_links"
		fields["transcript_id"] = textValue(source.ID)
		fields["project_id"] = textValue(target.ID)
		existing, err = p.targets.FindTranscriptLinkID(ctx, exec, source.ID, target.ID)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported source kind %q", source.Kind))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing link")
	}
	if existing != "" {
		return models.NotActionablePlan(suggestionID,
			fmt.Sprintf("%s is already linked to %s", source.String(), target.String())), nil
	}

	key := insertKey(suggestionID, table)
	if correction {
		key = correctionKey(suggestionID, table)
	}
	return p.insertPlan(suggestionID, table, key, fields), nil
}

func (p *ChangePlanner) insertPlan(suggestionID, table, key string, fields map[string]*string) *models.ChangePlan {
	spec, _ := p.targets.Spec(table)
	changes := make(models.FieldChangeList, 0, len(fields))
	for _, col := range spec.Columns {
		if value, ok := fields[col]; ok && value != nil {
			changes = append(changes, models.FieldChange{Field: col, Old: nil, New: value})
		}
	}
	return &models.ChangePlan{
		SuggestionID: suggestionID,
		Actionable:   true,
		Actions: []models.PlannedAction{{
			Action:  models.ChangeActionInsert,
			Table:   table,
			Key:     key,
			Changes: changes,
		}},
	}
}

// applyEdits overrides planned values on the suggestion's primary action.
func (p *ChangePlanner) applyEdits(plan *models.ChangePlan, edits map[string]*string) error {
	if len(plan.Actions) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "edits supplied but the plan has no actions")
	}
	primary := &plan.Actions[0]
	spec, ok := p.targets.Spec(primary.Table)
	if !ok {
		return appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("table %q is not registered", primary.Table))
	}
	for field, value := range edits {
		if !columnAllowed(spec, field) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("field %q is not editable on %s", field, primary.Table))
		}
		replaced := false
		for i := range primary.Changes {
			if primary.Changes[i].Field == field {
				primary.Changes[i].New = value
				replaced = true
				break
			}
		}
		if !replaced {
			primary.Changes = append(primary.Changes, models.FieldChange{Field: field, Old: nil, New: value})
		}
	}
	return nil
}

// appendExtraActions validates and plans reviewer-supplied bundle
// additions, capturing before-images for updates and deletes.
func (p *ChangePlanner) appendExtraActions(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, plan *models.ChangePlan, actions []dto.ExtraAction) error {
	for i, action := range actions {
		spec, ok := p.targets.Spec(action.Table)
		if !ok {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("table %q is not registered for suggestion changes", action.Table))
		}
		for field := range action.Fields {
			if !columnAllowed(spec, field) {
				return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("field %q is not writable on %s", field, action.Table))
			}
		}

		switch action.Action {
		case models.ChangeActionInsert:
			if len(action.Fields) == 0 {
				return appErrors.Clone(appErrors.ErrValidation, "insert action requires fields")
			}
			key := action.Key
			if key == "" {
				key = extraKey(suggestion.ID, action.Table, i)
			}
			changes := make(models.FieldChangeList, 0, len(action.Fields))
			for _, col := range spec.Columns {
				if value, ok := action.Fields[col]; ok {
					changes = append(changes, models.FieldChange{Field: col, Old: nil, New: value})
				}
			}
			plan.Actions = append(plan.Actions, models.PlannedAction{
				Action: models.ChangeActionInsert, Table: action.Table, Key: key, Changes: changes,
			})

		case models.ChangeActionUpdate:
			if action.Key == "" {
				return appErrors.Clone(appErrors.ErrValidation, "update action requires a key")
			}
			if len(action.Fields) == 0 {
				return appErrors.Clone(appErrors.ErrValidation, "update action requires fields")
			}
			current, err := p.targets.FetchRow(ctx, exec, action.Table, action.Key)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrTargetNotFound,
						fmt.Sprintf("%s/%s no longer exists", action.Table, action.Key))
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current row state")
			}
			changes := make(models.FieldChangeList, 0, len(action.Fields))
			for _, col := range spec.Columns {
				value, ok := action.Fields[col]
				if !ok {
					continue
				}
				if textEqual(current[col], value) {
					continue
				}
				changes = append(changes, models.FieldChange{Field: col, Old: current[col], New: value})
			}
			if len(changes) == 0 {
				continue
			}
			plan.Actions = append(plan.Actions, models.PlannedAction{
				Action: models.ChangeActionUpdate, Table: action.Table, Key: action.Key, Changes: changes,
			})

		case models.ChangeActionDelete:
			if action.Key == "" {
				return appErrors.Clone(appErrors.ErrValidation, "delete action requires a key")
			}
			current, err := p.targets.FetchRow(ctx, exec, action.Table, action.Key)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return appErrors.Clone(appErrors.ErrTargetNotFound,
						fmt.Sprintf("%s/%s no longer exists", action.Table, action.Key))
				}
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load current row state")
			}
			changes := make(models.FieldChangeList, 0, len(spec.Columns))
			for _, col := range spec.Columns {
				changes = append(changes, models.FieldChange{Field: col, Old: current[col], New: nil})
			}
			plan.Actions = append(plan.Actions, models.PlannedAction{
				Action: models.ChangeActionDelete, Table: action.Table, Key: action.Key, Changes: changes,
			})

		default:
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported action %q", action.Action))
		}
	}
	return nil
}

// Insert keys are content-addressed so planning stays deterministic:
// previewing twice yields the same keys the eventual approval commits.
func insertKey(suggestionID, table string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(suggestionID+":"+table)).String()
}

func correctionKey(suggestionID, table string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(suggestionID+":correct:"+table)).String()
}

func extraKey(suggestionID, table string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s:%s:extra:%d", suggestionID, table, index))).String()
}

func columnAllowed(spec repository.TableSpec, column string) bool {
	for _, col := range spec.Columns {
		if col == column {
			return true
		}
	}
	return false
}

func textEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// textValue renders a field value for planning; empty strings become NULL
// so optional payload fields do not write empty text.
func textValue(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
