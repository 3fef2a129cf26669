package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/lindenworks/studio-ops-api/internal/dto"
	"github.com/lindenworks/studio-ops-api/internal/models"
	"github.com/lindenworks/studio-ops-api/internal/repository"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
)

// groupCacheKey caches the group-by-target summary; every review decision
// invalidates it.
const groupCacheKey = "suggestions:groups"

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type suggestionReviewStore interface {
	LockForReview(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Suggestion, error)
	MarkReviewed(ctx context.Context, exec sqlx.ExtContext, outcome repository.ReviewOutcome) error
	ReopenFromReview(ctx context.Context, exec sqlx.ExtContext, id string, at time.Time) error
	PendingIDsByTarget(ctx context.Context, targetReference string, limit int) ([]string, error)
	PendingIDsAboveConfidence(ctx context.Context, minConfidence float64, limit int) ([]string, error)
}

type auditEntryStore interface {
	NextSeq(ctx context.Context, exec sqlx.ExtContext, suggestionID string) (int, error)
	InsertEntries(ctx context.Context, exec sqlx.ExtContext, entries []models.AuditEntry) error
	ListActive(ctx context.Context, exec sqlx.ExtContext, suggestionID string) ([]models.AuditEntry, error)
	MarkReversed(ctx context.Context, exec sqlx.ExtContext, ids []string, at time.Time) error
}

type targetWriter interface {
	Exists(ctx context.Context, exec sqlx.ExtContext, table, key string) (bool, error)
	InsertRow(ctx context.Context, exec sqlx.ExtContext, table, key string, fields map[string]*string) error
	UpdateRow(ctx context.Context, exec sqlx.ExtContext, table, key string, fields map[string]*string) error
	DeleteRow(ctx context.Context, exec sqlx.ExtContext, table, key string) error
}

type reviewPlanner interface {
	Plan(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, opts PlanOptions) (*models.ChangePlan, error)
	PlanCorrection(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, target models.Reference) (*models.ChangePlan, error)
}

type patternLearner interface {
	LearnFromApproval(ctx context.Context, suggestion *models.Suggestion, flags dto.PatternFlags) []models.LearnedPattern
	LearnFromCorrection(ctx context.Context, suggestion *models.Suggestion, target, notes string, keywords []string) []models.LearnedPattern
}

type feedbackSaver interface {
	Upsert(ctx context.Context, feedback *models.UserFeedback) (*models.UserFeedback, error)
}

// ReviewService executes review decisions: approve, reject, correct and
// rollback, plus their bulk variants. Every state-changing operation runs
// in one transaction holding a row lock on the suggestion, so two
// reviewers can never both win the same decision.
type ReviewService struct {
	tx          txProvider
	suggestions suggestionReviewStore
	entries     auditEntryStore
	targets     targetWriter
	planner     reviewPlanner
	patterns    patternLearner
	feedback    feedbackSaver
	audit       auditLogger
	cache       *CacheService
	metrics     *MetricsService
	logger      *zap.Logger
	maxBulk     int
}

// NewReviewService constructs the service.
func NewReviewService(
	tx txProvider,
	suggestions suggestionReviewStore,
	entries auditEntryStore,
	targets targetWriter,
	planner reviewPlanner,
	patterns patternLearner,
	feedback feedbackSaver,
	audit auditLogger,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	maxBulk int,
) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBulk <= 0 {
		maxBulk = 200
	}
	return &ReviewService{
		tx:          tx,
		suggestions: suggestions,
		entries:     entries,
		targets:     targets,
		planner:     planner,
		patterns:    patterns,
		feedback:    feedback,
		audit:       audit,
		cache:       cache,
		metrics:     metrics,
		logger:      logger,
		maxBulk:     maxBulk,
	}
}

// Approve applies a pending suggestion: the plan is recomputed against
// current target state inside the transaction, every action is applied
// with a reversible audit entry, and the status flips to APPROVED. Any
// failure rolls the whole bundle back and the suggestion stays pending.
func (s *ReviewService) Approve(ctx context.Context, id string, req dto.ApproveSuggestionRequest, reviewerID string) (*dto.ReviewResult, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin review transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	suggestion, err := s.lockPending(ctx, tx, id, "approved")
	if err != nil {
		return nil, err
	}

	var plan *models.ChangePlan
	plan, err = s.planner.Plan(ctx, tx, suggestion, PlanOptions{Edits: req.Edits, Actions: req.Actions})
	if err != nil {
		err = ensureTyped(err, "failed to plan suggestion changes")
		return nil, err
	}
	if !plan.Actionable {
		err = appErrors.Clone(appErrors.ErrNotActionable, plan.Reason)
		return nil, err
	}

	var entries []models.AuditEntry
	entries, err = s.applyPlan(ctx, tx, suggestion.ID, reviewerID, plan.Actions)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	outcome := repository.ReviewOutcome{
		ID:              id,
		Status:          models.SuggestionStatusApproved,
		ReviewedBy:      reviewerID,
		ReviewedAt:      now,
		ReviewNotes:     optionalString(req.Notes),
		TargetReference: approvedTarget(suggestion, plan),
	}
	if err = s.markReviewed(ctx, tx, outcome); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit approval")
		return nil, err
	}

	applyOutcome(suggestion, outcome)
	result := &dto.ReviewResult{Suggestion: suggestion, AppliedChanges: entries}

	// Everything past the commit is strictly additive: pattern learning
	// and feedback must never undo an already-committed approval.
	if s.patterns != nil {
		result.PatternsCreated = s.patterns.LearnFromApproval(ctx, suggestion, req.Patterns)
	}
	if req.Feedback != nil {
		s.saveFeedback(ctx, id, reviewerID, *req.Feedback)
	}
	s.afterReview(ctx, reviewerID, suggestion, "approve")
	return result, nil
}

// Reject records a rejection. Nothing was applied, so there is nothing to
// audit or roll back.
func (s *ReviewService) Reject(ctx context.Context, id, reason, reviewerID string) (*models.Suggestion, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin review transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	suggestion, err := s.lockPending(ctx, tx, id, "rejected")
	if err != nil {
		return nil, err
	}

	outcome := repository.ReviewOutcome{
		ID:              id,
		Status:          models.SuggestionStatusRejected,
		ReviewedBy:      reviewerID,
		ReviewedAt:      time.Now().UTC(),
		RejectionReason: &reason,
	}
	if err = s.markReviewed(ctx, tx, outcome); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit rejection")
		return nil, err
	}

	applyOutcome(suggestion, outcome)
	s.afterReview(ctx, reviewerID, suggestion, "reject")
	return suggestion, nil
}

// Correct rejects the original proposal and applies the reviewer-chosen
// target in the same transaction. The audit entries point at the
// corrected target, so rollback undoes the correction.
func (s *ReviewService) Correct(ctx context.Context, id string, req dto.CorrectSuggestionRequest, reviewerID string) (*dto.ReviewResult, error) {
	target, parseErr := models.ParseTargetReference(req.CorrectTarget)
	if parseErr != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, parseErr.Error())
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "correction reason is required")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin review transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	suggestion, err := s.lockPending(ctx, tx, id, "corrected")
	if err != nil {
		return nil, err
	}

	table, ok := repository.TableForTarget(target.Kind)
	if !ok {
		err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported target kind %q", target.Kind))
		return nil, err
	}
	var exists bool
	exists, err = s.targets.Exists(ctx, tx, table, target.ID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve corrected target")
		return nil, err
	}
	if !exists {
		err = appErrors.Clone(appErrors.ErrTargetNotFound, fmt.Sprintf("corrected target %s not found", target.String()))
		return nil, err
	}

	var plan *models.ChangePlan
	plan, err = s.planner.PlanCorrection(ctx, tx, suggestion, target)
	if err != nil {
		err = ensureTyped(err, "failed to plan correction")
		return nil, err
	}
	if !plan.Actionable {
		err = appErrors.Clone(appErrors.ErrNotActionable, plan.Reason)
		return nil, err
	}

	var entries []models.AuditEntry
	entries, err = s.applyPlan(ctx, tx, suggestion.ID, reviewerID, plan.Actions)
	if err != nil {
		return nil, err
	}

	corrected := target.String()
	outcome := repository.ReviewOutcome{
		ID:              id,
		Status:          models.SuggestionStatusCorrected,
		ReviewedBy:      reviewerID,
		ReviewedAt:      time.Now().UTC(),
		RejectionReason: &reason,
		TargetReference: &corrected,
	}
	if err = s.markReviewed(ctx, tx, outcome); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit correction")
		return nil, err
	}

	applyOutcome(suggestion, outcome)
	result := &dto.ReviewResult{Suggestion: suggestion, AppliedChanges: entries}
	if req.CreatePattern && s.patterns != nil {
		result.PatternsCreated = s.patterns.LearnFromCorrection(ctx, suggestion, corrected, req.PatternNotes, req.Keywords)
	}
	s.afterReview(ctx, reviewerID, suggestion, "correct")
	return result, nil
}

// Rollback reverses an applied suggestion: audit entries are replayed
// newest-first with old and new swapped, marked reversed, and the
// suggestion returns to PENDING. Learned patterns are deliberately left
// alone; knowledge that may already have influenced other suggestions is
// not unlearned.
func (s *ReviewService) Rollback(ctx context.Context, id, reviewerID string) (*dto.RollbackResult, error) {
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin rollback transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var suggestion *models.Suggestion
	suggestion, err = s.suggestions.LockForReview(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrNotFound, "suggestion not found")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load suggestion")
		return nil, err
	}
	if suggestion.Status != models.SuggestionStatusApproved && suggestion.Status != models.SuggestionStatusCorrected {
		err = appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("suggestion is %s, only applied suggestions can be rolled back", suggestion.Status))
		return nil, err
	}

	var entries []models.AuditEntry
	entries, err = s.entries.ListActive(ctx, tx, id)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit entries")
		return nil, err
	}
	if len(entries) == 0 {
		err = appErrors.Clone(appErrors.ErrInvalidState, "no reversible changes recorded for this suggestion")
		return nil, err
	}

	entryIDs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if err = s.reverseEntry(ctx, tx, entry); err != nil {
			return nil, err
		}
		entryIDs = append(entryIDs, entry.ID)
	}

	now := time.Now().UTC()
	if err = s.entries.MarkReversed(ctx, tx, entryIDs, now); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark audit entries reversed")
		return nil, err
	}
	if err = s.suggestions.ReopenFromReview(ctx, tx, id, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = appErrors.Clone(appErrors.ErrInvalidState, "suggestion state changed during rollback")
			return nil, err
		}
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reopen suggestion")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit rollback")
		return nil, err
	}

	suggestion.Status = models.SuggestionStatusPending
	suggestion.ReviewedBy = nil
	suggestion.ReviewedAt = nil
	suggestion.UpdatedAt = now
	s.afterReview(ctx, reviewerID, suggestion, "rollback")
	return &dto.RollbackResult{Suggestion: suggestion, ReversedEntries: len(entries)}, nil
}

// BulkApprove processes each id independently; one failing id never
// aborts the rest. With MinConfidence set, the pending set at or above
// the floor is selected first, and review races show up as skips.
func (s *ReviewService) BulkApprove(ctx context.Context, req dto.BulkApproveRequest, reviewerID string) (*dto.BulkReviewResult, error) {
	ids := req.IDs
	if req.MinConfidence != nil {
		if len(ids) > 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "provide ids or minConfidence, not both")
		}
		if *req.MinConfidence < 0 || *req.MinConfidence > 1 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "minConfidence must be within [0, 1]")
		}
		selected, err := s.suggestions.PendingIDsAboveConfidence(ctx, *req.MinConfidence, s.maxBulk)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to select suggestions by confidence")
		}
		ids = selected
	} else if len(ids) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ids or minConfidence is required")
	}
	if len(ids) > s.maxBulk {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("bulk size %d exceeds the limit of %d", len(ids), s.maxBulk))
	}

	return s.processBulk(ids, func(id string) error {
		_, err := s.Approve(ctx, id, dto.ApproveSuggestionRequest{}, reviewerID)
		return err
	}), nil
}

// BulkReject rejects each id independently with a shared reason.
func (s *ReviewService) BulkReject(ctx context.Context, req dto.BulkRejectRequest, reviewerID string) (*dto.BulkReviewResult, error) {
	if len(req.IDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ids is required")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}
	if len(req.IDs) > s.maxBulk {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("bulk size %d exceeds the limit of %d", len(req.IDs), s.maxBulk))
	}

	return s.processBulk(req.IDs, func(id string) error {
		_, err := s.Reject(ctx, id, req.Reason, reviewerID)
		return err
	}), nil
}

// ApproveGroup bulk-approves every pending suggestion sharing a target
// reference ("ungrouped" addresses the no-target bucket).
func (s *ReviewService) ApproveGroup(ctx context.Context, targetReference, reviewerID string) (*dto.BulkReviewResult, error) {
	targetReference = strings.TrimSpace(targetReference)
	if targetReference == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "targetReference is required")
	}
	ids, err := s.suggestions.PendingIDsByTarget(ctx, targetReference, s.maxBulk)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to select group suggestions")
	}
	return s.processBulk(ids, func(id string) error {
		_, approveErr := s.Approve(ctx, id, dto.ApproveSuggestionRequest{}, reviewerID)
		return approveErr
	}), nil
}

// lockPending locks the suggestion row and checks it is still reviewable.
func (s *ReviewService) lockPending(ctx context.Context, tx *sqlx.Tx, id, verb string) (*models.Suggestion, error) {
	suggestion, err := s.suggestions.LockForReview(ctx, tx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "suggestion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load suggestion")
	}
	if suggestion.Status != models.SuggestionStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState,
			fmt.Sprintf("suggestion is %s, only pending suggestions can be %s", suggestion.Status, verb))
	}
	return suggestion, nil
}

// applyPlan executes every planned action and builds the audit entries.
// Entries are numbered from the suggestion's next sequence so rollback
// can replay them newest-first even across repeated apply cycles.
func (s *ReviewService) applyPlan(ctx context.Context, tx *sqlx.Tx, suggestionID, reviewerID string, actions []models.PlannedAction) ([]models.AuditEntry, error) {
	seq, err := s.entries.NextSeq(ctx, tx, suggestionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate audit sequence")
	}

	now := time.Now().UTC()
	entries := make([]models.AuditEntry, 0, len(actions))
	for i, action := range actions {
		switch action.Action {
		case models.ChangeActionInsert:
			err = s.targets.InsertRow(ctx, tx, action.Table, action.Key, newValues(action.Changes))
		case models.ChangeActionUpdate:
			err = s.targets.UpdateRow(ctx, tx, action.Table, action.Key, newValues(action.Changes))
		case models.ChangeActionDelete:
			err = s.targets.DeleteRow(ctx, tx, action.Table, action.Key)
		default:
			err = fmt.Errorf("unsupported action %q", action.Action)
		}
		if err != nil {
			return nil, applyError(err, action)
		}
		entries = append(entries, models.AuditEntry{
			SuggestionID: suggestionID,
			Seq:          seq + i,
			Action:       action.Action,
			TargetTable:  action.Table,
			TargetKey:    action.Key,
			FieldChanges: action.Changes,
			PerformedBy:  reviewerID,
			CreatedAt:    now,
		})
	}

	if err = s.entries.InsertEntries(ctx, tx, entries); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist audit entries")
	}
	return entries, nil
}

// reverseEntry undoes one committed action: updates restore old values,
// inserts are deleted, deletes are re-inserted from the snapshot.
func (s *ReviewService) reverseEntry(ctx context.Context, tx *sqlx.Tx, entry models.AuditEntry) error {
	var err error
	switch entry.Action {
	case models.ChangeActionInsert:
		err = s.targets.DeleteRow(ctx, tx, entry.TargetTable, entry.TargetKey)
	case models.ChangeActionUpdate:
		err = s.targets.UpdateRow(ctx, tx, entry.TargetTable, entry.TargetKey, oldValues(entry.FieldChanges))
	case models.ChangeActionDelete:
		err = s.targets.InsertRow(ctx, tx, entry.TargetTable, entry.TargetKey, oldValues(entry.FieldChanges))
	default:
		err = fmt.Errorf("unsupported action %q", entry.Action)
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrApplyFailed.Code, appErrors.ErrApplyFailed.Status,
			fmt.Sprintf("failed to reverse %s on %s/%s", entry.Action, entry.TargetTable, entry.TargetKey))
	}
	return nil
}

func (s *ReviewService) markReviewed(ctx context.Context, tx *sqlx.Tx, outcome repository.ReviewOutcome) error {
	if err := s.suggestions.MarkReviewed(ctx, tx, outcome); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrInvalidState, "suggestion was reviewed concurrently")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record review decision")
	}
	return nil
}

func (s *ReviewService) processBulk(ids []string, op func(id string) error) *dto.BulkReviewResult {
	result := &dto.BulkReviewResult{
		Succeeded: []string{},
		Skipped:   []dto.BulkSkip{},
		Failed:    []dto.BulkFailure{},
	}
	for _, id := range ids {
		result.Processed++
		err := op(id)
		if err == nil {
			result.Succeeded = append(result.Succeeded, id)
			continue
		}
		var typed *appErrors.Error
		if errors.As(err, &typed) && typed.Code == appErrors.ErrInvalidState.Code {
			result.Skipped = append(result.Skipped, dto.BulkSkip{ID: id, Reason: typed.Message})
			continue
		}
		reason := err.Error()
		if typed != nil {
			reason = typed.Message
		}
		result.Failed = append(result.Failed, dto.BulkFailure{ID: id, Reason: reason})
	}
	return result
}

func (s *ReviewService) saveFeedback(ctx context.Context, suggestionID, reviewerID string, payload dto.FeedbackPayload) {
	if s.feedback == nil {
		return
	}
	_, err := s.feedback.Upsert(ctx, &models.UserFeedback{
		SuggestionID:     suggestionID,
		Notes:            payload.Notes,
		Tags:             tagList(payload.Tags),
		ContactRole:      payload.ContactRole,
		PriorityOverride: payload.PriorityOverride,
		CreatedBy:        reviewerID,
	})
	if err != nil {
		s.logger.Warn("failed to persist review feedback",
			zap.String("suggestion_id", suggestionID), zap.Error(err))
	}
}

func (s *ReviewService) afterReview(ctx context.Context, reviewerID string, suggestion *models.Suggestion, decision string) {
	if s.metrics != nil {
		if decision == "rollback" {
			s.metrics.RecordRollback()
		} else {
			s.metrics.RecordReviewDecision(decision)
		}
	}
	action := models.AuditActionSuggestionReview
	if decision == "rollback" {
		action = models.AuditActionSuggestionRollback
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &reviewerID,
		Action:     action,
		Resource:   "suggestion",
		ResourceID: &suggestion.ID,
		NewValues:  []byte(fmt.Sprintf(`{"decision":%q,"status":%q}`, decision, suggestion.Status)),
	})
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, groupCacheKey+"*")
	}
}

func (s *ReviewService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "review-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// applyOutcome mirrors the committed review columns onto the in-memory
// suggestion so callers see the post-decision state.
func applyOutcome(suggestion *models.Suggestion, outcome repository.ReviewOutcome) {
	suggestion.Status = outcome.Status
	suggestion.ReviewedBy = &outcome.ReviewedBy
	reviewedAt := outcome.ReviewedAt
	suggestion.ReviewedAt = &reviewedAt
	suggestion.UpdatedAt = outcome.ReviewedAt
	if outcome.ReviewNotes != nil {
		suggestion.ReviewNotes = outcome.ReviewNotes
	}
	if outcome.RejectionReason != nil {
		suggestion.RejectionReason = outcome.RejectionReason
	}
	if outcome.TargetReference != nil {
		suggestion.TargetReference = outcome.TargetReference
	}
}

// approvedTarget back-fills target_reference for suggestions whose
// approval created the target itself (new contacts).
func approvedTarget(suggestion *models.Suggestion, plan *models.ChangePlan) *string {
	if suggestion.TargetReference != nil {
		return nil
	}
	for _, action := range plan.Actions {
		if action.Action != models.ChangeActionInsert {
			continue
		}
		if kind, ok := targetKindForTable(action.Table); ok {
			ref := models.Reference{Kind: kind, ID: action.Key}.String()
			return &ref
		}
	}
	return nil
}

func targetKindForTable(table string) (models.RefKind, bool) {
	switch table {
	case "contacts":
		return models.RefContact, true
	case "projects":
		return models.RefProject, true
	case "proposals":
		return models.RefProposal, true
	default:
		return "", false
	}
}

// applyError maps a storage failure on one action to the typed taxonomy,
// naming the failing action so callers know exactly what was rejected.
func applyError(err error, action models.PlannedAction) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return appErrors.Wrap(err, appErrors.ErrApplyFailed.Code, appErrors.ErrApplyFailed.Status,
			fmt.Sprintf("%s on %s/%s rejected: %s", action.Action, action.Table, action.Key, pqErr.Message))
	}
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrApplyFailed.Code, appErrors.ErrApplyFailed.Status,
			fmt.Sprintf("%s on %s/%s failed: row no longer exists", action.Action, action.Table, action.Key))
	}
	return appErrors.Wrap(err, appErrors.ErrApplyFailed.Code, appErrors.ErrApplyFailed.Status,
		fmt.Sprintf("failed to apply %s on %s/%s", action.Action, action.Table, action.Key))
}

// tagList keeps the tags column non-null; empty input stores an empty array.
func tagList(tags []string) pq.StringArray {
	if len(tags) == 0 {
		return pq.StringArray{}
	}
	return pq.StringArray(tags)
}

func newValues(changes models.FieldChangeList) map[string]*string {
	fields := make(map[string]*string, len(changes))
	for _, change := range changes {
		fields[change.Field] = change.New
	}
	return fields
}

func oldValues(changes models.FieldChangeList) map[string]*string {
	fields := make(map[string]*string, len(changes))
	for _, change := range changes {
		fields[change.Field] = change.Old
	}
	return fields
}

// ensureTyped passes typed errors through and wraps anything else.
func ensureTyped(err error, message string) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return err
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
