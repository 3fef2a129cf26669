package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/lindenworks/studio-ops-api/internal/dto"
	"github.com/lindenworks/studio-ops-api/internal/models"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
)

type suggestionStore interface {
	Create(ctx context.Context, suggestion *models.Suggestion) error
	GetByID(ctx context.Context, id string) (*models.Suggestion, error)
	List(ctx context.Context, filter models.SuggestionFilter) ([]models.Suggestion, int, error)
	Groups(ctx context.Context) ([]models.SuggestionGroup, error)
}

type auditTrailReader interface {
	ListBySuggestion(ctx context.Context, suggestionID string) ([]models.AuditEntry, error)
}

type feedbackStore interface {
	GetBySuggestion(ctx context.Context, suggestionID string) (*models.UserFeedback, error)
	Upsert(ctx context.Context, feedback *models.UserFeedback) (*models.UserFeedback, error)
	ListTags(ctx context.Context) ([]models.TagCount, error)
}

type sourceReader interface {
	GetEmail(ctx context.Context, id string) (*models.Email, error)
	GetTranscript(ctx context.Context, id string) (*models.Transcript, error)
}

type bodyStorage interface {
	Read(filename string) ([]byte, error)
}

type previewPlanner interface {
	Plan(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, opts PlanOptions) (*models.ChangePlan, error)
}

// SuggestionServiceConfig tunes queue paging and group caching.
type SuggestionServiceConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	GroupCacheTTL   time.Duration
}

// SuggestionService owns the review queue: ingestion from the candidate
// generator, queue listing and grouping, previews, source resolution and
// reviewer feedback. Review decisions themselves live in ReviewService.
type SuggestionService struct {
	repo      suggestionStore
	trail     auditTrailReader
	feedback  feedbackStore
	sources   sourceReader
	storage   bodyStorage
	planner   previewPlanner
	exec      sqlx.ExtContext
	audit     auditLogger
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       SuggestionServiceConfig
}

// NewSuggestionService constructs the service. exec is the plain
// connection previews plan against; decisions re-plan inside their own
// transaction.
func NewSuggestionService(
	repo suggestionStore,
	trail auditTrailReader,
	feedback feedbackStore,
	sources sourceReader,
	storage bodyStorage,
	planner previewPlanner,
	exec sqlx.ExtContext,
	audit auditLogger,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg SuggestionServiceConfig,
) *SuggestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 20
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = 100
	}
	if cfg.GroupCacheTTL <= 0 {
		cfg.GroupCacheTTL = 30 * time.Second
	}
	return &SuggestionService{
		repo:      repo,
		trail:     trail,
		feedback:  feedback,
		sources:   sources,
		storage:   storage,
		planner:   planner,
		exec:      exec,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Ingest accepts one suggestion from the candidate generator. The payload
// is decoded and validated against the suggestion type up front, so the
// preview and apply engines can trust stored rows.
func (s *SuggestionService) Ingest(ctx context.Context, req dto.IngestSuggestionRequest, actorID string) (*models.Suggestion, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	payload, err := models.DecodeSuggestedData(req.Type, req.SuggestedData)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	source, err := models.ParseSourceReference(req.SourceReference)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := s.checkSourceImported(ctx, source); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}
	switch priority {
	case models.PriorityLow, models.PriorityNormal, models.PriorityHigh:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", priority))
	}

	suggestion := &models.Suggestion{
		Type:            req.Type,
		Status:          models.SuggestionStatusPending,
		Priority:        priority,
		Confidence:      req.Confidence,
		SuggestedData:   types.JSONText(req.SuggestedData),
		SourceReference: source.String(),
		TargetReference: models.DeriveTargetReference(payload),
	}
	if err := s.repo.Create(ctx, suggestion); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store suggestion")
	}

	if s.metrics != nil {
		s.metrics.RecordSuggestionIngested(string(suggestion.Type))
	}
	s.emitAudit(ctx, &models.AuditLog{
		UserID:     optionalString(actorID),
		Action:     models.AuditActionSuggestionIngest,
		Resource:   "suggestion",
		ResourceID: &suggestion.ID,
		NewValues:  []byte(fmt.Sprintf(`{"type":%q,"source":%q}`, suggestion.Type, suggestion.SourceReference)),
	})
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, groupCacheKey+"*")
	}
	return suggestion, nil
}

// List returns the review queue slice matching the query, ordered by
// priority, confidence and age.
func (s *SuggestionService) List(ctx context.Context, query dto.SuggestionQuery) ([]models.Suggestion, models.Pagination, error) {
	for _, status := range query.Status {
		switch status {
		case models.SuggestionStatusPending, models.SuggestionStatusApproved,
			models.SuggestionStatusRejected, models.SuggestionStatusCorrected:
		default:
			return nil, models.Pagination{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
		}
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = s.cfg.DefaultPageSize
	}
	if pageSize > s.cfg.MaxPageSize {
		pageSize = s.cfg.MaxPageSize
	}

	suggestions, total, err := s.repo.List(ctx, models.SuggestionFilter{
		Status:          query.Status,
		Type:            query.Type,
		Priority:        query.Priority,
		MinConfidence:   query.MinConfidence,
		TargetReference: query.TargetReference,
		SourceReference: query.SourceReference,
		Page:            page,
		PageSize:        pageSize,
	})
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list suggestions")
	}
	if suggestions == nil {
		suggestions = []models.Suggestion{}
	}
	return suggestions, models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns one suggestion with its audit trail and feedback.
func (s *SuggestionService) Get(ctx context.Context, id string) (*dto.SuggestionDetail, error) {
	suggestion, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "suggestion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load suggestion")
	}

	trail, err := s.trail.ListBySuggestion(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load audit trail")
	}
	if trail == nil {
		trail = []models.AuditEntry{}
	}

	detail := &dto.SuggestionDetail{Suggestion: suggestion, AuditTrail: trail}
	feedback, err := s.feedback.GetBySuggestion(ctx, id)
	if err == nil {
		detail.Feedback = feedback
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to load suggestion feedback", zap.String("suggestion_id", id), zap.Error(err))
	}
	return detail, nil
}

// Groups returns pending suggestions clustered by target, cached briefly
// for the review dashboard's polling. The bool reports a cache hit.
func (s *SuggestionService) Groups(ctx context.Context) ([]models.SuggestionGroup, bool, error) {
	if s.cache != nil && s.cache.Enabled() {
		var cached []models.SuggestionGroup
		if hit, _ := s.cache.Get(ctx, groupCacheKey, &cached); hit {
			return cached, true, nil
		}
	}

	groups, err := s.repo.Groups(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to group suggestions")
	}
	if groups == nil {
		groups = []models.SuggestionGroup{}
	}

	if s.cache != nil && s.cache.Enabled() {
		_ = s.cache.Set(ctx, groupCacheKey, groups, s.cfg.GroupCacheTTL)
	}
	return groups, false, nil
}

// Preview computes the change plan for a suggestion without applying it.
// Previews work on any status: previewing an already-applied suggestion
// simply reports why nothing further would happen.
func (s *SuggestionService) Preview(ctx context.Context, id string) (*models.ChangePlan, error) {
	suggestion, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "suggestion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load suggestion")
	}
	plan, err := s.planner.Plan(ctx, s.exec, suggestion, PlanOptions{})
	if err != nil {
		return nil, ensureTyped(err, "failed to compute change plan")
	}
	return plan, nil
}

// Source resolves a source reference into its metadata and body text so a
// reviewer can read the original correspondence next to the suggestion.
func (s *SuggestionService) Source(ctx context.Context, reference string) (*models.SourceContent, error) {
	ref, err := models.ParseSourceReference(reference)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	content := &models.SourceContent{Reference: ref.String(), Kind: ref.Kind}
	var bodyPath *string
	switch ref.Kind {
	case models.RefEmail:
		email, err := s.sources.GetEmail(ctx, ref.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", ref.String()))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load email")
		}
		content.Email = email
		bodyPath = email.BodyPath
	case models.RefTranscript:
		transcript, err := s.sources.GetTranscript(ctx, ref.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", ref.String()))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load transcript")
		}
		content.Transcript = transcript
		bodyPath = transcript.BodyPath
	}

	if bodyPath != nil {
		body, err := s.storage.Read(*bodyPath)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrSourceUnavailable.Code, appErrors.ErrSourceUnavailable.Status,
				fmt.Sprintf("body for %s is unavailable", ref.String()))
		}
		content.Body = string(body)
	}
	return content, nil
}

// SourceForSuggestion resolves the source behind a stored suggestion.
func (s *SuggestionService) SourceForSuggestion(ctx context.Context, id string) (*models.SourceContent, error) {
	suggestion, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "suggestion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load suggestion")
	}
	return s.Source(ctx, suggestion.SourceReference)
}

// Tags lists distinct feedback tags with usage counts.
func (s *SuggestionService) Tags(ctx context.Context) ([]models.TagCount, error) {
	tags, err := s.feedback.ListTags(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback tags")
	}
	if tags == nil {
		tags = []models.TagCount{}
	}
	return tags, nil
}

// SaveFeedback attaches reviewer context to a suggestion independent of a
// review decision.
func (s *SuggestionService) SaveFeedback(ctx context.Context, suggestionID string, req dto.FeedbackRequest, reviewerID string) (*models.UserFeedback, error) {
	if _, err := s.repo.GetByID(ctx, suggestionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "suggestion not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load suggestion")
	}
	if req.PriorityOverride != nil {
		switch *req.PriorityOverride {
		case models.PriorityLow, models.PriorityNormal, models.PriorityHigh:
		default:
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", *req.PriorityOverride))
		}
	}

	saved, err := s.feedback.Upsert(ctx, &models.UserFeedback{
		SuggestionID:     suggestionID,
		Notes:            req.Notes,
		Tags:             tagList(req.Tags),
		ContactRole:      req.ContactRole,
		PriorityOverride: req.PriorityOverride,
		CreatedBy:        reviewerID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save feedback")
	}
	return saved, nil
}

func (s *SuggestionService) checkSourceImported(ctx context.Context, source models.Reference) error {
	var err error
	switch source.Kind {
	case models.RefEmail:
		_, err = s.sources.GetEmail(ctx, source.ID)
	case models.RefTranscript:
		_, err = s.sources.GetTranscript(ctx, source.ID)
	default:
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported source kind %q", source.Kind))
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("source %s is not imported", source.String()))
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve source")
	}
	return nil
}

func (s *SuggestionService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil || log == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "suggestion-service"
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
