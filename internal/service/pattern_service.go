package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lindenworks/studio-ops-api/internal/dto"
	"github.com/lindenworks/studio-ops-api/internal/models"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
)

type patternStore interface {
	Upsert(ctx context.Context, up models.PatternUpsert) (*models.LearnedPattern, error)
	List(ctx context.Context, filter models.PatternFilter) ([]models.LearnedPattern, int, error)
	Match(ctx context.Context, sender, domain string, keywords []string) ([]models.LearnedPattern, error)
}

type senderResolver interface {
	GetEmail(ctx context.Context, id string) (*models.Email, error)
}

// PatternService maintains the learned pattern store. Learning is fed by
// review decisions and is strictly additive: rollback never unlearns a
// pattern, because the knowledge may already have influenced other
// suggestions.
type PatternService struct {
	repo         patternStore
	sources      senderResolver
	cache        *CacheService
	metrics      *MetricsService
	logger       *zap.Logger
	defaultBoost float64
	matchTTL     time.Duration
}

// NewPatternService constructs the service.
func NewPatternService(repo patternStore, sources senderResolver, cache *CacheService, metrics *MetricsService, logger *zap.Logger, defaultBoost float64, matchTTL time.Duration) *PatternService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultBoost <= 0 {
		defaultBoost = 0.1
	}
	if matchTTL <= 0 {
		matchTTL = 5 * time.Minute
	}
	return &PatternService{
		repo:         repo,
		sources:      sources,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		defaultBoost: defaultBoost,
		matchTTL:     matchTTL,
	}
}

// List returns patterns matching the filter with pagination metadata.
func (s *PatternService) List(ctx context.Context, query dto.PatternQuery) ([]models.LearnedPattern, models.Pagination, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	patterns, total, err := s.repo.List(ctx, models.PatternFilter{
		Type:            query.Type,
		TargetReference: strings.TrimSpace(query.TargetReference),
		MinBoost:        query.MinBoost,
		Page:            page,
		PageSize:        pageSize,
	})
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list patterns")
	}
	if patterns == nil {
		patterns = []models.LearnedPattern{}
	}
	return patterns, models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Match serves the candidate generator: given a sender and/or keywords it
// returns every matching pattern and the summed confidence boost, capped
// at 1.0. Results are cached briefly; the generator polls this endpoint
// for every email it scores. The bool reports a cache hit.
func (s *PatternService) Match(ctx context.Context, query dto.PatternMatchQuery) (*models.PatternMatch, bool, error) {
	sender := strings.ToLower(strings.TrimSpace(query.Sender))
	keywords := normaliseKeywords(query.Keywords)
	if sender == "" && len(keywords) == 0 {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "sender or keyword is required")
	}

	cacheKey := fmt.Sprintf("patterns:match:%s|%s", sender, strings.Join(keywords, ","))
	if s.cache != nil && s.cache.Enabled() {
		var cached models.PatternMatch
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			return &cached, true, nil
		}
	}

	patterns, err := s.repo.Match(ctx, sender, domainOf(sender), keywords)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to match patterns")
	}
	if patterns == nil {
		patterns = []models.LearnedPattern{}
	}

	boost := 0.0
	for _, pattern := range patterns {
		boost += pattern.ConfidenceBoost
	}
	if boost > 1.0 {
		boost = 1.0
	}
	match := &models.PatternMatch{Patterns: patterns, CombinedBoost: boost}

	if s.cache != nil && s.cache.Enabled() {
		_ = s.cache.Set(ctx, cacheKey, match, s.matchTTL)
	}
	return match, false, nil
}

// LearnFromApproval derives patterns from an approved suggestion per the
// reviewer's flags. Failures are logged and skipped; learning must never
// fail an already-committed approval.
func (s *PatternService) LearnFromApproval(ctx context.Context, suggestion *models.Suggestion, flags dto.PatternFlags) []models.LearnedPattern {
	if !flags.CreateSenderPattern && !flags.CreateDomainPattern && len(flags.Keywords) == 0 {
		return nil
	}
	if suggestion.TargetReference == nil {
		s.logger.Warn("pattern learning skipped, suggestion has no target",
			zap.String("suggestion_id", suggestion.ID))
		return nil
	}
	return s.learn(ctx, suggestion, *suggestion.TargetReference, flags, optionalString(flags.Notes), true)
}

// LearnFromCorrection records patterns pointing at the reviewer-chosen
// target. The correction path counts as a rejection of the original
// proposal, so the rejected counter is the one incremented.
func (s *PatternService) LearnFromCorrection(ctx context.Context, suggestion *models.Suggestion, target, notes string, keywords []string) []models.LearnedPattern {
	flags := dto.PatternFlags{CreateSenderPattern: true, Keywords: keywords}
	return s.learn(ctx, suggestion, target, flags, optionalString(notes), false)
}

func (s *PatternService) learn(ctx context.Context, suggestion *models.Suggestion, target string, flags dto.PatternFlags, notes *string, correct bool) []models.LearnedPattern {
	sender := s.resolveSender(ctx, suggestion)

	upserts := make([]models.PatternUpsert, 0, 2+len(flags.Keywords))
	if flags.CreateSenderPattern && sender != "" {
		upserts = append(upserts, models.PatternUpsert{
			Type: models.PatternTypeSender, Key: sender, TargetReference: target,
			ConfidenceBoost: s.defaultBoost, Correct: correct, Notes: notes,
		})
	}
	if flags.CreateDomainPattern {
		if domain := domainOf(sender); domain != "" {
			upserts = append(upserts, models.PatternUpsert{
				Type: models.PatternTypeDomain, Key: domain, TargetReference: target,
				ConfidenceBoost: s.defaultBoost, Correct: correct, Notes: notes,
			})
		}
	}
	for _, keyword := range normaliseKeywords(flags.Keywords) {
		upserts = append(upserts, models.PatternUpsert{
			Type: models.PatternTypeKeyword, Key: keyword, TargetReference: target,
			ConfidenceBoost: s.defaultBoost, Correct: correct, Notes: notes,
		})
	}

	learned := make([]models.LearnedPattern, 0, len(upserts))
	for _, up := range upserts {
		pattern, err := s.repo.Upsert(ctx, up)
		if err != nil {
			s.logger.Warn("failed to learn pattern",
				zap.String("suggestion_id", suggestion.ID),
				zap.String("pattern_type", string(up.Type)),
				zap.String("pattern_key", up.Key),
				zap.Error(err))
			continue
		}
		learned = append(learned, *pattern)
		if s.metrics != nil {
			s.metrics.RecordPatternLearned(string(up.Type))
		}
	}

	if len(learned) > 0 && s.cache != nil {
		_ = s.cache.Invalidate(ctx, "patterns:match:*")
	}
	return learned
}

// resolveSender looks up the sender address behind the suggestion's
// source. Transcripts have no sender; sender and domain patterns only
// make sense for email-backed suggestions.
func (s *PatternService) resolveSender(ctx context.Context, suggestion *models.Suggestion) string {
	source, err := models.ParseSourceReference(suggestion.SourceReference)
	if err != nil || source.Kind != models.RefEmail {
		return ""
	}
	email, err := s.sources.GetEmail(ctx, source.ID)
	if err != nil {
		s.logger.Warn("failed to resolve sender for pattern learning",
			zap.String("suggestion_id", suggestion.ID),
			zap.String("source_reference", suggestion.SourceReference),
			zap.Error(err))
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email.Sender))
}

func domainOf(sender string) string {
	at := strings.LastIndex(sender, "@")
	if at < 0 || at == len(sender)-1 {
		return ""
	}
	return sender[at+1:]
}

func normaliseKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]struct{}, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			continue
		}
		if _, ok := seen[keyword]; ok {
			continue
		}
		seen[keyword] = struct{}{}
		out = append(out, keyword)
	}
	return out
}
