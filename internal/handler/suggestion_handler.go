package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lindenworks/studio-ops-api/internal/dto"
	"github.com/lindenworks/studio-ops-api/internal/middleware"
	"github.com/lindenworks/studio-ops-api/internal/models"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
	"github.com/lindenworks/studio-ops-api/pkg/response"
)

type suggestionService interface {
	Ingest(ctx context.Context, req dto.IngestSuggestionRequest, actorID string) (*models.Suggestion, error)
	List(ctx context.Context, query dto.SuggestionQuery) ([]models.Suggestion, models.Pagination, error)
	Get(ctx context.Context, id string) (*dto.SuggestionDetail, error)
	Groups(ctx context.Context) ([]models.SuggestionGroup, bool, error)
	Preview(ctx context.Context, id string) (*models.ChangePlan, error)
	SourceForSuggestion(ctx context.Context, id string) (*models.SourceContent, error)
	SaveFeedback(ctx context.Context, suggestionID string, req dto.FeedbackRequest, reviewerID string) (*models.UserFeedback, error)
	Tags(ctx context.Context) ([]models.TagCount, error)
}

// SuggestionHandler exposes the review queue endpoints.
type SuggestionHandler struct {
	service suggestionService
}

// NewSuggestionHandler constructs the handler.
func NewSuggestionHandler(service suggestionService) *SuggestionHandler {
	return &SuggestionHandler{service: service}
}

// Ingest godoc
// @Summary Submit a suggestion
// @Description Accepts one entity-link candidate from the generator
// @Tags Suggestions
// @Accept json
// @Produce json
// @Param payload body dto.IngestSuggestionRequest true "Suggestion payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /suggestions [post]
func (h *SuggestionHandler) Ingest(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "suggestion service not configured"))
		return
	}
	var req dto.IngestSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid suggestion payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	suggestion, err := h.service.Ingest(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, suggestion)
}

// List godoc
// @Summary List suggestions
// @Description Review queue ordered by priority, confidence and age
// @Tags Suggestions
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param type query string false "Suggestion type"
// @Param priority query string false "Priority"
// @Param minConfidence query number false "Minimum confidence"
// @Param targetReference query string false "Target reference"
// @Param sourceReference query string false "Source reference"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /suggestions [get]
func (h *SuggestionHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "suggestion service not configured"))
		return
	}
	query := dto.SuggestionQuery{
		TargetReference: strings.TrimSpace(c.Query("targetReference")),
		SourceReference: strings.TrimSpace(c.Query("sourceReference")),
	}
	if rawStatus := c.Query("status"); rawStatus != "" {
		parts := strings.Split(rawStatus, ",")
		statuses := make([]models.SuggestionStatus, 0, len(parts))
		for _, part := range parts {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part == "" {
				continue
			}
			statuses = append(statuses, models.SuggestionStatus(part))
		}
		query.Status = statuses
	}
	if rawType := c.Query("type"); rawType != "" {
		query.Type = models.SuggestionType(strings.ToUpper(rawType))
	}
	if rawPriority := c.Query("priority"); rawPriority != "" {
		query.Priority = models.SuggestionPriority(strings.ToUpper(rawPriority))
	}
	if raw := c.Query("minConfidence"); raw != "" {
		if min, err := strconv.ParseFloat(raw, 64); err == nil {
			query.MinConfidence = &min
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("pageSize", "20")); err == nil {
		query.PageSize = size
	}

	suggestions, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestions, &pagination)
}

// Get godoc
// @Summary Get suggestion detail
// @Description One suggestion with its audit trail and feedback
// @Tags Suggestions
// @Produce json
// @Param id path string true "Suggestion ID"
// @Success 200 {object} response.Envelope
// @Router /suggestions/{id} [get]
func (h *SuggestionHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "suggestion service not configured"))
		return
	}
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Groups godoc
// @Summary Group pending suggestions by target
// @Tags Suggestions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /suggestions/groups [get]
func (h *SuggestionHandler) Groups(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "suggestion service not configured"))
		return
	}
	start := time.Now()
	groups, cacheHit, err := h.service.Groups(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["processing_time_ms"] = time.Since(start).Milliseconds()
	response.JSON(c, http.StatusOK, groups, nil, meta)
}

// Preview godoc
// @Summary Preview a suggestion
// @Description Computes the change plan without applying it
// @Tags Suggestions
// @Produce json
// @Param id path string true "Suggestion ID"
// @Success 200 {object} response.Envelope
// @Router /suggestions/{id}/preview [get]
func (h *SuggestionHandler) Preview(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "suggestion service not configured"))
		return
	}
	plan, err := h.service.Preview(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Source godoc
// @Summary Get suggestion source
// @Description Original email or transcript behind the suggestion
// @Tags Suggestions
// @Produce json
// @Param id path string true "Suggestion ID"
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /suggestions/{id}/source [get]
func (h *SuggestionHandler) Source(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "suggestion service not configured"))
		return
	}
	content, err := h.service.SourceForSuggestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}

// Feedback godoc
// @Summary Save reviewer feedback
// @Description Attach notes, tags and overrides outside a review decision
// @Tags Suggestions
// @Accept json
// @Produce json
// @Param id path string true "Suggestion ID"
// @Param payload body dto.FeedbackRequest true "Feedback payload"
// @Success 200 {object} response.Envelope
// @Router /suggestions/{id}/feedback [post]
func (h *SuggestionHandler) Feedback(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "suggestion service not configured"))
		return
	}
	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid feedback payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	feedback, err := h.service.SaveFeedback(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feedback, nil)
}

// Tags godoc
// @Summary List feedback tags
// @Description Distinct tags with usage counts
// @Tags Suggestions
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /feedback/tags [get]
func (h *SuggestionHandler) Tags(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "suggestion service not configured"))
		return
	}
	tags, err := h.service.Tags(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tags, nil)
}
