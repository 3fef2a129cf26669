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

type patternService interface {
	List(ctx context.Context, query dto.PatternQuery) ([]models.LearnedPattern, models.Pagination, error)
	Match(ctx context.Context, query dto.PatternMatchQuery) (*models.PatternMatch, bool, error)
}

// PatternHandler exposes the learned pattern endpoints.
type PatternHandler struct {
	service patternService
}

// NewPatternHandler constructs the handler.
func NewPatternHandler(service patternService) *PatternHandler {
	return &PatternHandler{service: service}
}

// List godoc
// @Summary List learned patterns
// @Tags Patterns
// @Produce json
// @Param type query string false "Pattern type"
// @Param targetReference query string false "Target reference"
// @Param minBoost query number false "Minimum confidence boost"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /patterns [get]
func (h *PatternHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "pattern service not configured"))
		return
	}
	query := dto.PatternQuery{
		TargetReference: strings.TrimSpace(c.Query("targetReference")),
	}
	if rawType := c.Query("type"); rawType != "" {
		query.Type = models.PatternType(strings.ToUpper(rawType))
	}
	if raw := c.Query("minBoost"); raw != "" {
		if min, err := strconv.ParseFloat(raw, 64); err == nil {
			query.MinBoost = &min
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		query.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("pageSize", "20")); err == nil {
		query.PageSize = size
	}

	patterns, pagination, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, patterns, &pagination)
}

// Match godoc
// @Summary Match patterns for a sender or keywords
// @Description Generator lookup returning matching patterns and the combined confidence boost
// @Tags Patterns
// @Produce json
// @Param sender query string false "Sender email address"
// @Param keyword query []string false "Candidate keyword (repeatable)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /patterns/match [get]
func (h *PatternHandler) Match(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "pattern service not configured"))
		return
	}
	query := dto.PatternMatchQuery{
		Sender:   c.Query("sender"),
		Keywords: c.QueryArray("keyword"),
	}

	start := time.Now()
	match, cacheHit, err := h.service.Match(c.Request.Context(), query)
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
	response.JSON(c, http.StatusOK, match, nil, meta)
}
