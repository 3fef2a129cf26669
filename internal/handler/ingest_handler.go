package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lindenworks/studio-ops-api/internal/dto"
	"github.com/lindenworks/studio-ops-api/internal/models"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
	"github.com/lindenworks/studio-ops-api/pkg/response"
)

type ingestService interface {
	CreateJob(ctx context.Context, req dto.CreateIngestJobRequest, actorID string) (*dto.IngestJobResponse, error)
	Get(ctx context.Context, id string) (*models.IngestJob, error)
	List(ctx context.Context, limit int) ([]models.IngestJob, error)
}

// IngestHandler exposes the source import endpoints.
type IngestHandler struct {
	service ingestService
}

// NewIngestHandler constructs the handler.
func NewIngestHandler(service ingestService) *IngestHandler {
	return &IngestHandler{service: service}
}

// Create godoc
// @Summary Start a source import
// @Description Queues an import of a drop file into the sources store
// @Tags Ingest
// @Accept json
// @Produce json
// @Param payload body dto.CreateIngestJobRequest true "Import request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /ingest-jobs [post]
func (h *IngestHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "ingest service not configured"))
		return
	}
	var req dto.CreateIngestJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid import payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	job, err := h.service.CreateJob(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Get godoc
// @Summary Get import job status
// @Tags Ingest
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /ingest-jobs/{id} [get]
func (h *IngestHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "ingest service not configured"))
		return
	}
	job, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job, nil)
}

// List godoc
// @Summary List recent import jobs
// @Tags Ingest
// @Produce json
// @Param limit query int false "Max jobs to return"
// @Success 200 {object} response.Envelope
// @Router /ingest-jobs [get]
func (h *IngestHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "ingest service not configured"))
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	jobs, err := h.service.List(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, jobs, nil)
}
