package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lindenworks/studio-ops-api/internal/dto"
	"github.com/lindenworks/studio-ops-api/internal/models"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
	"github.com/lindenworks/studio-ops-api/pkg/response"
)

type reviewService interface {
	Approve(ctx context.Context, id string, req dto.ApproveSuggestionRequest, reviewerID string) (*dto.ReviewResult, error)
	Reject(ctx context.Context, id, reason, reviewerID string) (*models.Suggestion, error)
	Correct(ctx context.Context, id string, req dto.CorrectSuggestionRequest, reviewerID string) (*dto.ReviewResult, error)
	Rollback(ctx context.Context, id, reviewerID string) (*dto.RollbackResult, error)
	BulkApprove(ctx context.Context, req dto.BulkApproveRequest, reviewerID string) (*dto.BulkReviewResult, error)
	BulkReject(ctx context.Context, req dto.BulkRejectRequest, reviewerID string) (*dto.BulkReviewResult, error)
	ApproveGroup(ctx context.Context, targetReference, reviewerID string) (*dto.BulkReviewResult, error)
}

// ReviewHandler exposes the review decision endpoints.
type ReviewHandler struct {
	service reviewService
}

// NewReviewHandler constructs the handler.
func NewReviewHandler(service reviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// Approve godoc
// @Summary Approve a suggestion
// @Description Applies the change plan, with optional edits, extra actions, pattern flags and feedback
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Suggestion ID"
// @Param payload body dto.ApproveSuggestionRequest true "Approve options"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /suggestions/{id}/approve [post]
func (h *ReviewHandler) Approve(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "review service not configured"))
		return
	}
	req := dto.ApproveSuggestionRequest{}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid approve payload"))
			return
		}
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Approve(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Reject godoc
// @Summary Reject a suggestion
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Suggestion ID"
// @Param payload body dto.RejectSuggestionRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /suggestions/{id}/reject [post]
func (h *ReviewHandler) Reject(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "review service not configured"))
		return
	}
	var req dto.RejectSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid reject payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	suggestion, err := h.service.Reject(c.Request.Context(), c.Param("id"), req.Reason, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestion, nil)
}

// Correct godoc
// @Summary Correct a suggestion
// @Description Redirects the suggestion at the reviewer-chosen target and optionally learns a pattern
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Suggestion ID"
// @Param payload body dto.CorrectSuggestionRequest true "Correction"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /suggestions/{id}/correct [post]
func (h *ReviewHandler) Correct(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "review service not configured"))
		return
	}
	var req dto.CorrectSuggestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid correct payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Correct(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Rollback godoc
// @Summary Roll back an applied suggestion
// @Description Reverses the recorded changes and returns the suggestion to PENDING
// @Tags Review
// @Produce json
// @Param id path string true "Suggestion ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /suggestions/{id}/rollback [post]
func (h *ReviewHandler) Rollback(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "review service not configured"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.Rollback(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkApprove godoc
// @Summary Approve suggestions in bulk
// @Description Approves listed ids, or every pending suggestion at or above a confidence floor
// @Tags Review
// @Accept json
// @Produce json
// @Param payload body dto.BulkApproveRequest true "Bulk selection"
// @Success 200 {object} response.Envelope
// @Router /suggestions/bulk/approve [post]
func (h *ReviewHandler) BulkApprove(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "review service not configured"))
		return
	}
	var req dto.BulkApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid bulk approve payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.BulkApprove(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// BulkReject godoc
// @Summary Reject suggestions in bulk
// @Tags Review
// @Accept json
// @Produce json
// @Param payload body dto.BulkRejectRequest true "Bulk selection with reason"
// @Success 200 {object} response.Envelope
// @Router /suggestions/bulk/reject [post]
func (h *ReviewHandler) BulkReject(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "review service not configured"))
		return
	}
	var req dto.BulkRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid bulk reject payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.BulkReject(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ApproveGroup godoc
// @Summary Approve a suggestion group
// @Description Approves every pending suggestion sharing one target
// @Tags Review
// @Accept json
// @Produce json
// @Param payload body dto.GroupApproveRequest true "Target group"
// @Success 200 {object} response.Envelope
// @Router /suggestions/groups/approve [post]
func (h *ReviewHandler) ApproveGroup(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "review service not configured"))
		return
	}
	var req dto.GroupApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid group approve payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	result, err := h.service.ApproveGroup(c.Request.Context(), req.TargetReference, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
