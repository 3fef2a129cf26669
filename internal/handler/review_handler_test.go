package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindenworks/studio-ops-api/internal/dto"
	"github.com/lindenworks/studio-ops-api/internal/middleware"
	"github.com/lindenworks/studio-ops-api/internal/models"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
)

type reviewServiceMock struct {
	reviewResult *dto.ReviewResult
	rejected     *models.Suggestion
	rollback     *dto.RollbackResult
	bulkResult   *dto.BulkReviewResult
	err          error
	lastID       string
	lastApprove  dto.ApproveSuggestionRequest
	lastReason   string
	lastGroup    string
	lastReviewer string
}

func (m *reviewServiceMock) Approve(_ context.Context, id string, req dto.ApproveSuggestionRequest, reviewerID string) (*dto.ReviewResult, error) {
	m.lastID = id
	m.lastApprove = req
	m.lastReviewer = reviewerID
	return m.reviewResult, m.err
}

func (m *reviewServiceMock) Reject(_ context.Context, id, reason, reviewerID string) (*models.Suggestion, error) {
	m.lastID = id
	m.lastReason = reason
	m.lastReviewer = reviewerID
	return m.rejected, m.err
}

func (m *reviewServiceMock) Correct(_ context.Context, id string, _ dto.CorrectSuggestionRequest, reviewerID string) (*dto.ReviewResult, error) {
	m.lastID = id
	m.lastReviewer = reviewerID
	return m.reviewResult, m.err
}

func (m *reviewServiceMock) Rollback(_ context.Context, id, reviewerID string) (*dto.RollbackResult, error) {
	m.lastID = id
	m.lastReviewer = reviewerID
	return m.rollback, m.err
}

func (m *reviewServiceMock) BulkApprove(_ context.Context, req dto.BulkApproveRequest, reviewerID string) (*dto.BulkReviewResult, error) {
	m.lastReviewer = reviewerID
	return m.bulkResult, m.err
}

func (m *reviewServiceMock) BulkReject(_ context.Context, req dto.BulkRejectRequest, reviewerID string) (*dto.BulkReviewResult, error) {
	m.lastReason = req.Reason
	m.lastReviewer = reviewerID
	return m.bulkResult, m.err
}

func (m *reviewServiceMock) ApproveGroup(_ context.Context, targetReference, reviewerID string) (*dto.BulkReviewResult, error) {
	m.lastGroup = targetReference
	m.lastReviewer = reviewerID
	return m.bulkResult, m.err
}

func reviewerClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "rev-1", Role: models.RoleReviewer}
}

func TestReviewHandlerApproveWithEmptyBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewServiceMock{
		reviewResult: &dto.ReviewResult{Suggestion: &models.Suggestion{ID: "sg-1", Status: models.SuggestionStatusApproved}},
	}
	handler := NewReviewHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/suggestions/sg-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "sg-1"}}
	c.Set(middleware.ContextUserKey, reviewerClaims())

	handler.Approve(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sg-1", mockSvc.lastID)
	assert.Equal(t, "rev-1", mockSvc.lastReviewer)
	assert.Nil(t, mockSvc.lastApprove.Edits)
}

func TestReviewHandlerApproveForwardsOptions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewServiceMock{
		reviewResult: &dto.ReviewResult{Suggestion: &models.Suggestion{ID: "sg-1"}},
	}
	handler := NewReviewHandler(mockSvc)

	name := "Studio North"
	payload, _ := json.Marshal(dto.ApproveSuggestionRequest{
		Edits: map[string]*string{"name": &name},
		Patterns: dto.PatternFlags{
			CreateSenderPattern: true,
			Keywords:            []string{"invoice"},
		},
	})
	c, w := newGinContext(http.MethodPost, "/suggestions/sg-1/approve", payload)
	c.Params = gin.Params{{Key: "id", Value: "sg-1"}}
	c.Set(middleware.ContextUserKey, reviewerClaims())

	handler.Approve(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastApprove.Edits["name"])
	assert.Equal(t, "Studio North", *mockSvc.lastApprove.Edits["name"])
	assert.True(t, mockSvc.lastApprove.Patterns.CreateSenderPattern)
}

func TestReviewHandlerApproveConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewServiceMock{
		err: appErrors.Clone(appErrors.ErrInvalidState, "suggestion already reviewed"),
	}
	handler := NewReviewHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/suggestions/sg-1/approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "sg-1"}}
	c.Set(middleware.ContextUserKey, reviewerClaims())

	handler.Approve(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReviewHandlerRejectForwardsReason(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewServiceMock{
		rejected: &models.Suggestion{ID: "sg-1", Status: models.SuggestionStatusRejected},
	}
	handler := NewReviewHandler(mockSvc)

	payload, _ := json.Marshal(dto.RejectSuggestionRequest{Reason: "wrong project"})
	c, w := newGinContext(http.MethodPost, "/suggestions/sg-1/reject", payload)
	c.Params = gin.Params{{Key: "id", Value: "sg-1"}}
	c.Set(middleware.ContextUserKey, reviewerClaims())

	handler.Reject(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "wrong project", mockSvc.lastReason)
}

func TestReviewHandlerRollback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewServiceMock{
		rollback: &dto.RollbackResult{
			Suggestion:      &models.Suggestion{ID: "sg-1", Status: models.SuggestionStatusPending},
			ReversedEntries: 2,
		},
	}
	handler := NewReviewHandler(mockSvc)

	c, w := newGinContext(http.MethodPost, "/suggestions/sg-1/rollback", nil)
	c.Params = gin.Params{{Key: "id", Value: "sg-1"}}
	c.Set(middleware.ContextUserKey, reviewerClaims())

	handler.Rollback(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sg-1", mockSvc.lastID)
}

func TestReviewHandlerRollbackRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReviewHandler(&reviewServiceMock{})

	c, w := newGinContext(http.MethodPost, "/suggestions/sg-1/rollback", nil)
	c.Params = gin.Params{{Key: "id", Value: "sg-1"}}

	handler.Rollback(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReviewHandlerApproveGroup(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewServiceMock{
		bulkResult: &dto.BulkReviewResult{Processed: 3, Succeeded: []string{"sg-1", "sg-2", "sg-3"}},
	}
	handler := NewReviewHandler(mockSvc)

	payload, _ := json.Marshal(dto.GroupApproveRequest{TargetReference: "project:p-1"})
	c, w := newGinContext(http.MethodPost, "/suggestions/groups/approve", payload)
	c.Set(middleware.ContextUserKey, reviewerClaims())

	handler.ApproveGroup(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "project:p-1", mockSvc.lastGroup)
}

func TestReviewHandlerBulkReject(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reviewServiceMock{
		bulkResult: &dto.BulkReviewResult{Processed: 2, Succeeded: []string{"sg-1"}, Skipped: []dto.BulkSkip{{ID: "sg-2", Reason: "not pending"}}},
	}
	handler := NewReviewHandler(mockSvc)

	payload, _ := json.Marshal(dto.BulkRejectRequest{IDs: []string{"sg-1", "sg-2"}, Reason: "spam"})
	c, w := newGinContext(http.MethodPost, "/suggestions/bulk/reject", payload)
	c.Set(middleware.ContextUserKey, reviewerClaims())

	handler.BulkReject(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "spam", mockSvc.lastReason)
}
