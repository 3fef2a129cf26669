package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lindenworks/studio-ops-api/internal/dto"
	"github.com/lindenworks/studio-ops-api/internal/middleware"
	"github.com/lindenworks/studio-ops-api/internal/models"
)

type fakeSuggestionSrv struct {
	ingested    *models.Suggestion
	ingestErr   error
	lastIngest  dto.IngestSuggestionRequest
	lastActor   string
	listResp    []models.Suggestion
	listPage    models.Pagination
	lastQuery   dto.SuggestionQuery
	detail      *dto.SuggestionDetail
	groups      []models.SuggestionGroup
	groupsHit   bool
	plan        *models.ChangePlan
	source      *models.SourceContent
	feedback    *models.UserFeedback
	tags        []models.TagCount
	serviceErr  error
}

func (f *fakeSuggestionSrv) Ingest(_ context.Context, req dto.IngestSuggestionRequest, actorID string) (*models.Suggestion, error) {
	f.lastIngest = req
	f.lastActor = actorID
	return f.ingested, f.ingestErr
}

func (f *fakeSuggestionSrv) List(_ context.Context, query dto.SuggestionQuery) ([]models.Suggestion, models.Pagination, error) {
	f.lastQuery = query
	return f.listResp, f.listPage, f.serviceErr
}

func (f *fakeSuggestionSrv) Get(context.Context, string) (*dto.SuggestionDetail, error) {
	return f.detail, f.serviceErr
}

func (f *fakeSuggestionSrv) Groups(context.Context) ([]models.SuggestionGroup, bool, error) {
	return f.groups, f.groupsHit, f.serviceErr
}

func (f *fakeSuggestionSrv) Preview(context.Context, string) (*models.ChangePlan, error) {
	return f.plan, f.serviceErr
}

func (f *fakeSuggestionSrv) SourceForSuggestion(context.Context, string) (*models.SourceContent, error) {
	return f.source, f.serviceErr
}

func (f *fakeSuggestionSrv) SaveFeedback(context.Context, string, dto.FeedbackRequest, string) (*models.UserFeedback, error) {
	return f.feedback, f.serviceErr
}

func (f *fakeSuggestionSrv) Tags(context.Context) ([]models.TagCount, error) {
	return f.tags, f.serviceErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

type responseEnvelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      map[string]interface{} `json:"error"`
	Pagination map[string]interface{} `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func TestSuggestionHandlerIngest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeSuggestionSrv{
		ingested: &models.Suggestion{ID: "sg-1", Status: models.SuggestionStatusPending},
	}
	handler := NewSuggestionHandler(srv)

	payload, _ := json.Marshal(dto.IngestSuggestionRequest{
		Type:            models.SuggestionTypeEmailLink,
		SourceReference: "email:e-1",
		Confidence:      0.8,
		SuggestedData:   json.RawMessage(`{"email_id":"e-1","project_id":"p-1"}`),
	})
	c, w := newGinContext(http.MethodPost, "/suggestions", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "svc-gen", Role: models.RoleService})

	handler.Ingest(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "email:e-1", srv.lastIngest.SourceReference)
	assert.Equal(t, "svc-gen", srv.lastActor)
}

func TestSuggestionHandlerIngestRejectsBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSuggestionHandler(&fakeSuggestionSrv{})

	c, w := newGinContext(http.MethodPost, "/suggestions", []byte("{not json"))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "svc-gen"})

	handler.Ingest(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSuggestionHandlerIngestRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSuggestionHandler(&fakeSuggestionSrv{})

	payload, _ := json.Marshal(dto.IngestSuggestionRequest{
		Type:            models.SuggestionTypeNewContact,
		SourceReference: "email:e-1",
		SuggestedData:   json.RawMessage(`{}`),
	})
	c, w := newGinContext(http.MethodPost, "/suggestions", payload)

	handler.Ingest(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSuggestionHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeSuggestionSrv{}
	handler := NewSuggestionHandler(srv)

	c, w := newGinContext(http.MethodGet, "/suggestions?status=pending,%20approved&type=email_link&minConfidence=0.5&page=2&pageSize=10", nil)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []models.SuggestionStatus{models.SuggestionStatusPending, models.SuggestionStatusApproved}, srv.lastQuery.Status)
	assert.Equal(t, models.SuggestionTypeEmailLink, srv.lastQuery.Type)
	require.NotNil(t, srv.lastQuery.MinConfidence)
	assert.InDelta(t, 0.5, *srv.lastQuery.MinConfidence, 0.0001)
	assert.Equal(t, 2, srv.lastQuery.Page)
	assert.Equal(t, 10, srv.lastQuery.PageSize)
}

func TestSuggestionHandlerGroupsReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSuggestionHandler(&fakeSuggestionSrv{
		groups:    []models.SuggestionGroup{{TargetReference: "project:p-1", Count: 3}},
		groupsHit: true,
	})

	c, w := newGinContext(http.MethodGet, "/suggestions/groups", nil)

	handler.Groups(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
}

func TestSuggestionHandlerNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewSuggestionHandler(nil)

	c, w := newGinContext(http.MethodGet, "/suggestions", nil)

	handler.List(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
