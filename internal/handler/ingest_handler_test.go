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
)

type fakeIngestSrv struct {
	created   *dto.IngestJobResponse
	job       *models.IngestJob
	jobs      []models.IngestJob
	err       error
	lastReq   dto.CreateIngestJobRequest
	lastActor string
	lastLimit int
}

func (f *fakeIngestSrv) CreateJob(_ context.Context, req dto.CreateIngestJobRequest, actorID string) (*dto.IngestJobResponse, error) {
	f.lastReq = req
	f.lastActor = actorID
	return f.created, f.err
}

func (f *fakeIngestSrv) Get(context.Context, string) (*models.IngestJob, error) {
	return f.job, f.err
}

func (f *fakeIngestSrv) List(_ context.Context, limit int) ([]models.IngestJob, error) {
	f.lastLimit = limit
	return f.jobs, f.err
}

func TestIngestHandlerCreateAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeIngestSrv{
		created: &dto.IngestJobResponse{ID: "job-1", Status: models.IngestJobStatusQueued},
	}
	handler := NewIngestHandler(srv)

	payload, _ := json.Marshal(dto.CreateIngestJobRequest{
		Type:     models.IngestJobTypeEmails,
		FileName: "batch-2026-08.json",
		Mailbox:  "hello@lindenworks.se",
	})
	c, w := newGinContext(http.MethodPost, "/ingest-jobs", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin})

	handler.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "batch-2026-08.json", srv.lastReq.FileName)
	assert.Equal(t, "adm-1", srv.lastActor)
}

func TestIngestHandlerCreateRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewIngestHandler(&fakeIngestSrv{})

	payload, _ := json.Marshal(dto.CreateIngestJobRequest{Type: models.IngestJobTypeEmails, FileName: "x.json"})
	c, w := newGinContext(http.MethodPost, "/ingest-jobs", payload)

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIngestHandlerListForwardsLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeIngestSrv{jobs: []models.IngestJob{{ID: "job-1"}}}
	handler := NewIngestHandler(srv)

	c, w := newGinContext(http.MethodGet, "/ingest-jobs?limit=5", nil)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, srv.lastLimit)
}

func TestIngestHandlerNilService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewIngestHandler(nil)

	c, w := newGinContext(http.MethodPost, "/ingest-jobs", nil)

	handler.Create(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
