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
	"github.com/lindenworks/studio-ops-api/internal/models"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
)

type fakePatternSrv struct {
	patterns  []models.LearnedPattern
	page      models.Pagination
	match     *models.PatternMatch
	matchHit  bool
	err       error
	lastQuery dto.PatternQuery
	lastMatch dto.PatternMatchQuery
}

func (f *fakePatternSrv) List(_ context.Context, query dto.PatternQuery) ([]models.LearnedPattern, models.Pagination, error) {
	f.lastQuery = query
	return f.patterns, f.page, f.err
}

func (f *fakePatternSrv) Match(_ context.Context, query dto.PatternMatchQuery) (*models.PatternMatch, bool, error) {
	f.lastMatch = query
	return f.match, f.matchHit, f.err
}

func TestPatternHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakePatternSrv{}
	handler := NewPatternHandler(srv)

	c, w := newGinContext(http.MethodGet, "/patterns?type=sender&targetReference=project:p-1&minBoost=0.2&page=3", nil)

	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.PatternTypeSender, srv.lastQuery.Type)
	assert.Equal(t, "project:p-1", srv.lastQuery.TargetReference)
	require.NotNil(t, srv.lastQuery.MinBoost)
	assert.InDelta(t, 0.2, *srv.lastQuery.MinBoost, 0.0001)
	assert.Equal(t, 3, srv.lastQuery.Page)
}

func TestPatternHandlerMatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakePatternSrv{
		match: &models.PatternMatch{
			Patterns:      []models.LearnedPattern{{ID: "pt-1", Type: models.PatternTypeSender, Key: "anna@studionorth.se"}},
			CombinedBoost: 0.15,
		},
		matchHit: true,
	}
	handler := NewPatternHandler(srv)

	c, w := newGinContext(http.MethodGet, "/patterns/match?sender=anna@studionorth.se&keyword=invoice&keyword=budget", nil)

	handler.Match(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anna@studionorth.se", srv.lastMatch.Sender)
	assert.Equal(t, []string{"invoice", "budget"}, srv.lastMatch.Keywords)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestPatternHandlerMatchRequiresSignal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakePatternSrv{
		err: appErrors.Clone(appErrors.ErrValidation, "sender or keyword is required"),
	}
	handler := NewPatternHandler(srv)

	c, w := newGinContext(http.MethodGet, "/patterns/match", nil)

	handler.Match(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
