package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lindenworks/studio-ops-api/internal/dto"
	"github.com/lindenworks/studio-ops-api/internal/models"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
)

func TestSuggestionServiceIngest(t *testing.T) {
	fx := newSuggestionFixture()

	suggestion, err := fx.service.Ingest(context.Background(), dto.IngestSuggestionRequest{
		Type:            models.SuggestionTypeEmailLink,
		SourceReference: "email:e-1",
		Confidence:      0.82,
		SuggestedData:   json.RawMessage(`{"email_id":"e-1","project_id":"p-1"}`),
	}, "svc-generator")
	require.NoError(t, err)

	assert.Equal(t, models.SuggestionStatusPending, suggestion.Status)
	assert.Equal(t, models.PriorityNormal, suggestion.Priority, "priority defaults to NORMAL")
	require.NotNil(t, suggestion.TargetReference)
	assert.Equal(t, "project:p-1", *suggestion.TargetReference, "target derived from the payload")

	require.Len(t, fx.store.created, 1)
	require.Len(t, fx.audit.logs, 1)
	assert.Equal(t, models.AuditActionSuggestionIngest, fx.audit.logs[0].Action)
}

func TestSuggestionServiceIngestNewContactHasNoTarget(t *testing.T) {
	fx := newSuggestionFixture()

	suggestion, err := fx.service.Ingest(context.Background(), dto.IngestSuggestionRequest{
		Type:            models.SuggestionTypeNewContact,
		SourceReference: "email:e-1",
		Confidence:      0.6,
		Priority:        models.PriorityHigh,
		SuggestedData:   json.RawMessage(`{"full_name":"Mara Voss","email":"mara@vossinteriors.com"}`),
	}, "svc-generator")
	require.NoError(t, err)
	assert.Nil(t, suggestion.TargetReference, "nothing to point at until the contact exists")
	assert.Equal(t, models.PriorityHigh, suggestion.Priority)
}

func TestSuggestionServiceIngestValidation(t *testing.T) {
	fx := newSuggestionFixture()

	cases := []struct {
		name string
		req  dto.IngestSuggestionRequest
		want string
	}{
		{
			name: "missing type",
			req: dto.IngestSuggestionRequest{
				SourceReference: "email:e-1",
				SuggestedData:   json.RawMessage(`{}`),
			},
		},
		{
			name: "unknown type",
			req: dto.IngestSuggestionRequest{
				Type:            "BANANA",
				SourceReference: "email:e-1",
				SuggestedData:   json.RawMessage(`{}`),
			},
			want: "unknown suggestion type",
		},
		{
			name: "payload with unknown field",
			req: dto.IngestSuggestionRequest{
				Type:            models.SuggestionTypeNewContact,
				SourceReference: "email:e-1",
				SuggestedData:   json.RawMessage(`{"full_name":"x","email":"x@y.z","favourite":"teal"}`),
			},
		},
		{
			name: "confidence out of range",
			req: dto.IngestSuggestionRequest{
				Type:            models.SuggestionTypeNewContact,
				Confidence:      1.4,
				SourceReference: "email:e-1",
				SuggestedData:   json.RawMessage(`{"full_name":"x","email":"x@y.z"}`),
			},
		},
		{
			name: "target reference as source",
			req: dto.IngestSuggestionRequest{
				Type:            models.SuggestionTypeNewContact,
				SourceReference: "project:p-1",
				SuggestedData:   json.RawMessage(`{"full_name":"x","email":"x@y.z"}`),
			},
			want: "unsupported source kind",
		},
		{
			name: "source not imported",
			req: dto.IngestSuggestionRequest{
				Type:            models.SuggestionTypeNewContact,
				SourceReference: "email:e-404",
				SuggestedData:   json.RawMessage(`{"full_name":"x","email":"x@y.z"}`),
			},
			want: "not imported",
		},
		{
			name: "unknown priority",
			req: dto.IngestSuggestionRequest{
				Type:            models.SuggestionTypeNewContact,
				Priority:        "URGENT",
				SourceReference: "email:e-1",
				SuggestedData:   json.RawMessage(`{"full_name":"x","email":"x@y.z"}`),
			},
			want: "unknown priority",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := fx.service.Ingest(context.Background(), tc.req, "svc-generator")
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			if tc.want != "" {
				assert.Contains(t, appErr.Message, tc.want)
			}
		})
	}
	assert.Empty(t, fx.store.created)
}

func TestSuggestionServiceList(t *testing.T) {
	fx := newSuggestionFixture()
	fx.store.list = []models.Suggestion{*reviewSuggestion("sg-1", models.SuggestionStatusPending)}
	fx.store.total = 55

	minConfidence := 0.5
	suggestions, pagination, err := fx.service.List(context.Background(), dto.SuggestionQuery{
		Status:        []models.SuggestionStatus{models.SuggestionStatusPending},
		MinConfidence: &minConfidence,
		PageSize:      1000,
	})
	require.NoError(t, err)
	assert.Len(t, suggestions, 1)
	assert.Equal(t, 100, pagination.PageSize, "page size is capped")
	assert.Equal(t, 55, pagination.TotalCount)
	assert.Equal(t, []models.SuggestionStatus{models.SuggestionStatusPending}, fx.store.listed.Status)
	require.NotNil(t, fx.store.listed.MinConfidence)
	assert.Equal(t, 0.5, *fx.store.listed.MinConfidence)
}

func TestSuggestionServiceListRejectsUnknownStatus(t *testing.T) {
	fx := newSuggestionFixture()
	_, _, err := fx.service.List(context.Background(), dto.SuggestionQuery{
		Status: []models.SuggestionStatus{"SNOOZED"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSuggestionServiceGet(t *testing.T) {
	fx := newSuggestionFixture()
	fx.store.add(reviewSuggestion("sg-1", models.SuggestionStatusApproved))
	fx.trail.entries = []models.AuditEntry{{ID: "ae-1", SuggestionID: "sg-1", Seq: 1}}
	notes := "double-checked with mara"
	fx.feedbackStore.items = map[string]*models.UserFeedback{
		"sg-1": {SuggestionID: "sg-1", Notes: &notes},
	}

	detail, err := fx.service.Get(context.Background(), "sg-1")
	require.NoError(t, err)
	assert.Equal(t, "sg-1", detail.Suggestion.ID)
	assert.Len(t, detail.AuditTrail, 1)
	require.NotNil(t, detail.Feedback)
	assert.Equal(t, "double-checked with mara", *detail.Feedback.Notes)
}

func TestSuggestionServiceGetWithoutFeedback(t *testing.T) {
	fx := newSuggestionFixture()
	fx.store.add(reviewSuggestion("sg-1", models.SuggestionStatusPending))

	detail, err := fx.service.Get(context.Background(), "sg-1")
	require.NoError(t, err)
	assert.Nil(t, detail.Feedback)
	assert.NotNil(t, detail.AuditTrail)
}

func TestSuggestionServiceGetNotFound(t *testing.T) {
	fx := newSuggestionFixture()
	_, err := fx.service.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSuggestionServiceGroups(t *testing.T) {
	fx := newSuggestionFixture()
	fx.store.groups = []models.SuggestionGroup{
		{TargetReference: "project:p-1", Count: 3, AvgConfidence: 0.7},
		{TargetReference: models.GroupUngrouped, Count: 1},
	}

	groups, cacheHit, err := fx.service.Groups(context.Background())
	require.NoError(t, err)
	assert.False(t, cacheHit, "no cache configured")
	require.Len(t, groups, 2)
	assert.Equal(t, "project:p-1", groups[0].TargetReference)
}

func TestSuggestionServicePreview(t *testing.T) {
	fx := newSuggestionFixture()
	fx.store.add(reviewSuggestion("sg-1", models.SuggestionStatusPending))
	fx.planner.plan = reviewPlanFor("sg-1")

	plan, err := fx.service.Preview(context.Background(), "sg-1")
	require.NoError(t, err)
	assert.True(t, plan.Actionable)
	assert.Equal(t, "sg-1", plan.SuggestionID)
}

func TestSuggestionServicePreviewNotFound(t *testing.T) {
	fx := newSuggestionFixture()
	_, err := fx.service.Preview(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSuggestionServiceSource(t *testing.T) {
	fx := newSuggestionFixture()
	path := "emails/e-1.txt"
	fx.sources.emails["e-1"].BodyPath = &path
	fx.storage.files[path] = []byte("Hi, attaching the revised palette for Harbor House.")

	content, err := fx.service.Source(context.Background(), "email:e-1")
	require.NoError(t, err)
	assert.Equal(t, models.RefEmail, content.Kind)
	require.NotNil(t, content.Email)
	assert.Contains(t, content.Body, "Harbor House")
}

func TestSuggestionServiceSourceWithoutBody(t *testing.T) {
	fx := newSuggestionFixture()

	content, err := fx.service.Source(context.Background(), "email:e-1")
	require.NoError(t, err)
	assert.Empty(t, content.Body)
	require.NotNil(t, content.Email)
}

func TestSuggestionServiceSourceForSuggestion(t *testing.T) {
	fx := newSuggestionFixture()
	fx.store.add(&models.Suggestion{ID: "sg-1", SourceReference: "transcript:t-1"})

	content, err := fx.service.SourceForSuggestion(context.Background(), "sg-1")
	require.NoError(t, err)
	assert.Equal(t, models.RefTranscript, content.Kind)
	require.NotNil(t, content.Transcript)

	_, err = fx.service.SourceForSuggestion(context.Background(), "sg-404")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSuggestionServiceSourceBodyUnreadable(t *testing.T) {
	fx := newSuggestionFixture()
	path := "emails/e-1.txt"
	fx.sources.emails["e-1"].BodyPath = &path
	fx.storage.readErr = fmt.Errorf("disk detached")

	_, err := fx.service.Source(context.Background(), "email:e-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrSourceUnavailable.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "email:e-1")
}

func TestSuggestionServiceSourceErrors(t *testing.T) {
	fx := newSuggestionFixture()

	_, err := fx.service.Source(context.Background(), "email:e-404")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = fx.service.Source(context.Background(), "project:p-1")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = fx.service.Source(context.Background(), "nonsense")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSuggestionServiceSaveFeedback(t *testing.T) {
	fx := newSuggestionFixture()
	fx.store.add(reviewSuggestion("sg-1", models.SuggestionStatusPending))
	override := models.PriorityHigh

	saved, err := fx.service.SaveFeedback(context.Background(), "sg-1", dto.FeedbackRequest{
		Tags:             []string{"pricing"},
		PriorityOverride: &override,
	}, "rev-1")
	require.NoError(t, err)
	assert.Equal(t, "rev-1", saved.CreatedBy)
	assert.Equal(t, []string{"pricing"}, []string(saved.Tags))
}

func TestSuggestionServiceSaveFeedbackValidation(t *testing.T) {
	fx := newSuggestionFixture()
	fx.store.add(reviewSuggestion("sg-1", models.SuggestionStatusPending))

	_, err := fx.service.SaveFeedback(context.Background(), "missing", dto.FeedbackRequest{}, "rev-1")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	bad := models.SuggestionPriority("URGENT")
	_, err = fx.service.SaveFeedback(context.Background(), "sg-1", dto.FeedbackRequest{
		PriorityOverride: &bad,
	}, "rev-1")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSuggestionServiceTags(t *testing.T) {
	fx := newSuggestionFixture()
	fx.feedbackStore.tags = []models.TagCount{{Tag: "pricing", Count: 4}}

	tags, err := fx.service.Tags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "pricing", tags[0].Tag)
}

// --- Fixtures ---

type suggestionFixture struct {
	service       *SuggestionService
	store         *suggestionStoreStub
	trail         *trailReaderStub
	feedbackStore *feedbackStoreStub
	sources       *sourceReaderStub
	storage       *bodyStorageStub
	planner       *previewPlannerStub
	audit         *auditSinkStub
}

func newSuggestionFixture() *suggestionFixture {
	fx := &suggestionFixture{
		store:         &suggestionStoreStub{items: map[string]*models.Suggestion{}},
		trail:         &trailReaderStub{},
		feedbackStore: &feedbackStoreStub{},
		sources: &sourceReaderStub{
			emails:      map[string]*models.Email{"e-1": {ID: "e-1", Sender: "mara@vossinteriors.com"}},
			transcripts: map[string]*models.Transcript{"t-1": {ID: "t-1", Title: "kickoff"}},
		},
		storage: &bodyStorageStub{files: map[string][]byte{}},
		planner: &previewPlannerStub{},
		audit:   &auditSinkStub{},
	}
	fx.service = NewSuggestionService(fx.store, fx.trail, fx.feedbackStore, fx.sources,
		fx.storage, fx.planner, nil, fx.audit, nil, nil, validator.New(), zap.NewNop(),
		SuggestionServiceConfig{})
	return fx
}

type suggestionStoreStub struct {
	items   map[string]*models.Suggestion
	created []*models.Suggestion
	list    []models.Suggestion
	total   int
	groups  []models.SuggestionGroup
	listed  models.SuggestionFilter
}

func (s *suggestionStoreStub) add(suggestion *models.Suggestion) {
	s.items[suggestion.ID] = suggestion
}

func (s *suggestionStoreStub) Create(ctx context.Context, suggestion *models.Suggestion) error {
	if suggestion.ID == "" {
		suggestion.ID = fmt.Sprintf("sg-%d", len(s.created)+1)
	}
	s.created = append(s.created, suggestion)
	s.items[suggestion.ID] = suggestion
	return nil
}

func (s *suggestionStoreStub) GetByID(ctx context.Context, id string) (*models.Suggestion, error) {
	item, ok := s.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return item, nil
}

func (s *suggestionStoreStub) List(ctx context.Context, filter models.SuggestionFilter) ([]models.Suggestion, int, error) {
	s.listed = filter
	return s.list, s.total, nil
}

func (s *suggestionStoreStub) Groups(ctx context.Context) ([]models.SuggestionGroup, error) {
	return s.groups, nil
}

type trailReaderStub struct {
	entries []models.AuditEntry
}

func (s *trailReaderStub) ListBySuggestion(ctx context.Context, suggestionID string) ([]models.AuditEntry, error) {
	return s.entries, nil
}

type feedbackStoreStub struct {
	items map[string]*models.UserFeedback
	tags  []models.TagCount
	saved []*models.UserFeedback
}

func (s *feedbackStoreStub) GetBySuggestion(ctx context.Context, suggestionID string) (*models.UserFeedback, error) {
	if feedback, ok := s.items[suggestionID]; ok {
		return feedback, nil
	}
	return nil, sql.ErrNoRows
}

func (s *feedbackStoreStub) Upsert(ctx context.Context, feedback *models.UserFeedback) (*models.UserFeedback, error) {
	s.saved = append(s.saved, feedback)
	return feedback, nil
}

func (s *feedbackStoreStub) ListTags(ctx context.Context) ([]models.TagCount, error) {
	return s.tags, nil
}

type sourceReaderStub struct {
	emails      map[string]*models.Email
	transcripts map[string]*models.Transcript
}

func (s *sourceReaderStub) GetEmail(ctx context.Context, id string) (*models.Email, error) {
	email, ok := s.emails[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return email, nil
}

func (s *sourceReaderStub) GetTranscript(ctx context.Context, id string) (*models.Transcript, error) {
	transcript, ok := s.transcripts[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return transcript, nil
}

type bodyStorageStub struct {
	files   map[string][]byte
	readErr error
}

func (s *bodyStorageStub) Read(filename string) ([]byte, error) {
	if s.readErr != nil {
		return nil, s.readErr
	}
	data, ok := s.files[filename]
	if !ok {
		return nil, fmt.Errorf("open storage file: no such file")
	}
	return data, nil
}

type previewPlannerStub struct {
	plan *models.ChangePlan
	err  error
}

func (s *previewPlannerStub) Plan(ctx context.Context, exec sqlx.ExtContext, suggestion *models.Suggestion, opts PlanOptions) (*models.ChangePlan, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.plan != nil {
		return s.plan, nil
	}
	return models.NotActionablePlan(suggestion.ID, "nothing to apply"), nil
}
