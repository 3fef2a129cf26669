package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lindenworks/studio-ops-api/internal/dto"
	"github.com/lindenworks/studio-ops-api/internal/models"
	"github.com/lindenworks/studio-ops-api/internal/repository"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
	"github.com/lindenworks/studio-ops-api/pkg/jobs"
)

func TestIngestServiceCreateJob(t *testing.T) {
	svc, repo, queue, audit := newIngestServiceForTest()

	resp, err := svc.CreateJob(context.Background(), dto.CreateIngestJobRequest{
		Type:     models.IngestJobTypeEmails,
		FileName: "mailbox-2026-03.json",
		Mailbox:  "studio@lindenworks.com",
	}, "admin-1")
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, models.IngestJobStatusQueued, resp.Status)

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, string(models.IngestJobTypeEmails), queue.jobs[0].Kind)
	assert.Contains(t, repo.jobs, resp.ID)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionIngestJobCreate, audit.logs[0].Action)
}

func TestIngestServiceCreateJobValidation(t *testing.T) {
	svc, repo, _, _ := newIngestServiceForTest()

	cases := []struct {
		name string
		req  dto.CreateIngestJobRequest
	}{
		{name: "unsupported type", req: dto.CreateIngestJobRequest{Type: "CSV_IMPORT", FileName: "x.json"}},
		{name: "missing file name", req: dto.CreateIngestJobRequest{Type: models.IngestJobTypeEmails}},
		{name: "path escape", req: dto.CreateIngestJobRequest{Type: models.IngestJobTypeEmails, FileName: "../secrets.json"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateJob(context.Background(), tc.req, "admin-1")
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
	assert.Empty(t, repo.jobs)
}

func TestIngestServiceCreateJobEnqueueFailure(t *testing.T) {
	svc, repo, queue, _ := newIngestServiceForTest()
	queue.err = errors.New("queue full")

	_, err := svc.CreateJob(context.Background(), dto.CreateIngestJobRequest{
		Type:     models.IngestJobTypeTranscripts,
		FileName: "meetings.json",
	}, "admin-1")
	require.Error(t, err)

	require.Len(t, repo.jobs, 1)
	for _, job := range repo.jobs {
		assert.Equal(t, models.IngestJobStatusFailed, job.Status)
		require.NotNil(t, job.ErrorMessage)
	}
}

func TestIngestServiceGet(t *testing.T) {
	svc, repo, _, _ := newIngestServiceForTest()
	repo.jobs["job-1"] = &models.IngestJob{ID: "job-1", Status: models.IngestJobStatusRunning, Progress: 40}

	job, err := svc.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 40, job.Progress)

	_, err = svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestIngestServiceRecoverPendingJobs(t *testing.T) {
	svc, repo, queue, _ := newIngestServiceForTest()
	repo.jobs["job-1"] = &models.IngestJob{ID: "job-1", Type: models.IngestJobTypeEmails, Status: models.IngestJobStatusQueued}
	repo.jobs["job-2"] = &models.IngestJob{ID: "job-2", Type: models.IngestJobTypeTranscripts, Status: models.IngestJobStatusQueued}
	repo.jobs["job-3"] = &models.IngestJob{ID: "job-3", Type: models.IngestJobTypeEmails, Status: models.IngestJobStatusCompleted}

	svc.RecoverPendingJobs(context.Background())
	assert.Len(t, queue.jobs, 2)
}

func TestIngestWorkerImportsEmails(t *testing.T) {
	repo := newIngestRepoStub()
	repo.jobs["job-1"] = &models.IngestJob{
		ID:     "job-1",
		Type:   models.IngestJobTypeEmails,
		Params: models.IngestJobParams{FileName: "drop.json"},
		Status: models.IngestJobStatusQueued,
	}
	storage := newImportStorageStub()
	storage.files["imports/drop.json"] = []byte(`[
		{"message_id":"m-1","sender":"Mara@VossInteriors.com","recipients":["studio@lindenworks.com"],"subject":"Harbor House palette","body":"Hi,   attaching the  revised palette.","received_at":"2026-03-01T10:00:00Z"},
		{"message_id":"m-2","sender":"finn@harborhouse.test","subject":"no body here","received_at":"2026-03-01T11:00:00Z"},
		{"message_id":"m-3","sender":"bad@date.test","subject":"broken","received_at":"yesterday"}
	]`)
	importer := newImporterStub()
	worker := NewIngestWorker(repo, importer, storage, "", 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1"})
	require.NoError(t, err)

	job := repo.jobs["job-1"]
	assert.Equal(t, models.IngestJobStatusCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	assert.Equal(t, 2, job.Imported)
	assert.Equal(t, 1, job.Skipped)
	require.NotNil(t, job.FinishedAt)

	require.Len(t, importer.emails, 2)
	first := importer.emails[0]
	assert.Equal(t, "mara@vossinteriors.com", first.Sender, "sender is normalised")
	assert.Equal(t, "Hi, attaching the revised palette.", first.Snippet)
	require.NotNil(t, first.BodyPath)
	assert.Equal(t, "Hi,   attaching the  revised palette.", string(storage.files[*first.BodyPath]))
	assert.Nil(t, importer.emails[1].BodyPath, "no body, no storage file")
}

func TestIngestWorkerSkipsDuplicateEmails(t *testing.T) {
	repo := newIngestRepoStub()
	repo.jobs["job-1"] = &models.IngestJob{
		ID:     "job-1",
		Type:   models.IngestJobTypeEmails,
		Params: models.IngestJobParams{FileName: "drop.json"},
		Status: models.IngestJobStatusQueued,
	}
	storage := newImportStorageStub()
	storage.files["imports/drop.json"] = []byte(`[
		{"message_id":"m-1","sender":"mara@vossinteriors.com","subject":"first","body":"original","received_at":"2026-03-01T10:00:00Z"},
		{"message_id":"m-1","sender":"mara@vossinteriors.com","subject":"again","body":"duplicate","received_at":"2026-03-01T10:05:00Z"}
	]`)
	importer := newImporterStub()
	worker := NewIngestWorker(repo, importer, storage, "", 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))

	job := repo.jobs["job-1"]
	assert.Equal(t, 1, job.Imported)
	assert.Equal(t, 1, job.Skipped)
	require.Len(t, storage.deleted, 1, "duplicate body file is removed")
}

func TestIngestWorkerImportsTranscripts(t *testing.T) {
	repo := newIngestRepoStub()
	repo.jobs["job-1"] = &models.IngestJob{
		ID:     "job-1",
		Type:   models.IngestJobTypeTranscripts,
		Params: models.IngestJobParams{FileName: "meetings.json"},
		Status: models.IngestJobStatusQueued,
	}
	storage := newImportStorageStub()
	storage.files["imports/meetings.json"] = []byte(`[
		{"title":"Harbor House kickoff","participants":["mara","finn"],"body":"Discussed scope.","meeting_at":"2026-03-02T09:00:00Z"},
		{"title":"","body":"untitled","meeting_at":"2026-03-02T10:00:00Z"}
	]`)
	importer := newImporterStub()
	worker := NewIngestWorker(repo, importer, storage, "", 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))

	job := repo.jobs["job-1"]
	assert.Equal(t, 1, job.Imported)
	assert.Equal(t, 1, job.Skipped)
	require.Len(t, importer.transcripts, 1)
	assert.Equal(t, "Harbor House kickoff", importer.transcripts[0].Title)
	require.NotNil(t, importer.transcripts[0].BodyPath)
}

func TestIngestWorkerMissingDropFileRequeues(t *testing.T) {
	repo := newIngestRepoStub()
	repo.jobs["job-1"] = &models.IngestJob{
		ID:     "job-1",
		Type:   models.IngestJobTypeEmails,
		Params: models.IngestJobParams{FileName: "absent.json"},
		Status: models.IngestJobStatusQueued,
	}
	worker := NewIngestWorker(repo, newImporterStub(), newImportStorageStub(), "", 3, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 0})
	require.Error(t, err)

	job := repo.jobs["job-1"]
	assert.Equal(t, models.IngestJobStatusQueued, job.Status, "early attempts reset for retry")
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "absent.json")
}

func TestIngestWorkerFailsAfterRetries(t *testing.T) {
	repo := newIngestRepoStub()
	repo.jobs["job-1"] = &models.IngestJob{
		ID:     "job-1",
		Type:   models.IngestJobTypeEmails,
		Params: models.IngestJobParams{FileName: "drop.json"},
		Status: models.IngestJobStatusQueued,
	}
	storage := newImportStorageStub()
	storage.files["imports/drop.json"] = []byte(`{"not":"an array"}`)
	worker := NewIngestWorker(repo, newImporterStub(), storage, "", 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)

	job := repo.jobs["job-1"]
	assert.Equal(t, models.IngestJobStatusFailed, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.FinishedAt)
}

// --- Fixtures ---

func newIngestServiceForTest() (*IngestService, *ingestRepoStub, *dispatcherStub, *auditSinkStub) {
	repo := newIngestRepoStub()
	queue := &dispatcherStub{}
	audit := &auditSinkStub{}
	svc := NewIngestService(repo, queue, audit, 50, zap.NewNop())
	return svc, repo, queue, audit
}

type ingestRepoStub struct {
	jobs map[string]*models.IngestJob
}

func newIngestRepoStub() *ingestRepoStub {
	return &ingestRepoStub{jobs: map[string]*models.IngestJob{}}
}

func (r *ingestRepoStub) Create(ctx context.Context, job *models.IngestJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *ingestRepoStub) GetByID(ctx context.Context, id string) (*models.IngestJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (r *ingestRepoStub) Update(ctx context.Context, id string, params repository.UpdateIngestJobParams) error {
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.Progress != nil {
		job.Progress = *params.Progress
	}
	if params.Imported != nil {
		job.Imported = *params.Imported
	}
	if params.Skipped != nil {
		job.Skipped = *params.Skipped
	}
	if params.StartedAt != nil {
		job.StartedAt = params.StartedAt
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	return nil
}

func (r *ingestRepoStub) List(ctx context.Context, limit int) ([]models.IngestJob, error) {
	listed := make([]models.IngestJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		listed = append(listed, *job)
	}
	return listed, nil
}

func (r *ingestRepoStub) ListQueued(ctx context.Context, limit int) ([]models.IngestJob, error) {
	var queued []models.IngestJob
	for _, job := range r.jobs {
		if job.Status == models.IngestJobStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

type dispatcherStub struct {
	jobs []jobs.Job
	err  error
}

func (q *dispatcherStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type importerStub struct {
	emails      []*models.Email
	transcripts []*models.Transcript
	seen        map[string]bool
	insertErr   error
}

func newImporterStub() *importerStub {
	return &importerStub{seen: map[string]bool{}}
}

func (s *importerStub) InsertEmail(ctx context.Context, email *models.Email) (bool, error) {
	if s.insertErr != nil {
		return false, s.insertErr
	}
	if s.seen[email.MessageID] {
		return false, nil
	}
	s.seen[email.MessageID] = true
	s.emails = append(s.emails, email)
	return true, nil
}

func (s *importerStub) InsertTranscript(ctx context.Context, transcript *models.Transcript) (bool, error) {
	if s.insertErr != nil {
		return false, s.insertErr
	}
	s.transcripts = append(s.transcripts, transcript)
	return true, nil
}

type importStorageStub struct {
	files   map[string][]byte
	deleted []string
	saveErr error
}

func newImportStorageStub() *importStorageStub {
	return &importStorageStub{files: map[string][]byte{}}
}

func (s *importStorageStub) Read(filename string) ([]byte, error) {
	data, ok := s.files[filename]
	if !ok {
		return nil, fmt.Errorf("read storage file %s: no such file", filename)
	}
	return data, nil
}

func (s *importStorageStub) Save(filename string, data []byte) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	s.files[filename] = data
	return filename, nil
}

func (s *importStorageStub) Delete(filename string) error {
	s.deleted = append(s.deleted, filename)
	delete(s.files, filename)
	return nil
}
