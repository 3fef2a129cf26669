package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lindenworks/studio-ops-api/internal/dto"
	"github.com/lindenworks/studio-ops-api/internal/models"
	"github.com/lindenworks/studio-ops-api/internal/repository"
	appErrors "github.com/lindenworks/studio-ops-api/pkg/errors"
	"github.com/lindenworks/studio-ops-api/pkg/jobs"
)

// importDropDir is the storage subdirectory watched for drop files.
const importDropDir = "imports"

// snippetLength caps the stored preview text for imported sources.
const snippetLength = 200

type ingestJobStore interface {
	Create(ctx context.Context, job *models.IngestJob) error
	GetByID(ctx context.Context, id string) (*models.IngestJob, error)
	Update(ctx context.Context, id string, params repository.UpdateIngestJobParams) error
	List(ctx context.Context, limit int) ([]models.IngestJob, error)
	ListQueued(ctx context.Context, limit int) ([]models.IngestJob, error)
}

type sourceImporter interface {
	InsertEmail(ctx context.Context, email *models.Email) (bool, error)
	InsertTranscript(ctx context.Context, transcript *models.Transcript) (bool, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type importStorage interface {
	Read(filename string) ([]byte, error)
	Save(filename string, data []byte) (string, error)
	Delete(filename string) error
}

// IngestService manages source import jobs. Jobs are persisted before
// they are enqueued, so the database row is authoritative and queued
// work survives a restart.
type IngestService struct {
	repo          ingestJobStore
	queue         jobDispatcher
	audit         auditLogger
	logger        *zap.Logger
	recoveryLimit int
}

// NewIngestService constructs the ingest service. recoveryLimit caps how
// many queued jobs a restart re-enqueues in one sweep.
func NewIngestService(repo ingestJobStore, queue jobDispatcher, audit auditLogger, recoveryLimit int, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recoveryLimit <= 0 {
		recoveryLimit = 50
	}
	return &IngestService{
		repo:          repo,
		queue:         queue,
		audit:         audit,
		logger:        logger,
		recoveryLimit: recoveryLimit,
	}
}

// CreateJob validates the request, persists the job row, and enqueues
// processing.
func (s *IngestService) CreateJob(ctx context.Context, req dto.CreateIngestJobRequest, actorID string) (*dto.IngestJobResponse, error) {
	switch req.Type {
	case models.IngestJobTypeEmails, models.IngestJobTypeTranscripts:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported import type %q", req.Type))
	}
	if strings.TrimSpace(req.FileName) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fileName is required")
	}
	if filepath.Base(req.FileName) != req.FileName {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fileName must be a bare file name inside the drop directory")
	}

	job := &models.IngestJob{
		Type:      req.Type,
		Params:    models.IngestJobParams{FileName: req.FileName, Mailbox: req.Mailbox},
		Status:    models.IngestJobStatusQueued,
		Progress:  0,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create import job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: string(job.Type)}); err != nil {
		status := models.IngestJobStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		progress := 100
		_ = s.repo.Update(ctx, job.ID, repository.UpdateIngestJobParams{
			Status:       &status,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue import job")
	}

	s.emitAudit(ctx, job, actorID)
	return &dto.IngestJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// Get returns one job row, including live progress and counters.
func (s *IngestService) Get(ctx context.Context, id string) (*models.IngestJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "import job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load import job")
	}
	return job, nil
}

// List returns recent jobs, newest first.
func (s *IngestService) List(ctx context.Context, limit int) ([]models.IngestJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	listed, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list import jobs")
	}
	if listed == nil {
		listed = []models.IngestJob{}
	}
	return listed, nil
}

// RecoverPendingJobs replays queued jobs after a process restart.
func (s *IngestService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, s.recoveryLimit)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued import jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Kind: string(job.Type)}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue pending import job", "job_id", job.ID, "error", err)
		}
	}
}

func (s *IngestService) emitAudit(ctx context.Context, job *models.IngestJob, actorID string) {
	if s.audit == nil {
		return
	}
	payload := fmt.Sprintf(`{"type":%q,"file_name":%q}`, job.Type, job.Params.FileName)
	log := &models.AuditLog{
		UserID:     optionalString(actorID),
		Action:     models.AuditActionIngestJobCreate,
		Resource:   "ingest_jobs",
		ResourceID: &job.ID,
		NewValues:  []byte(payload),
		IPAddress:  "system",
		UserAgent:  "ingest-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Sugar().Warnw("failed to write audit log", "action", log.Action, "error", err)
	}
}

// IngestWorker consumes queue tickets and runs the actual import. Each
// run re-reads the job row, streams records out of the drop file, and
// keeps the row's progress and counters current.
type IngestWorker struct {
	repo       ingestJobStore
	sources    sourceImporter
	storage    importStorage
	logger     *zap.Logger
	dropDir    string
	maxRetries int
}

// NewIngestWorker constructs a worker. dropDir is the subdirectory of the
// source store that operators copy batch files into.
func NewIngestWorker(repo ingestJobStore, sources sourceImporter, storage importStorage, dropDir string, maxRetries int, logger *zap.Logger) *IngestWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dropDir == "" {
		dropDir = importDropDir
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &IngestWorker{
		repo:       repo,
		sources:    sources,
		storage:    storage,
		logger:     logger,
		dropDir:    dropDir,
		maxRetries: maxRetries,
	}
}

// Handle processes one queue ticket.
func (w *IngestWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	running := models.IngestJobStatusRunning
	progress := 5
	now := time.Now().UTC()
	if err := w.repo.Update(ctx, job.ID, repository.UpdateIngestJobParams{
		Status:    &running,
		Progress:  &progress,
		StartedAt: &now,
	}); err != nil {
		return err
	}

	data, err := w.storage.Read(filepath.Join(w.dropDir, record.Params.FileName))
	if err != nil {
		return w.fail(ctx, job, fmt.Errorf("read drop file %s: %w", record.Params.FileName, err))
	}

	var imported, skipped int
	switch record.Type {
	case models.IngestJobTypeEmails:
		imported, skipped, err = w.importEmails(ctx, job.ID, data)
	case models.IngestJobTypeTranscripts:
		imported, skipped, err = w.importTranscripts(ctx, job.ID, data)
	default:
		err = fmt.Errorf("unknown import type %q", record.Type)
	}
	if err != nil {
		return w.fail(ctx, job, err)
	}

	completed := models.IngestJobStatusCompleted
	progress = 100
	finished := time.Now().UTC()
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateIngestJobParams{
		Status:       &completed,
		Progress:     &progress,
		Imported:     &imported,
		Skipped:      &skipped,
		ErrorMessage: &clear,
		FinishedAt:   &finished,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark import completed", "job_id", job.ID, "error", err)
		return err
	}
	w.logger.Sugar().Infow("import finished", "job_id", job.ID, "imported", imported, "skipped", skipped)
	return nil
}

func (w *IngestWorker) importEmails(ctx context.Context, jobID string, data []byte) (int, int, error) {
	var records []dto.ImportedEmail
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, 0, fmt.Errorf("parse email drop file: %w", err)
	}

	var imported, skipped int
	reporter := newProgressReporter(w.repo, jobID, len(records))
	for i, rec := range records {
		receivedAt, err := time.Parse(time.RFC3339, rec.ReceivedAt)
		if rec.MessageID == "" || rec.Sender == "" || err != nil {
			skipped++
			w.logger.Sugar().Warnw("skipping malformed email record", "job_id", jobID, "index", i)
			reporter.report(ctx, i+1, imported, skipped)
			continue
		}

		email := &models.Email{
			ID:         uuid.NewString(),
			MessageID:  rec.MessageID,
			Sender:     strings.ToLower(rec.Sender),
			SenderName: optionalString(rec.SenderName),
			Recipients: tagList(rec.Recipients),
			Subject:    rec.Subject,
			Snippet:    makeSnippet(rec.Body),
			ReceivedAt: receivedAt.UTC(),
		}
		var bodyPath string
		if rec.Body != "" {
			bodyPath = fmt.Sprintf("emails/%s.txt", email.ID)
			if _, err := w.storage.Save(bodyPath, []byte(rec.Body)); err != nil {
				return imported, skipped, fmt.Errorf("save email body: %w", err)
			}
			email.BodyPath = &bodyPath
		}

		inserted, err := w.sources.InsertEmail(ctx, email)
		if err != nil {
			return imported, skipped, err
		}
		if inserted {
			imported++
		} else {
			skipped++
			if bodyPath != "" {
				// The message id was already imported; drop the orphan body.
				if err := w.storage.Delete(bodyPath); err != nil {
					w.logger.Sugar().Warnw("failed to remove duplicate body", "job_id", jobID, "path", bodyPath, "error", err)
				}
			}
		}
		reporter.report(ctx, i+1, imported, skipped)
	}
	return imported, skipped, nil
}

func (w *IngestWorker) importTranscripts(ctx context.Context, jobID string, data []byte) (int, int, error) {
	var records []dto.ImportedTranscript
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, 0, fmt.Errorf("parse transcript drop file: %w", err)
	}

	var imported, skipped int
	reporter := newProgressReporter(w.repo, jobID, len(records))
	for i, rec := range records {
		meetingAt, err := time.Parse(time.RFC3339, rec.MeetingAt)
		if rec.Title == "" || err != nil {
			skipped++
			w.logger.Sugar().Warnw("skipping malformed transcript record", "job_id", jobID, "index", i)
			reporter.report(ctx, i+1, imported, skipped)
			continue
		}

		transcript := &models.Transcript{
			ID:           uuid.NewString(),
			Title:        rec.Title,
			Participants: tagList(rec.Participants),
			Snippet:      makeSnippet(rec.Body),
			MeetingAt:    meetingAt.UTC(),
		}
		if rec.Body != "" {
			bodyPath := fmt.Sprintf("transcripts/%s.txt", transcript.ID)
			if _, err := w.storage.Save(bodyPath, []byte(rec.Body)); err != nil {
				return imported, skipped, fmt.Errorf("save transcript body: %w", err)
			}
			transcript.BodyPath = &bodyPath
		}

		inserted, err := w.sources.InsertTranscript(ctx, transcript)
		if err != nil {
			return imported, skipped, err
		}
		if inserted {
			imported++
		} else {
			skipped++
		}
		reporter.report(ctx, i+1, imported, skipped)
	}
	return imported, skipped, nil
}

func (w *IngestWorker) fail(ctx context.Context, job jobs.Job, jobErr error) error {
	msg := jobErr.Error()
	if job.Attempt >= w.maxRetries {
		failed := models.IngestJobStatusFailed
		progress := 100
		now := time.Now().UTC()
		if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateIngestJobParams{
			Status:       &failed,
			Progress:     &progress,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		}); updateErr != nil {
			w.logger.Sugar().Warnw("failed to mark import failed", "job_id", job.ID, "error", updateErr)
		}
	} else {
		queued := models.IngestJobStatusQueued
		reset := 0
		if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateIngestJobParams{
			Status:       &queued,
			Progress:     &reset,
			ErrorMessage: &msg,
		}); updateErr != nil {
			w.logger.Sugar().Warnw("failed to reset import job", "job_id", job.ID, "error", updateErr)
		}
	}
	return jobErr
}

// progressReporter writes progress to the job row at 10 percent steps
// so status polls see movement without an update per record.
type progressReporter struct {
	repo     ingestJobStore
	jobID    string
	total    int
	reported int
}

func newProgressReporter(repo ingestJobStore, jobID string, total int) *progressReporter {
	return &progressReporter{repo: repo, jobID: jobID, total: total, reported: 5}
}

func (p *progressReporter) report(ctx context.Context, done, imported, skipped int) {
	if p.total == 0 {
		return
	}
	pct := 10 + done*85/p.total
	if pct < p.reported+10 {
		return
	}
	p.reported = pct
	// Progress is advisory; the final update still lands the counters.
	_ = p.repo.Update(ctx, p.jobID, repository.UpdateIngestJobParams{
		Progress: &pct,
		Imported: &imported,
		Skipped:  &skipped,
	})
}

// makeSnippet collapses whitespace and trims the body to a short
// preview for list views.
func makeSnippet(body string) string {
	joined := strings.Join(strings.Fields(body), " ")
	if utf8.RuneCountInString(joined) <= snippetLength {
		return joined
	}
	runes := []rune(joined)
	return string(runes[:snippetLength]) + "..."
}
