package document

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/feichai0017/document-ingest/internal/models"
	"github.com/feichai0017/document-ingest/internal/utils/validator"
	"github.com/feichai0017/document-ingest/pkg/logger"
	"github.com/feichai0017/document-ingest/pkg/queue"
	"github.com/feichai0017/document-ingest/pkg/storage"
)

type ServiceConfig struct {
	JobAttempts int
	JobBackoff  time.Duration
}

type DocumentService struct {
	lifecycle *Lifecycle
	repo      Repository
	receiver  Receiver
	storage   storage.Storage
	producer  queue.Producer
	jobs      queue.StatusReader
	logger    logger.Logger
	config    ServiceConfig
	now       func() time.Time
}

type Option func(*DocumentService)

// WithStatusReader enables JobStatus.
func WithStatusReader(r queue.StatusReader) Option {
	return func(s *DocumentService) {
		s.jobs = r
	}
}

// WithClock replaces time.Now for both the service and its lifecycle.
func WithClock(now func() time.Time) Option {
	return func(s *DocumentService) {
		s.now = now
		s.lifecycle.now = now
	}
}

// WithIDGenerator replaces the document id generator.
func WithIDGenerator(newID func() string) Option {
	return func(s *DocumentService) {
		s.lifecycle.newID = newID
	}
}

func NewService(
	repo Repository,
	receiver Receiver,
	store storage.Storage,
	producer queue.Producer,
	log logger.Logger,
	cfg ServiceConfig,
	opts ...Option,
) *DocumentService {
	s := &DocumentService{
		lifecycle: NewLifecycle(repo, log),
		repo:      repo,
		receiver:  receiver,
		storage:   store,
		producer:  producer,
		logger:    log,
		config:    cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest runs one upload end to end. On any failure after the document is
// created the stored file is removed and the document is marked FAILED
// before the original error is returned.
func (s *DocumentService) Ingest(ctx context.Context, contentType string, body io.Reader) (*IngestResult, error) {
	if _, err := validator.ValidateContentType(contentType); err != nil {
		logger.FromContext(ctx, s.logger).Warn("Rejected upload",
			logger.String("content_type", contentType),
			logger.Error(err),
		)
		return nil, err
	}

	doc, err := s.lifecycle.Create(ctx)
	if err != nil {
		logger.FromContext(ctx, s.logger).Error("Failed to create document", logger.Error(err))
		return nil, err
	}

	ctx = logger.WithDocumentID(ctx, doc.ID)
	in := &ingestion{
		svc: s,
		doc: doc,
		log: logger.FromContext(ctx, s.logger),
	}

	res, err := s.receiver.Receive(ctx, contentType, body, doc.ID, func(loc storage.Location) {
		in.location = loc
	})
	if err != nil {
		return nil, in.fail(ctx, err)
	}

	uploaded, err := s.lifecycle.MarkUploaded(ctx, in.doc, res)
	if err != nil {
		return nil, in.fail(ctx, err)
	}
	in.doc = uploaded

	job := queue.IngestJob{
		DocumentID:   uploaded.ID,
		StoragePath:  uploaded.StoragePath,
		Checksum:     res.Checksum,
		MimeType:     res.MimeType,
		OriginalName: res.OriginalName,
		Size:         res.Size,
	}
	ack, err := s.producer.Enqueue(ctx, job, queue.EnqueueOptions{
		Attempts: s.config.JobAttempts,
		Backoff:  s.config.JobBackoff,
	})
	if err != nil {
		return nil, in.fail(ctx, err)
	}

	queued, err := s.lifecycle.MarkQueued(ctx, in.doc, s.now())
	if err != nil {
		return nil, in.fail(ctx, err)
	}

	in.log.Info("Document queued for OCR",
		logger.String("job_id", ack.JobID),
		logger.String("queue", ack.Queue),
		logger.Int64("size", res.Size),
	)

	return &IngestResult{
		DocumentID:   queued.ID,
		Status:       queued.Status,
		Checksum:     res.Checksum,
		OriginalName: res.OriginalName,
		MimeType:     res.MimeType,
		Size:         res.Size,
	}, nil
}

func (s *DocumentService) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// JobStatus reports the OCR job of a queued document.
func (s *DocumentService) JobStatus(ctx context.Context, id string) (*queue.JobStatus, error) {
	if s.jobs == nil {
		return nil, ErrJobStatusUnsupported
	}

	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.Status != models.StatusOCRQueued {
		return nil, models.NewError(models.KindNotFound, fmt.Sprintf("Document %s has no OCR job", id), nil, nil)
	}

	return s.jobs.JobStatus(ctx, id)
}

// ingestion is the per-request state the failure path needs.
type ingestion struct {
	svc      *DocumentService
	doc      *models.Document
	location storage.Location
	log      logger.Logger
	once     sync.Once
}

// fail deletes the stored file if any and marks the document FAILED, once.
// The document keeps the client-facing message; the full cause only goes to
// the log since it may name storage paths.
// Cleanup runs on a context that is not cancelled with the request, so an
// aborted upload is still cleaned up. Cleanup errors are logged and the
// original error is returned.
func (in *ingestion) fail(ctx context.Context, cause error) error {
	in.once.Do(func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if in.location != "" {
			if err := in.svc.storage.Delete(cleanupCtx, in.location); err != nil {
				in.log.Warn("Failed to remove stored file",
					logger.String("location", string(in.location)),
					logger.Error(err),
				)
			}
		}

		if _, err := in.svc.lifecycle.MarkFailed(cleanupCtx, in.doc, models.AsError(cause).Message); err != nil {
			in.log.Error("Failed to mark document as failed", logger.Error(err))
		}

		kind := models.KindOf(cause)
		if kind.ClientFacing() {
			in.log.Warn("Upload rejected", logger.String("kind", string(kind)), logger.Error(cause))
		} else {
			in.log.Error("Upload failed", logger.String("kind", string(kind)), logger.Error(cause))
		}
	})
	return cause
}
