package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"time"

	"github.com/hibiken/asynq"
	"github.com/ledongthuc/pdf"

	"github.com/feichai0017/document-ingest/internal/models"
	"github.com/feichai0017/document-ingest/pkg/checksum"
	"github.com/feichai0017/document-ingest/pkg/logger"
	"github.com/feichai0017/document-ingest/pkg/queue"
	"github.com/feichai0017/document-ingest/pkg/storage"
)

// ErrIntegrity means the stored file no longer matches the queued job.
// Retrying cannot fix it.
var ErrIntegrity = errors.New("stored document failed integrity check")

// StatusSaver records the final state of a job.
type StatusSaver interface {
	SaveFinalStatus(ctx context.Context, status *queue.JobStatus) error
}

// DocumentWorker consumes OCR jobs. Before a document reaches the OCR
// engine its stored bytes are re-hashed and compared with the job.
type DocumentWorker struct {
	BaseWorker
	storage  storage.Storage
	statuses StatusSaver
	queue    string
	now      func() time.Time
}

func NewDocumentWorker(cfg Config, store storage.Storage, statuses StatusSaver, log logger.Logger) *DocumentWorker {
	w := newDocumentWorker(cfg.Queue, store, statuses, log)
	w.server = newServer(cfg, log)
	return w
}

func newDocumentWorker(queueName string, store storage.Storage, statuses StatusSaver, log logger.Logger) *DocumentWorker {
	w := &DocumentWorker{
		BaseWorker: BaseWorker{
			mux:    asynq.NewServeMux(),
			logger: log,
		},
		storage:  store,
		statuses: statuses,
		queue:    queueName,
		now:      time.Now,
	}
	w.registerHandlers()
	return w
}

func (w *DocumentWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeOCRDocument, w.handleOCRDocument)
}

func (w *DocumentWorker) handleOCRDocument(ctx context.Context, t *asynq.Task) error {
	env, err := queue.DecodeEnvelope(t.Payload())
	if err != nil {
		w.logger.Error("Dropping unreadable task",
			logger.String("payload", string(t.Payload())),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}

	ctx = logger.WithDocumentID(ctx, env.Job.DocumentID)
	log := logger.FromContext(ctx, w.logger)
	log.Info("Processing OCR job",
		logger.String("storage_path", env.Job.StoragePath),
		logger.Int64("size", env.Job.Size),
	)

	retried, _ := asynq.GetRetryCount(ctx)
	if err := w.verify(ctx, env.Job); err != nil {
		if errors.Is(err, ErrIntegrity) {
			log.Error("Stored document does not match job", logger.Error(err))
			w.saveStatus(ctx, env, queue.JobFailed, retried, err)
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		if retried >= env.Attempts-1 {
			w.saveStatus(ctx, env, queue.JobFailed, retried, err)
		}
		return err
	}

	log.Info("Document verified for OCR", logger.Int("retried", retried))
	w.saveStatus(ctx, env, queue.JobCompleted, retried, nil)
	return nil
}

// verify re-hashes the stored file and compares size and checksum.
func (w *DocumentWorker) verify(ctx context.Context, job queue.IngestJob) error {
	rc, err := w.storage.Open(ctx, storage.Location(job.StoragePath))
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			return fmt.Errorf("%w: %w", ErrIntegrity, err)
		}
		return fmt.Errorf("failed to open stored document: %w", err)
	}
	defer rc.Close()

	digest, err := checksum.Sum(rc)
	if err != nil {
		return err
	}
	if digest.Bytes != job.Size {
		return fmt.Errorf("%w: size %d, expected %d", ErrIntegrity, digest.Bytes, job.Size)
	}
	if digest.Checksum != job.Checksum {
		return fmt.Errorf("%w: checksum %s, expected %s", ErrIntegrity, digest.Checksum, job.Checksum)
	}

	if mediaType, _, _ := mime.ParseMediaType(job.MimeType); mediaType == "application/pdf" {
		return w.checkPDF(ctx, job)
	}
	return nil
}

// checkPDF makes sure a PDF parses and has at least one page.
func (w *DocumentWorker) checkPDF(ctx context.Context, job queue.IngestJob) error {
	rc, err := w.storage.Open(ctx, storage.Location(job.StoragePath))
	if err != nil {
		return fmt.Errorf("failed to reopen stored document: %w", err)
	}
	defer rc.Close()

	ra, ok := rc.(io.ReaderAt)
	if !ok {
		tmp, err := os.CreateTemp("", "ocr-*.pdf")
		if err != nil {
			return fmt.Errorf("failed to create temp file: %w", err)
		}
		defer func() {
			tmp.Close()
			os.Remove(tmp.Name())
		}()
		if _, err := io.Copy(tmp, rc); err != nil {
			return fmt.Errorf("failed to spool stored document: %w", err)
		}
		ra = tmp
	}

	pages, err := countPages(ra, job.Size)
	if err != nil {
		return fmt.Errorf("%w: unreadable pdf: %v", ErrIntegrity, err)
	}
	if pages <= 0 {
		return fmt.Errorf("%w: pdf has no pages", ErrIntegrity)
	}
	return nil
}

// countPages recovers from parser panics on malformed input.
func countPages(ra io.ReaderAt, size int64) (pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return 0, err
	}
	return r.NumPage(), nil
}

func (w *DocumentWorker) saveStatus(ctx context.Context, env queue.Envelope, state string, retried int, cause error) {
	status := &queue.JobStatus{
		DocumentID: env.Job.DocumentID,
		Status:     state,
		Queue:      w.queue,
		Retried:    retried,
		MaxRetry:   env.Attempts - 1,
		UpdatedAt:  w.now().UTC(),
	}
	if cause != nil {
		status.Error = cause.Error()
	}

	if err := w.statuses.SaveFinalStatus(context.WithoutCancel(ctx), status); err != nil {
		logger.FromContext(ctx, w.logger).Warn("Failed to save job status", logger.Error(err))
	}
}
