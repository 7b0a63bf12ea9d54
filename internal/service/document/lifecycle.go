package document

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/document-ingest/internal/models"
	"github.com/feichai0017/document-ingest/internal/upload"
	"github.com/feichai0017/document-ingest/pkg/logger"
)

// Lifecycle owns document state transitions. Every method validates the
// move against the document it is given and persists it through the
// repository; the caller keeps the returned document.
type Lifecycle struct {
	repo   Repository
	now    func() time.Time
	newID  func() string
	logger logger.Logger
}

func NewLifecycle(repo Repository, log logger.Logger) *Lifecycle {
	return &Lifecycle{
		repo:   repo,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: log,
	}
}

// Create stores a new document in UPLOADING.
func (l *Lifecycle) Create(ctx context.Context) (*models.Document, error) {
	now := l.now().UTC()
	doc := &models.Document{
		ID:        l.newID(),
		Status:    models.StatusUploading,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := l.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	logger.FromContext(ctx, l.logger).Info("Document created",
		logger.String("document_id", doc.ID),
		logger.String("status", string(doc.Status)),
	)
	return doc, nil
}

// MarkUploaded records the stored file: UPLOADING -> UPLOADED.
func (l *Lifecycle) MarkUploaded(ctx context.Context, doc *models.Document, res *upload.Result) (*models.Document, error) {
	if err := models.CheckTransition(doc.Status, models.StatusUploaded); err != nil {
		return nil, err
	}
	if doc.HasDigest() {
		return nil, models.NewError(models.KindInvariantViolation, "size and checksum are already recorded", nil, nil)
	}

	size := res.Size
	path := string(res.Location)
	return l.apply(ctx, doc, models.DocumentUpdate{
		Status:       models.StatusUploaded,
		OriginalName: &res.OriginalName,
		MimeType:     &res.MimeType,
		Size:         &size,
		Checksum:     &res.Checksum,
		StoragePath:  &path,
	})
}

// MarkQueued records the hand-off: UPLOADED -> OCR_QUEUED.
func (l *Lifecycle) MarkQueued(ctx context.Context, doc *models.Document, at time.Time) (*models.Document, error) {
	if err := models.CheckTransition(doc.Status, models.StatusOCRQueued); err != nil {
		return nil, err
	}

	at = at.UTC()
	return l.apply(ctx, doc, models.DocumentUpdate{
		Status:      models.StatusOCRQueued,
		OCRQueuedAt: &at,
	})
}

// MarkFailed moves any non-terminal document to FAILED. A document that is
// already FAILED is returned unchanged.
func (l *Lifecycle) MarkFailed(ctx context.Context, doc *models.Document, message string) (*models.Document, error) {
	if doc.Status == models.StatusFailed {
		return doc, nil
	}
	if err := models.CheckTransition(doc.Status, models.StatusFailed); err != nil {
		return nil, err
	}

	return l.apply(ctx, doc, models.DocumentUpdate{
		Status: models.StatusFailed,
		Error:  &message,
	})
}

func (l *Lifecycle) apply(ctx context.Context, doc *models.Document, u models.DocumentUpdate) (*models.Document, error) {
	updated, err := l.repo.Update(ctx, doc.ID, u)
	if err != nil {
		return nil, fmt.Errorf("failed to move document %s to %s: %w", doc.ID, u.Status, err)
	}

	logger.FromContext(ctx, l.logger).Info("Document status changed",
		logger.String("from", string(doc.Status)),
		logger.String("to", string(updated.Status)),
	)
	return updated, nil
}
