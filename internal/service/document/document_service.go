package document

import (
	"context"
	"errors"
	"io"

	"github.com/feichai0017/document-ingest/internal/models"
	"github.com/feichai0017/document-ingest/internal/upload"
	"github.com/feichai0017/document-ingest/pkg/queue"
	"github.com/feichai0017/document-ingest/pkg/storage"
)

// ErrJobStatusUnsupported is returned when the queue backend cannot report
// job state.
var ErrJobStatusUnsupported = errors.New("job status is not supported by the queue backend")

// DocumentProcessor is what the HTTP layer needs from the service.
type DocumentProcessor interface {
	Ingest(ctx context.Context, contentType string, body io.Reader) (*IngestResult, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	JobStatus(ctx context.Context, id string) (*queue.JobStatus, error)
}

// Repository persists documents. Each call is atomic.
type Repository interface {
	Create(ctx context.Context, doc *models.Document) error
	Update(ctx context.Context, id string, u models.DocumentUpdate) (*models.Document, error)
	Get(ctx context.Context, id string) (*models.Document, error)
}

// Receiver turns a multipart body into one stored file.
type Receiver interface {
	Receive(ctx context.Context, contentType string, body io.Reader, documentID string, onAllocate func(storage.Location)) (*upload.Result, error)
}

// IngestResult is returned to the client on success.
type IngestResult struct {
	DocumentID   string        `json:"documentId"`
	Status       models.Status `json:"status"`
	Checksum     string        `json:"checksum"`
	OriginalName string        `json:"originalName"`
	MimeType     string        `json:"mimeType"`
	Size         int64         `json:"size"`
}
