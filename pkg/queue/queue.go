// pkg/queue/queue.go
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/feichai0017/document-ingest/internal/models"
)

// TaskTypeOCRDocument is the task type consumed by the OCR worker.
const TaskTypeOCRDocument = "ocr:document"

// IngestJob references a stored document. It is immutable once built.
type IngestJob struct {
	DocumentID   string `json:"documentId"`
	StoragePath  string `json:"storagePath"`
	Checksum     string `json:"checksum"`
	MimeType     string `json:"mimeType"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
}

// EnqueueOptions is passed through to the broker. Attempts counts the first
// delivery; Backoff is the fixed delay between attempts.
type EnqueueOptions struct {
	Attempts int
	Backoff  time.Duration
}

func (o EnqueueOptions) validate() error {
	if o.Attempts < 1 {
		return models.NewError(models.KindInvariantViolation, fmt.Sprintf("job attempts must be at least 1, got %d", o.Attempts), nil, nil)
	}
	if o.Backoff < 0 {
		return models.NewError(models.KindInvariantViolation, fmt.Sprintf("job backoff must not be negative, got %s", o.Backoff), nil, nil)
	}
	return nil
}

// Ack means the broker durably accepted the job.
type Ack struct {
	JobID string
	Queue string
	// Duplicate is set when a job for the same document was already queued.
	Duplicate bool
}

// Producer hands jobs to a broker with at-least-once semantics.
type Producer interface {
	Enqueue(ctx context.Context, job IngestJob, opts EnqueueOptions) (*Ack, error)
	Close() error
}

// Envelope is the message body on every backend. Retry settings travel with
// the job so the consumer can apply the same backoff.
type Envelope struct {
	Job            IngestJob `json:"job"`
	Attempts       int       `json:"attempts"`
	BackoffDelayMs int64     `json:"backoffDelayMs"`
}

// Backoff is the delay between attempts.
func (e Envelope) Backoff() time.Duration {
	return time.Duration(e.BackoffDelayMs) * time.Millisecond
}

func EncodeEnvelope(job IngestJob, opts EnqueueOptions) ([]byte, error) {
	if job.DocumentID == "" {
		return nil, models.NewError(models.KindInvariantViolation, "job has no document id", nil, nil)
	}
	payload, err := json.Marshal(Envelope{
		Job:            job,
		Attempts:       opts.Attempts,
		BackoffDelayMs: opts.Backoff.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}
	return payload, nil
}

func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if env.Job.DocumentID == "" {
		return Envelope{}, errors.New("job has no document id")
	}
	return env, nil
}

func unavailable(err error) error {
	return models.NewError(models.KindQueueUnavailable, "Failed to enqueue OCR job", nil, err)
}
