package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-ingest/pkg/checksum"
	"github.com/feichai0017/document-ingest/pkg/logger"
	"github.com/feichai0017/document-ingest/pkg/queue"
	"github.com/feichai0017/document-ingest/pkg/storage/local"
)

type fakeStatuses struct {
	mu    sync.Mutex
	saved []*queue.JobStatus
	err   error
}

func (f *fakeStatuses) SaveFinalStatus(_ context.Context, status *queue.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, status)
	return f.err
}

type fixture struct {
	worker   *DocumentWorker
	store    *local.LocalStorage
	statuses *fakeStatuses
	log      *logger.TestLogger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := local.NewLocalStorage(t.TempDir(), logger.NewNop())
	require.NoError(t, err)

	log := logger.NewTestLogger()
	statuses := &fakeStatuses{}
	w := newDocumentWorker("ocr", store, statuses, log)
	w.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	return &fixture{worker: w, store: store, statuses: statuses, log: log}
}

// minimalPDF is a one-page document with a classic xref table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

// stored writes a PDF for doc-1 and returns the matching job.
func (f *fixture) stored(t *testing.T, content []byte) queue.IngestJob {
	t.Helper()
	return f.storedAs(t, content, "application/pdf")
}

func (f *fixture) storedAs(t *testing.T, content []byte, mimeType string) queue.IngestJob {
	t.Helper()
	ctx := context.Background()

	loc, err := f.store.Allocate(ctx, "doc-1", "scan.pdf")
	require.NoError(t, err)
	_, err = f.store.Write(ctx, loc, bytes.NewReader(content))
	require.NoError(t, err)

	digest, err := checksum.Sum(bytes.NewReader(content))
	require.NoError(t, err)

	return queue.IngestJob{
		DocumentID:   "doc-1",
		StoragePath:  string(loc),
		Checksum:     digest.Checksum,
		MimeType:     mimeType,
		OriginalName: "scan.pdf",
		Size:         digest.Bytes,
	}
}

func task(t *testing.T, job queue.IngestJob) *asynq.Task {
	t.Helper()
	payload, err := queue.EncodeEnvelope(job, queue.EnqueueOptions{Attempts: 3, Backoff: 5 * time.Second})
	require.NoError(t, err)
	return asynq.NewTask(queue.TaskTypeOCRDocument, payload)
}

func TestHandleOCRDocument_Verified(t *testing.T) {
	f := newFixture(t)
	job := f.stored(t, minimalPDF())

	err := f.worker.handleOCRDocument(context.Background(), task(t, job))
	require.NoError(t, err)

	require.Len(t, f.statuses.saved, 1)
	status := f.statuses.saved[0]
	assert.Equal(t, "doc-1", status.DocumentID)
	assert.Equal(t, queue.JobCompleted, status.Status)
	assert.Equal(t, "ocr", status.Queue)
	assert.Equal(t, 2, status.MaxRetry)
	assert.Empty(t, status.Error)
	assert.Equal(t, 1, f.log.Count("Document verified for OCR"))
}

func TestHandleOCRDocument_IntegrityFailuresSkipRetry(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(job *queue.IngestJob)
	}{
		{"checksum mismatch", func(job *queue.IngestJob) { job.Checksum = "deadbeef" }},
		{"size mismatch", func(job *queue.IngestJob) { job.Size++ }},
		{"file missing", func(job *queue.IngestJob) { job.StoragePath += ".gone" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := f.stored(t, minimalPDF())
			tt.mutate(&job)

			err := f.worker.handleOCRDocument(context.Background(), task(t, job))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrIntegrity)
			assert.ErrorIs(t, err, asynq.SkipRetry)

			require.Len(t, f.statuses.saved, 1)
			assert.Equal(t, queue.JobFailed, f.statuses.saved[0].Status)
			assert.NotEmpty(t, f.statuses.saved[0].Error)
		})
	}
}

func TestHandleOCRDocument_CorruptPDF(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"bad header", []byte("%PDF-1.4 hello")},
		{"no trailer", []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")},
		{"truncated", minimalPDF()[:120]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			job := f.stored(t, tt.content)

			err := f.worker.handleOCRDocument(context.Background(), task(t, job))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrIntegrity)
			assert.ErrorIs(t, err, asynq.SkipRetry)

			require.Len(t, f.statuses.saved, 1)
			assert.Equal(t, queue.JobFailed, f.statuses.saved[0].Status)
			assert.Contains(t, f.statuses.saved[0].Error, "pdf")
		})
	}
}

func TestHandleOCRDocument_NonPDFSkipsPageCheck(t *testing.T) {
	f := newFixture(t)
	job := f.storedAs(t, []byte("%PDF-1.4 hello"), "image/png")

	err := f.worker.handleOCRDocument(context.Background(), task(t, job))
	require.NoError(t, err)
	require.Len(t, f.statuses.saved, 1)
	assert.Equal(t, queue.JobCompleted, f.statuses.saved[0].Status)
}

func TestHandleOCRDocument_UnreadablePayload(t *testing.T) {
	f := newFixture(t)

	err := f.worker.handleOCRDocument(context.Background(), asynq.NewTask(queue.TaskTypeOCRDocument, []byte("{")))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.Empty(t, f.statuses.saved)
}

func TestHandleOCRDocument_StatusSaveFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.statuses.err = errors.New("redis down")
	job := f.storedAs(t, []byte("content"), "application/octet-stream")

	err := f.worker.handleOCRDocument(context.Background(), task(t, job))
	require.NoError(t, err)
	assert.Equal(t, 1, f.log.Count("Failed to save job status"))
}

func TestRetryDelay_UsesEnvelopeBackoff(t *testing.T) {
	job := queue.IngestJob{DocumentID: "doc-1"}
	payload, err := queue.EncodeEnvelope(job, queue.EnqueueOptions{Attempts: 3, Backoff: 1500 * time.Millisecond})
	require.NoError(t, err)

	delay := RetryDelay(1, errors.New("boom"), asynq.NewTask(queue.TaskTypeOCRDocument, payload))
	assert.Equal(t, 1500*time.Millisecond, delay)

	delay = RetryDelay(1, errors.New("boom"), asynq.NewTask(queue.TaskTypeOCRDocument, []byte("x")))
	assert.Positive(t, delay)
}

func TestAsynqLogger(t *testing.T) {
	log := logger.NewTestLogger()
	l := asynqLogger{log: log}

	l.Info("worker ", "started")
	l.Warn("slow")

	assert.Equal(t, 1, log.Count("worker started"))
	assert.Equal(t, 1, log.Count("slow"))
}
