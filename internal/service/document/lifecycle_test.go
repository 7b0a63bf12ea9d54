package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-ingest/internal/models"
	documentrepo "github.com/feichai0017/document-ingest/internal/repository/document"
	"github.com/feichai0017/document-ingest/internal/upload"
	"github.com/feichai0017/document-ingest/pkg/logger"
)

// countingRepo counts Update calls on top of the in-memory repository.
type countingRepo struct {
	*documentrepo.Memory
	updates int
}

func (r *countingRepo) Update(ctx context.Context, id string, u models.DocumentUpdate) (*models.Document, error) {
	r.updates++
	return r.Memory.Update(ctx, id, u)
}

func newLifecycle() (*Lifecycle, *countingRepo) {
	repo := &countingRepo{Memory: documentrepo.NewMemory()}
	l := NewLifecycle(repo, logger.NewNop())
	l.newID = func() string { return "doc-1" }
	return l, repo
}

var uploaded = &upload.Result{
	OriginalName: "report.pdf",
	MimeType:     "application/pdf",
	Size:         10,
	Checksum:     "abc",
	Location:     "doc-1/doc-1.pdf",
}

func TestLifecycle_HappyPath(t *testing.T) {
	l, repo := newLifecycle()
	ctx := context.Background()

	doc, err := l.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, models.StatusUploading, doc.Status)
	assert.False(t, doc.HasDigest())

	doc, err = l.MarkUploaded(ctx, doc, uploaded)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUploaded, doc.Status)
	assert.Equal(t, "doc-1/doc-1.pdf", doc.StoragePath)
	require.True(t, doc.HasDigest())
	assert.Equal(t, int64(10), *doc.Size)

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	doc, err = l.MarkQueued(ctx, doc, at)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOCRQueued, doc.Status)
	require.NotNil(t, doc.OCRQueuedAt)
	assert.True(t, at.Equal(*doc.OCRQueuedAt))

	stored, err := repo.Get(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOCRQueued, stored.Status)
	assert.Equal(t, "abc", stored.Checksum)
}

func TestLifecycle_RejectsIllegalTransitions(t *testing.T) {
	l, repo := newLifecycle()
	ctx := context.Background()

	doc, err := l.Create(ctx)
	require.NoError(t, err)

	_, err = l.MarkQueued(ctx, doc, time.Now())
	assert.ErrorIs(t, err, models.ErrIllegalTransition)

	doc, err = l.MarkUploaded(ctx, doc, uploaded)
	require.NoError(t, err)

	_, err = l.MarkUploaded(ctx, doc, uploaded)
	assert.Equal(t, models.KindInvariantViolation, models.KindOf(err))

	doc, err = l.MarkQueued(ctx, doc, time.Now())
	require.NoError(t, err)

	_, err = l.MarkFailed(ctx, doc, "too late")
	assert.ErrorIs(t, err, models.ErrIllegalTransition)

	assert.Equal(t, 2, repo.updates)
}

func TestLifecycle_MarkFailedKeepsDigest(t *testing.T) {
	l, _ := newLifecycle()
	ctx := context.Background()

	doc, err := l.Create(ctx)
	require.NoError(t, err)
	doc, err = l.MarkUploaded(ctx, doc, uploaded)
	require.NoError(t, err)

	doc, err = l.MarkFailed(ctx, doc, "queue down")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.Equal(t, "queue down", doc.Error)
	require.True(t, doc.HasDigest())
	assert.Equal(t, "abc", doc.Checksum)
}

func TestLifecycle_MarkFailedIsIdempotent(t *testing.T) {
	l, repo := newLifecycle()
	ctx := context.Background()

	doc, err := l.Create(ctx)
	require.NoError(t, err)

	failed, err := l.MarkFailed(ctx, doc, "first")
	require.NoError(t, err)

	again, err := l.MarkFailed(ctx, failed, "second")
	require.NoError(t, err)
	assert.Equal(t, "first", again.Error)
	assert.Equal(t, 1, repo.updates)
}
