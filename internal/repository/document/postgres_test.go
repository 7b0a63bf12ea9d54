package documentrepo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/document-ingest/internal/models"
)

var columns = []string{
	"id", "status", "original_name", "mime_type", "size", "checksum",
	"storage_path", "error", "ocr_queued_at", "created_at", "updated_at",
}

func setup(t *testing.T) (sqlmock.Sqlmock, *Postgres) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return mock, NewPostgres(sqlx.NewDb(db, "pgx"))
}

func strPtr(s string) *string { return &s }

func TestPostgresCreate_Success(t *testing.T) {
	t.Parallel()
	mock, repo := setup(t)

	now := time.Now().UTC()
	doc := &models.Document{
		ID:        "doc-1",
		Status:    models.StatusUploading,
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO documents").
		WithArgs("doc-1", "UPLOADING", "", "", nil, "", "", "", nil, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), doc))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreate_InsertError(t *testing.T) {
	t.Parallel()
	mock, repo := setup(t)

	mock.ExpectExec("INSERT INTO documents").
		WillReturnError(errors.New("db failure"))

	err := repo.Create(context.Background(), &models.Document{ID: "doc-2", Status: models.StatusUploading})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "documentRepo/Create")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_WritesOnlyProvidedFields(t *testing.T) {
	t.Parallel()
	mock, repo := setup(t)

	size := int64(10)
	created := time.Now().UTC().Add(-time.Minute)
	updated := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE documents SET")).
		WithArgs("doc-1", "UPLOADED", "report.pdf", "application/pdf", size, "abc123", "/data/doc-1/doc-1.pdf", nil, nil).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"doc-1", "UPLOADED", "report.pdf", "application/pdf", size, "abc123",
			"/data/doc-1/doc-1.pdf", "", nil, created, updated,
		))

	doc, err := repo.Update(context.Background(), "doc-1", models.DocumentUpdate{
		Status:       models.StatusUploaded,
		OriginalName: strPtr("report.pdf"),
		MimeType:     strPtr("application/pdf"),
		Size:         &size,
		Checksum:     strPtr("abc123"),
		StoragePath:  strPtr("/data/doc-1/doc-1.pdf"),
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusUploaded, doc.Status)
	require.NotNil(t, doc.Size)
	assert.Equal(t, int64(10), *doc.Size)
	assert.Equal(t, "abc123", doc.Checksum)
	assert.Nil(t, doc.OCRQueuedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdate_NotFound(t *testing.T) {
	t.Parallel()
	mock, repo := setup(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE documents SET")).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.Update(context.Background(), "missing", models.DocumentUpdate{Status: models.StatusFailed})
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet(t *testing.T) {
	t.Parallel()
	mock, repo := setup(t)

	queued := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1")).
		WithArgs("doc-3").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			"doc-3", "OCR_QUEUED", "scan.png", "image/png", int64(42), "ff",
			"doc-3/doc-3.png", "", queued, queued, queued,
		))

	doc, err := repo.Get(context.Background(), "doc-3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOCRQueued, doc.Status)
	require.NotNil(t, doc.OCRQueuedAt)
	assert.True(t, queued.Equal(*doc.OCRQueuedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet_NotFound(t *testing.T) {
	t.Parallel()
	mock, repo := setup(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents WHERE id = $1")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := repo.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrDocumentNotFound)
	assert.Equal(t, models.KindNotFound, models.KindOf(err))
}

func TestMigrate_NilDatabase(t *testing.T) {
	assert.NoError(t, Migrate(context.Background(), nil))
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), "", DefaultOptions())
	assert.Error(t, err)
}
