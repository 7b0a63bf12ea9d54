package documentrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver
	"github.com/jmoiron/sqlx"

	"github.com/feichai0017/document-ingest/internal/models"
)

const pkg = "documentRepo/"

const documentColumns = `id, status, original_name, mime_type, size, checksum,
	storage_path, error, ocr_queued_at, created_at, updated_at`

// Options controls the connection pool.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	}
}

// Connect opens a pgx-backed pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sqlx.DB, error) {
	op := pkg + "Connect"

	if databaseURL == "" {
		return nil, fmt.Errorf("%s: DATABASE_URL is empty", op)
	}

	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, opts.PingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return db, nil
}

type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (r *Postgres) Create(ctx context.Context, doc *models.Document) error {
	op := pkg + "Create"

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (id, status, original_name, mime_type, size, checksum,
			storage_path, error, ocr_queued_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		doc.ID, string(doc.Status), doc.OriginalName, doc.MimeType, doc.Size, doc.Checksum,
		doc.StoragePath, doc.Error, doc.OCRQueuedAt, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Update writes status and every non-nil field of u in one statement.
func (r *Postgres) Update(ctx context.Context, id string, u models.DocumentUpdate) (*models.Document, error) {
	op := pkg + "Update"

	doc := models.Document{}
	err := r.db.GetContext(ctx, &doc,
		`UPDATE documents SET
			status = $2,
			original_name = COALESCE($3, original_name),
			mime_type = COALESCE($4, mime_type),
			size = COALESCE($5, size),
			checksum = COALESCE($6, checksum),
			storage_path = COALESCE($7, storage_path),
			error = COALESCE($8, error),
			ocr_queued_at = COALESCE($9, ocr_queued_at),
			updated_at = now()
		WHERE id = $1
		RETURNING `+documentColumns,
		id, string(u.Status), u.OriginalName, u.MimeType, u.Size, u.Checksum,
		u.StoragePath, u.Error, u.OCRQueuedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &doc, nil
}

func (r *Postgres) Get(ctx context.Context, id string) (*models.Document, error) {
	op := pkg + "Get"

	doc := models.Document{}
	err := r.db.GetContext(ctx, &doc,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &doc, nil
}
