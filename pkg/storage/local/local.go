package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/feichai0017/document-ingest/internal/models"
	"github.com/feichai0017/document-ingest/pkg/logger"
	"github.com/feichai0017/document-ingest/pkg/storage"
)

// LocalStorage keeps every document in its own directory under root:
// <root>/<documentID>/<documentID><ext>.
type LocalStorage struct {
	root   string
	logger logger.Logger
}

func NewLocalStorage(root string, log logger.Logger) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, models.NewError(models.KindStorageUnavailable, "Document storage is unavailable", nil, err)
	}
	return &LocalStorage{root: abs, logger: log}, nil
}

// Root returns the absolute storage root.
func (s *LocalStorage) Root() string {
	return s.root
}

// Allocate implements storage.Storage.
func (s *LocalStorage) Allocate(ctx context.Context, documentID, originalName string) (storage.Location, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if documentID == "" || strings.ContainsAny(documentID, `/\`) || documentID == "." || documentID == ".." {
		return "", models.NewError(models.KindInvariantViolation, fmt.Sprintf("invalid document id %q", documentID), nil, nil)
	}

	dir := filepath.Join(s.root, documentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.logger.Error("Failed to create document directory",
			logger.String("dir", dir),
			logger.Error(err),
		)
		return "", models.NewError(models.KindStorageUnavailable, "Document storage is unavailable", nil, err)
	}

	return storage.Location(filepath.Join(dir, storage.ObjectName(documentID, originalName))), nil
}

// Write implements storage.Storage.
func (s *LocalStorage) Write(ctx context.Context, loc storage.Location, r io.Reader) (int64, error) {
	path, err := s.resolve(loc)
	if err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, models.NewError(models.KindStorageWriteFailed, "Failed to store uploaded file", nil, err)
	}

	written, copyErr := io.Copy(f, r)
	if copyErr == nil {
		copyErr = f.Sync()
	}
	closeErr := f.Close()

	if copyErr != nil {
		return written, models.NewError(models.KindStorageWriteFailed, "Failed to store uploaded file", nil, copyErr)
	}
	if closeErr != nil {
		return written, models.NewError(models.KindStorageWriteFailed, "Failed to store uploaded file", nil, closeErr)
	}

	return written, nil
}

// Open implements storage.Storage.
func (s *LocalStorage) Open(ctx context.Context, loc storage.Location) (io.ReadCloser, error) {
	path, err := s.resolve(loc)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to open %s: %w", path, models.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}

// Delete removes the file and its per-document directory. A missing file is
// not an error.
func (s *LocalStorage) Delete(_ context.Context, loc storage.Location) error {
	path, err := s.resolve(loc)
	if err != nil {
		s.logger.Warn("Refusing to delete location outside storage root",
			logger.String("location", string(loc)),
		)
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Failed to delete stored file",
			logger.String("path", path),
			logger.Error(err),
		)
		return fmt.Errorf("failed to delete file: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != s.root {
		if err := os.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to delete document directory",
				logger.String("dir", dir),
				logger.Error(err),
			)
			return fmt.Errorf("failed to delete directory: %w", err)
		}
	}

	return nil
}

func (s *LocalStorage) resolve(loc storage.Location) (string, error) {
	clean := filepath.Clean(string(loc))
	rel, err := filepath.Rel(s.root, clean)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", models.NewError(models.KindInvariantViolation, fmt.Sprintf("location %q is outside the storage root", loc), nil, err)
	}
	return clean, nil
}
