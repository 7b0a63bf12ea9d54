package storage

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"
)

// Location identifies where a document's bytes live. Its format is backend
// specific: an absolute path for local storage, an object key otherwise.
type Location string

// Storage persists uploaded documents.
type Storage interface {
	// Allocate derives the location for documentID and prepares the medium.
	Allocate(ctx context.Context, documentID, originalName string) (Location, error)
	// Write streams r to loc. A failed write may leave a partial object
	// behind; removing it is the caller's job.
	Write(ctx context.Context, loc Location, r io.Reader) (int64, error)
	// Open returns the stored bytes.
	Open(ctx context.Context, loc Location) (io.ReadCloser, error)
	// Delete removes loc. Implementations log failures.
	Delete(ctx context.Context, loc Location) error
}

// ObjectName is the stored file name: the document id plus the client's
// extension. The client's base name is never used, so traversal sequences in
// it have no effect.
func ObjectName(documentID, originalName string) string {
	ext := SafeExt(originalName)
	return documentID + ext
}

// ObjectKey is the key used by object-store backends.
func ObjectKey(documentID, originalName string) string {
	return path.Join(documentID, ObjectName(documentID, originalName))
}

// SafeExt returns the extension of the base name of name, or "" when it
// contains anything but letters, digits, '-' or '_'.
func SafeExt(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	ext := filepath.Ext(path.Base(name))
	if len(ext) < 2 || len(ext) > 16 {
		return ""
	}
	for _, r := range ext[1:] {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return ""
		}
	}
	return ext
}
