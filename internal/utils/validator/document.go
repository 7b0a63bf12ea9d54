// internal/utils/validator/document.go
package validator

import (
	"mime"
	"path"
	"strings"

	"github.com/feichai0017/document-ingest/internal/models"
)

// ValidateContentType checks that contentType is multipart/form-data and
// returns its boundary.
func ValidateContentType(contentType string) (string, error) {
	if contentType == "" {
		return "", models.NewError(models.KindUnsupportedMediaType, "Content-Type must be multipart/form-data", nil, nil)
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", models.NewError(models.KindUnsupportedMediaType, "Content-Type must be multipart/form-data", nil, err)
	}
	if mediaType != "multipart/form-data" {
		return "", models.NewError(models.KindUnsupportedMediaType, "Content-Type must be multipart/form-data", nil, nil)
	}

	boundary := params["boundary"]
	if boundary == "" {
		return "", models.NewError(models.KindMalformedPayload, "Multipart boundary is missing", nil, nil)
	}

	return boundary, nil
}

// SanitizeFilename reduces a client-supplied filename to its base name.
// Both separators are honoured so Windows paths lose their directories too.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))

	switch name {
	case ".", "..", "/":
		return ""
	}
	return name
}

// MimeType returns the declared type, or the generic octet-stream type when
// the part did not declare one.
func MimeType(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return models.DefaultMimeType
	}
	return declared
}
