package models

import (
	"time"
)

// DefaultMimeType is used when the client does not declare a content type.
const DefaultMimeType = "application/octet-stream"

// Document tracks one uploaded file from the first byte to the OCR hand-off.
type Document struct {
	ID           string     `json:"id" db:"id"`
	Status       Status     `json:"status" db:"status"`
	OriginalName string     `json:"originalName,omitempty" db:"original_name"`
	MimeType     string     `json:"mimeType,omitempty" db:"mime_type"`
	Size         *int64     `json:"size,omitempty" db:"size"`
	Checksum     string     `json:"checksum,omitempty" db:"checksum"`
	StoragePath  string     `json:"-" db:"storage_path"`
	Error        string     `json:"error,omitempty" db:"error"`
	OCRQueuedAt  *time.Time `json:"ocrQueuedAt,omitempty" db:"ocr_queued_at"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time  `json:"updatedAt" db:"updated_at"`
}

// HasDigest reports whether size and checksum were recorded.
func (d *Document) HasDigest() bool {
	return d.Size != nil && d.Checksum != ""
}

// Clone returns a deep copy so callers can't mutate shared state.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	if d.Size != nil {
		size := *d.Size
		c.Size = &size
	}
	if d.OCRQueuedAt != nil {
		at := *d.OCRQueuedAt
		c.OCRQueuedAt = &at
	}
	return &c
}

// DocumentUpdate is a partial update. Nil fields are left untouched by the
// repository; Status is always written.
type DocumentUpdate struct {
	Status       Status
	OriginalName *string
	MimeType     *string
	Size         *int64
	Checksum     *string
	StoragePath  *string
	Error        *string
	OCRQueuedAt  *time.Time
}

// Apply merges the update into a copy of d.
func (u DocumentUpdate) Apply(d *Document) *Document {
	out := d.Clone()
	out.Status = u.Status
	if u.OriginalName != nil {
		out.OriginalName = *u.OriginalName
	}
	if u.MimeType != nil {
		out.MimeType = *u.MimeType
	}
	if u.Size != nil {
		size := *u.Size
		out.Size = &size
	}
	if u.Checksum != nil {
		out.Checksum = *u.Checksum
	}
	if u.StoragePath != nil {
		out.StoragePath = *u.StoragePath
	}
	if u.Error != nil {
		out.Error = *u.Error
	}
	if u.OCRQueuedAt != nil {
		at := *u.OCRQueuedAt
		out.OCRQueuedAt = &at
	}
	return out
}
