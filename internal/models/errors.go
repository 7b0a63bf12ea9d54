package models

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound  = errors.New("document not found")
	ErrIllegalTransition = errors.New("illegal status transition")
)

// Kind classifies ingestion failures so the boundary can pick a status code.
type Kind string

const (
	KindUnsupportedMediaType Kind = "unsupported_media_type"
	KindMissingFile          Kind = "missing_file"
	KindMissingFilename      Kind = "missing_filename"
	KindTooManyFiles         Kind = "too_many_files"
	KindMalformedPayload     Kind = "malformed_payload"
	KindPayloadTooLarge      Kind = "payload_too_large"
	KindClientAborted        Kind = "client_aborted"
	KindStorageUnavailable   Kind = "storage_unavailable"
	KindStorageWriteFailed   Kind = "storage_write_failed"
	KindQueueUnavailable     Kind = "queue_unavailable"
	KindInvariantViolation   Kind = "invariant_violation"
	KindNotFound             Kind = "not_found"
	KindInternal             Kind = "internal"
)

// ClientFacing reports whether the message can be shown to the caller as is.
func (k Kind) ClientFacing() bool {
	switch k {
	case KindUnsupportedMediaType, KindMissingFile, KindMissingFilename,
		KindTooManyFiles, KindMalformedPayload, KindPayloadTooLarge,
		KindClientAborted, KindNotFound:
		return true
	}
	return false
}

// Error is a classified failure with optional structured details.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func NewError(kind Kind, message string, details map[string]any, err error) *Error {
	return &Error{Kind: kind, Message: message, Details: details, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, ErrDocumentNotFound) {
		return KindNotFound
	}
	return KindInternal
}

// AsError extracts the classified error, wrapping unknown errors as internal.
func AsError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, ErrDocumentNotFound) {
		return NewError(KindNotFound, "Document not found", nil, err)
	}
	return NewError(KindInternal, "Internal Server Error", nil, err)
}
