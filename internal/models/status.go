package models

import "fmt"

// Status is the lifecycle state of a Document.
type Status string

const (
	StatusUploading Status = "UPLOADING"
	StatusUploaded  Status = "UPLOADED"
	StatusOCRQueued Status = "OCR_QUEUED"
	StatusFailed    Status = "FAILED"
)

// transitions lists the legal predecessor states of every state.
var transitions = map[Status][]Status{
	StatusUploaded:  {StatusUploading},
	StatusOCRQueued: {StatusUploaded},
	StatusFailed:    {StatusUploading, StatusUploaded},
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusUploading, StatusUploaded, StatusOCRQueued, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
	return s == StatusOCRQueued || s == StatusFailed
}

// CanTransitionTo reports whether s -> next is a legal move.
func (s Status) CanTransitionTo(next Status) bool {
	for _, from := range transitions[next] {
		if from == s {
			return true
		}
	}
	return false
}

// CheckTransition returns an invariant violation for illegal moves.
func CheckTransition(from, to Status) error {
	if !from.Valid() || !to.Valid() {
		return NewError(KindInvariantViolation, fmt.Sprintf("unknown document status %q -> %q", from, to), nil, nil)
	}
	if !from.CanTransitionTo(to) {
		return NewError(KindInvariantViolation,
			fmt.Sprintf("illegal document transition %s -> %s", from, to),
			nil, ErrIllegalTransition)
	}
	return nil
}
