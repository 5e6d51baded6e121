package model

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNotFound = errors.New("resource not found")

type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindTransport  ErrorKind = "transport"
	KindConflict   ErrorKind = "conflict"
	KindNotFound   ErrorKind = "not_found"
	KindUnknown    ErrorKind = "unknown"
)

// ValidationError reports a draft that fails required-field checks.
type ValidationError struct {
	ItemID  ItemID
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var s strings.Builder
	s.WriteString("validation failed")
	if e.ItemID != "" {
		s.WriteString(" for item ")
		s.WriteString(string(e.ItemID))
	}
	if e.Field != "" {
		s.WriteString(": ")
		s.WriteString(e.Field)
	}
	if e.Message != "" {
		s.WriteString(" ")
		s.WriteString(e.Message)
	}
	return s.String()
}

// TransportError wraps a failed or timed out backend call. It is retryable.
type TransportError struct {
	Op  string
	Key ResourceKey
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Retryable() bool {
	return true
}

type Remedy string

const (
	RemedyResetToLatest  Remedy = "reset-to-latest"
	RemedyForceOverwrite Remedy = "force-overwrite"
)

// ConflictError means a save result no longer matches the session's baseline
// lineage, or the backend changed under a dirty draft.
type ConflictError struct {
	Key      ResourceKey `json:"key"`
	Remedies []Remedy    `json:"remedies"`
}

func NewConflictError(key ResourceKey) *ConflictError {
	return &ConflictError{
		Key:      key,
		Remedies: []Remedy{RemedyResetToLatest, RemedyForceOverwrite},
	}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting change on %s: reset to latest or overwrite", e.Key)
}

func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var validationErr *ValidationError
	var transportErr *TransportError
	var conflictErr *ConflictError

	switch {
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &conflictErr):
		return KindConflict
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.As(err, &transportErr):
		return KindTransport
	default:
		return KindUnknown
	}
}
