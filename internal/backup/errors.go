package backup

import (
	"errors"
	"fmt"
)

// EngineError represents errors raised by the backup/restore engine
type EngineError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause error
func (e *EngineError) Unwrap() error {
	return e.Cause
}

// ErrorKind classifies engine errors by their propagation policy
type ErrorKind string

const (
	// ErrConflict: a run already occupies the job slot; rejected without side effects
	ErrConflict ErrorKind = "CONFLICT"
	// ErrPrecondition: differential/incremental requested without the required watermark
	ErrPrecondition ErrorKind = "PRECONDITION"
	// ErrExtraction: table-scoped snapshot failure, recovered locally
	ErrExtraction ErrorKind = "EXTRACTION"
	// ErrArtifact: generator failure; fatal only for the statement log
	ErrArtifact ErrorKind = "ARTIFACT"
	// ErrExecution: external dump/restore process exited non-zero or timed out
	ErrExecution ErrorKind = "EXECUTION"
	// ErrNotification: outbound dispatch failure, always recovered
	ErrNotification ErrorKind = "NOTIFICATION"
	// ErrPersistence: failure writing history or markers
	ErrPersistence ErrorKind = "PERSISTENCE"
	// ErrNotFound: a named artifact does not exist
	ErrNotFound ErrorKind = "NOT_FOUND"
)

// NewEngineError creates a new EngineError
func NewEngineError(kind ErrorKind, message string, cause error) *EngineError {
	return &EngineError{Kind: kind, Message: message, Cause: cause}
}

// Common error constructors

func NewConflictError(message string, cause error) *EngineError {
	return NewEngineError(ErrConflict, message, cause)
}

func NewPreconditionError(message string, cause error) *EngineError {
	return NewEngineError(ErrPrecondition, message, cause)
}

func NewExtractionError(message string, cause error) *EngineError {
	return NewEngineError(ErrExtraction, message, cause)
}

func NewArtifactError(message string, cause error) *EngineError {
	return NewEngineError(ErrArtifact, message, cause)
}

func NewExecutionError(message string, cause error) *EngineError {
	return NewEngineError(ErrExecution, message, cause)
}

func NewNotificationError(message string, cause error) *EngineError {
	return NewEngineError(ErrNotification, message, cause)
}

func NewPersistenceError(message string, cause error) *EngineError {
	return NewEngineError(ErrPersistence, message, cause)
}

func NewNotFoundError(message string, cause error) *EngineError {
	return NewEngineError(ErrNotFound, message, cause)
}

// KindOf returns the engine error kind of err, or "" for foreign errors
func KindOf(err error) ErrorKind {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	return ""
}

// IsConflict reports whether err is a single-flight rejection
func IsConflict(err error) bool {
	return KindOf(err) == ErrConflict
}

// IsNotFound reports whether err is a missing-artifact error
func IsNotFound(err error) bool {
	return KindOf(err) == ErrNotFound
}
