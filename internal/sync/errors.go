package sync

import (
	"errors"
	"fmt"
)

const classifiedErrorTemplateConstant = "%s: %v"

// Kind names a failure category of the pipeline.
type Kind string

// Failure categories surfaced to the operator.
const (
	KindUsage             Kind = "UsageError"
	KindEnvironment       Kind = "EnvironmentError"
	KindInvalidFilter     Kind = "InvalidFilter"
	KindConfigConflict    Kind = "ConfigConflict"
	KindSourceUnavailable Kind = "SourceUnavailable"
	KindWorkerCorrupt     Kind = "WorkerCorrupt"
	KindRewriteFailure    Kind = "RewriteFailure"
	KindPushFailure       Kind = "PushFailure"
)

// ClassifiedError pairs a failure category with its cause.
type ClassifiedError struct {
	ErrorKind Kind
	Cause     error
}

// Error renders the category alongside the cause.
func (classified ClassifiedError) Error() string {
	return fmt.Sprintf(classifiedErrorTemplateConstant, classified.ErrorKind, classified.Cause)
}

// Unwrap exposes the underlying cause.
func (classified ClassifiedError) Unwrap() error {
	return classified.Cause
}

// NewClassifiedError wraps a cause with a failure category.
func NewClassifiedError(errorKind Kind, cause error) ClassifiedError {
	return ClassifiedError{ErrorKind: errorKind, Cause: cause}
}

// KindOf extracts the failure category from an error chain.
func KindOf(candidateError error) (Kind, bool) {
	classified := ClassifiedError{}
	if errors.As(candidateError, &classified) {
		return classified.ErrorKind, true
	}
	return Kind(""), false
}
