package models

import "errors"

// AnalysisErrorKind classifies an analysis failure for the UI.
type AnalysisErrorKind string

const (
	ErrKindInvalidFileType    AnalysisErrorKind = "invalid-file-type"
	ErrKindFileTooLarge       AnalysisErrorKind = "file-too-large"
	ErrKindMissingCredentials AnalysisErrorKind = "missing-credentials"
	ErrKindInvalidCredentials AnalysisErrorKind = "invalid-credentials"
	ErrKindQuotaExceeded      AnalysisErrorKind = "quota-exceeded"
	ErrKindFileRead           AnalysisErrorKind = "file-read-failure"
	ErrKindMalformedResponse  AnalysisErrorKind = "malformed-response"
	ErrKindGeneric            AnalysisErrorKind = "generic-failure"
)

// AnalysisError carries the failure class plus a human-readable message
// suitable for direct display. Validation kinds are raised before any
// network activity; the rest only during an in-flight analysis.
type AnalysisError struct {
	Kind    AnalysisErrorKind
	Message string
	cause   error
}

func NewAnalysisError(kind AnalysisErrorKind, message string) *AnalysisError {
	return &AnalysisError{Kind: kind, Message: message}
}

func WrapAnalysisError(kind AnalysisErrorKind, message string, cause error) *AnalysisError {
	return &AnalysisError{Kind: kind, Message: message, cause: cause}
}

func (e *AnalysisError) Error() string {
	return e.Message
}

func (e *AnalysisError) Unwrap() error {
	return e.cause
}

// AnalysisKindOf extracts the failure class, defaulting to the generic kind.
func AnalysisKindOf(err error) AnalysisErrorKind {
	var ae *AnalysisError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ErrKindGeneric
}
