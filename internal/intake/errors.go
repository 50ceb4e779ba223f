package intake

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies intake failures.
type Kind string

const (
	KindInvalidFileType      Kind = "InvalidFileType"
	KindMissingRequiredField Kind = "MissingRequiredField"
	KindNoFileProvided       Kind = "NoFileProvided"
	KindInvalidField         Kind = "InvalidField"
	KindFileTooLarge         Kind = "FileTooLarge"
	KindStorageFailure       Kind = "StorageFailure"
)

// Error is returned by Service.Submit for every rejected or failed upload.
type Error struct {
	Kind    Kind
	Message string
	// Missing names the required fields that were absent, in year, semester, subject order.
	Missing []string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if len(e.Missing) > 0 {
		msg += " (missing: " + strings.Join(e.Missing, ", ") + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// StatusCode maps the error kind onto an HTTP status.
func (e *Error) StatusCode() int {
	switch e.Kind {
	case KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindStorageFailure:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// KindOf reports the Kind of err when it wraps an *Error.
func KindOf(err error) (Kind, bool) {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return "", false
}

const (
	msgInvalidFileType = "Only PDF files are allowed"
	msgMissingFields   = "Missing required parameters: year, semester, and subject are required"
	msgNoFile          = "No PDF file uploaded"
	msgStorageFailure  = "Failed to store uploaded file"
)

func invalidFileType(contentType string) *Error {
	return &Error{Kind: KindInvalidFileType, Message: msgInvalidFileType, Cause: fmt.Errorf("got content type %q", contentType)}
}

func missingFields(missing []string) *Error {
	return &Error{Kind: KindMissingRequiredField, Message: msgMissingFields, Missing: missing}
}

func noFile() *Error {
	return &Error{Kind: KindNoFileProvided, Message: msgNoFile}
}

func invalidField(name, reason string) *Error {
	return &Error{Kind: KindInvalidField, Message: fmt.Sprintf("Invalid value for %s: %s", name, reason)}
}

func fileTooLarge(size, limit int64) *Error {
	return &Error{Kind: KindFileTooLarge, Message: fmt.Sprintf("File is too large: %d bytes exceeds the %d byte limit", size, limit)}
}

func storageFailure(cause error) *Error {
	return &Error{Kind: KindStorageFailure, Message: msgStorageFailure, Cause: cause}
}
