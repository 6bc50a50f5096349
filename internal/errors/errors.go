package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with additional context, keeping the code of a wrapped AppError
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   err,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WithCode adds an error code to an existing error
func WithCode(code string, err error) error {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: err.Error(),
		Cause:   err,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// GetCode returns the code of the outermost AppError, otherwise "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// Predefined error codes
const (
	CodeConfigInvalid      = "CONFIG_INVALID"
	CodeDatabaseError      = "DATABASE_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeTransport          = "TRANSPORT_ERROR"
	CodeOCR                = "OCR_ERROR"
	CodeTranscription      = "TRANSCRIPTION_ERROR"
	CodeNotImplemented     = "NOT_IMPLEMENTED"
	CodeAnalysisInProgress = "ANALYSIS_IN_PROGRESS"
	CodeStorage            = "STORAGE_ERROR"
	CodeCanceled           = "CANCELED"
)

// Common error constructors
func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func DatabaseError(message string) *AppError {
	return New(CodeDatabaseError, message)
}

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// TransportError marks a failed call to the judgment service
func TransportError(service string, cause error) *AppError {
	return &AppError{
		Code:    CodeTransport,
		Message: fmt.Sprintf("%s request failed", service),
		Cause:   cause,
	}
}

// StorageError marks a failed write to the analysis store
func StorageError(cause error) *AppError {
	return &AppError{
		Code:    CodeStorage,
		Message: "failed to store analysis",
		Cause:   cause,
	}
}

func AnalysisInProgress(key string) *AppError {
	return New(CodeAnalysisInProgress, fmt.Sprintf("analysis for %s already in progress", key))
}
