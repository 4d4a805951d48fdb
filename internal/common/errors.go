package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error kinds. Store-side first, then provider-side.
var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrSchema             = errors.New("schema error")
	ErrWrite              = errors.New("write error")
	ErrRead               = errors.New("read error")

	ErrSubmission         = errors.New("submission error")
	ErrPoll               = errors.New("poll error")
	ErrRecognitionFailed  = errors.New("recognition failed")
	ErrRecognitionTimeout = errors.New("recognition timed out")

	ErrInvalidInput = errors.New("invalid input")
)

// Codes used in AppError.Code, one per error kind.
const (
	CodeStorageUnavailable = "STORAGE_UNAVAILABLE"
	CodeSchema             = "SCHEMA_ERROR"
	CodeWrite              = "WRITE_ERROR"
	CodeRead               = "READ_ERROR"
	CodeSubmission         = "SUBMISSION_ERROR"
	CodePoll               = "POLL_ERROR"
	CodeRecognitionFailed  = "RECOGNITION_FAILED"
	CodeRecognitionTimeout = "RECOGNITION_TIMEOUT"
	CodeConfig             = "CONFIG_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
)

// NewAppError builds an AppError. kind is joined with cause so that
// errors.Is matches both the kind sentinel and whatever cause carries.
func NewAppError(code, message string, kind, cause error) *AppError {
	switch {
	case kind == nil:
	case cause == nil:
		cause = kind
	default:
		cause = errors.Join(kind, cause)
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode returns the Code of the first AppError in err's chain, or "".
func ErrorCode(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}
