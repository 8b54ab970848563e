package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents the kind of failure.
type ErrorType string

// Playback kinds. Every fallible core operation reports one of these.
const (
	ErrorTypeDemux         ErrorType = "DEMUX_ERROR"
	ErrorTypeDecode        ErrorType = "DECODE_ERROR"
	ErrorTypeBuffer        ErrorType = "BUFFER_ERROR"
	ErrorTypeSubtitle      ErrorType = "SUBTITLE_ERROR"
	ErrorTypeInvalidFormat ErrorType = "INVALID_FORMAT"
	ErrorTypeIO            ErrorType = "IO_ERROR"
	ErrorTypeInternal      ErrorType = "INTERNAL_ERROR"
	ErrorTypeInvalidState  ErrorType = "INVALID_STATE"
)

// Host-facing kinds used by the HTTP surface.
const (
	ErrorTypeValidation  ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound    ErrorType = "NOT_FOUND"
	ErrorTypeRateLimit   ErrorType = "RATE_LIMIT"
	ErrorTypeServiceDown ErrorType = "SERVICE_DOWN"
)

// AppError represents an error with its kind and additional context.
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Err        error                  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCode adds an error code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// New creates a new AppError.
func New(errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an existing error.
func Wrap(err error, errType ErrorType, message string, httpStatus int) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// StatusFor maps a kind to the HTTP status the host reports for it.
func StatusFor(t ErrorType) int {
	switch t {
	case ErrorTypeValidation:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeInvalidState, ErrorTypeBuffer:
		return http.StatusConflict
	case ErrorTypeInvalidFormat:
		return http.StatusUnsupportedMediaType
	case ErrorTypeDemux, ErrorTypeDecode, ErrorTypeSubtitle:
		return http.StatusUnprocessableEntity
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeServiceDown:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newf(t ErrorType, format string, args ...interface{}) *AppError {
	return New(t, fmt.Sprintf(format, args...), StatusFor(t))
}

// NewDemuxError creates a demuxer error.
func NewDemuxError(format string, args ...interface{}) *AppError {
	return newf(ErrorTypeDemux, format, args...)
}

// NewDecodeError creates a decoder error.
func NewDecodeError(format string, args ...interface{}) *AppError {
	return newf(ErrorTypeDecode, format, args...)
}

// NewBufferError creates a frame buffer error.
func NewBufferError(format string, args ...interface{}) *AppError {
	return newf(ErrorTypeBuffer, format, args...)
}

// NewSubtitleError creates a subtitle parse error.
func NewSubtitleError(format string, args ...interface{}) *AppError {
	return newf(ErrorTypeSubtitle, format, args...)
}

// NewInvalidFormatError creates an unrecognized or malformed container error.
func NewInvalidFormatError(format string, args ...interface{}) *AppError {
	return newf(ErrorTypeInvalidFormat, format, args...)
}

// NewIOError wraps an I/O failure.
func NewIOError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeIO, message, StatusFor(ErrorTypeIO))
}

// NewInternalError creates an invariant-violation error.
func NewInternalError(format string, args ...interface{}) *AppError {
	return newf(ErrorTypeInternal, format, args...)
}

// WrapInternalError wraps an error as internal error.
func WrapInternalError(err error, message string) *AppError {
	return Wrap(err, ErrorTypeInternal, message, http.StatusInternalServerError)
}

// NewInvalidStateError reports a rejected state transition.
func NewInvalidStateError(format string, args ...interface{}) *AppError {
	return newf(ErrorTypeInvalidState, format, args...)
}

// NewValidationError creates a validation error.
func NewValidationError(message string) *AppError {
	return New(ErrorTypeValidation, message, http.StatusBadRequest)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(resource string) *AppError {
	return New(ErrorTypeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string) *AppError {
	return New(ErrorTypeRateLimit, message, http.StatusTooManyRequests)
}

// NewServiceDownError creates a service down error.
func NewServiceDownError(service string) *AppError {
	return New(ErrorTypeServiceDown, fmt.Sprintf("%s service is currently unavailable", service), http.StatusServiceUnavailable)
}

// IsAppError checks if an error is, or wraps, an AppError.
func IsAppError(err error) bool {
	_, ok := GetAppError(err)
	return ok
}

// GetAppError extracts the outermost AppError from an error chain.
func GetAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err, or any error it wraps, is an AppError of kind t.
func IsType(err error, t ErrorType) bool {
	for err != nil {
		var appErr *AppError
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Type == t {
			return true
		}
		err = appErr.Err
	}
	return false
}
