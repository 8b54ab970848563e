package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError(t *testing.T) {
	t.Run("New creates error correctly", func(t *testing.T) {
		err := New(ErrorTypeValidation, "Invalid input", http.StatusBadRequest)

		assert.Equal(t, ErrorTypeValidation, err.Type)
		assert.Equal(t, "Invalid input", err.Message)
		assert.Equal(t, http.StatusBadRequest, err.HTTPStatus)
		assert.Equal(t, "VALIDATION_ERROR: Invalid input", err.Error())
	})

	t.Run("Wrap wraps error correctly", func(t *testing.T) {
		originalErr := errors.New("original error")
		err := Wrap(originalErr, ErrorTypeInternal, "Something went wrong", http.StatusInternalServerError)

		assert.Equal(t, ErrorTypeInternal, err.Type)
		assert.Equal(t, "Something went wrong", err.Message)
		assert.Equal(t, originalErr, err.Unwrap())
		assert.Contains(t, err.Error(), "original error")
	})

	t.Run("WithDetails adds details", func(t *testing.T) {
		err := NewDemuxError("bad box")
		details := map[string]interface{}{"offset": 128}
		_ = err.WithDetails(details)

		assert.Equal(t, details, err.Details)
	})

	t.Run("WithCode adds code", func(t *testing.T) {
		err := NewDecodeError("bad payload").WithCode("E_PAYLOAD")
		assert.Equal(t, "E_PAYLOAD", err.Code)
	})
}

func TestMediaErrorMessages(t *testing.T) {
	assert.Equal(t, "DEMUX_ERROR: empty data provided", NewDemuxError("empty data provided").Error())
	assert.Equal(t, "INVALID_FORMAT: data too short: 3 bytes", NewInvalidFormatError("data too short: %d bytes", 3).Error())
	assert.Equal(t, "INVALID_STATE: cannot play from Idle", NewInvalidStateError("cannot play from %s", "Idle").Error())
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		fn         func() *AppError
		wantType   ErrorType
		wantStatus int
	}{
		{"NewDemuxError", func() *AppError { return NewDemuxError("x") }, ErrorTypeDemux, http.StatusUnprocessableEntity},
		{"NewDecodeError", func() *AppError { return NewDecodeError("x") }, ErrorTypeDecode, http.StatusUnprocessableEntity},
		{"NewBufferError", func() *AppError { return NewBufferError("x") }, ErrorTypeBuffer, http.StatusConflict},
		{"NewSubtitleError", func() *AppError { return NewSubtitleError("x") }, ErrorTypeSubtitle, http.StatusUnprocessableEntity},
		{"NewInvalidFormatError", func() *AppError { return NewInvalidFormatError("x") }, ErrorTypeInvalidFormat, http.StatusUnsupportedMediaType},
		{"NewIOError", func() *AppError { return NewIOError(errors.New("eof"), "read failed") }, ErrorTypeIO, http.StatusInternalServerError},
		{"NewInternalError", func() *AppError { return NewInternalError("x") }, ErrorTypeInternal, http.StatusInternalServerError},
		{"NewInvalidStateError", func() *AppError { return NewInvalidStateError("x") }, ErrorTypeInvalidState, http.StatusConflict},
		{"NewValidationError", func() *AppError { return NewValidationError("x") }, ErrorTypeValidation, http.StatusBadRequest},
		{"NewNotFoundError", func() *AppError { return NewNotFoundError("session") }, ErrorTypeNotFound, http.StatusNotFound},
		{"NewRateLimitError", func() *AppError { return NewRateLimitError("x") }, ErrorTypeRateLimit, http.StatusTooManyRequests},
		{"NewServiceDownError", func() *AppError { return NewServiceDownError("Redis") }, ErrorTypeServiceDown, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fn()
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.wantStatus, err.HTTPStatus)
			assert.NotEmpty(t, err.Message)
		})
	}
}

func TestIsType(t *testing.T) {
	t.Run("direct match", func(t *testing.T) {
		assert.True(t, IsType(NewDemuxError("x"), ErrorTypeDemux))
		assert.False(t, IsType(NewDemuxError("x"), ErrorTypeDecode))
	})

	t.Run("through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("loading: %w", NewInvalidFormatError("too short"))
		assert.True(t, IsType(err, ErrorTypeInvalidFormat))
	})

	t.Run("nested app errors", func(t *testing.T) {
		inner := NewSubtitleError("bad cue")
		outer := Wrap(inner, ErrorTypeInternal, "load failed", http.StatusInternalServerError)
		assert.True(t, IsType(outer, ErrorTypeInternal))
		assert.True(t, IsType(outer, ErrorTypeSubtitle))
		assert.False(t, IsType(outer, ErrorTypeDemux))
	})

	t.Run("plain errors", func(t *testing.T) {
		assert.False(t, IsType(errors.New("boom"), ErrorTypeInternal))
		assert.False(t, IsType(nil, ErrorTypeInternal))
	})
}

func TestIsAppError(t *testing.T) {
	t.Run("returns true for AppError", func(t *testing.T) {
		assert.True(t, IsAppError(NewValidationError("test")))
	})

	t.Run("returns true for wrapped AppError", func(t *testing.T) {
		assert.True(t, IsAppError(fmt.Errorf("ctx: %w", NewDecodeError("x"))))
	})

	t.Run("returns false for standard error", func(t *testing.T) {
		assert.False(t, IsAppError(errors.New("standard error")))
	})
}

func TestGetAppError(t *testing.T) {
	t.Run("extracts AppError successfully", func(t *testing.T) {
		originalErr := NewValidationError("test")
		appErr, ok := GetAppError(originalErr)

		assert.True(t, ok)
		assert.Equal(t, originalErr, appErr)
	})

	t.Run("returns false for non-AppError", func(t *testing.T) {
		appErr, ok := GetAppError(errors.New("standard error"))

		assert.False(t, ok)
		assert.Nil(t, appErr)
	})
}

func TestWrapInternalError(t *testing.T) {
	originalErr := errors.New("redis connection failed")
	wrappedErr := WrapInternalError(originalErr, "Failed to save position")

	assert.Equal(t, ErrorTypeInternal, wrappedErr.Type)
	assert.Equal(t, "Failed to save position", wrappedErr.Message)
	assert.Equal(t, http.StatusInternalServerError, wrappedErr.HTTPStatus)
	assert.Equal(t, originalErr, wrappedErr.Unwrap())
}
