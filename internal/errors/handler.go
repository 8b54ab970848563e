package errors

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/zsiec/playcore/internal/logger"
)

// ErrorResponse is the JSON body of every failed API call.
type ErrorResponse struct {
	Error     ErrorDetails `json:"error"`
	TraceID   string       `json:"trace_id,omitempty"`
	SessionID string       `json:"session_id,omitempty"`
}

// ErrorDetails carries the error kind and message.
type ErrorDetails struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ErrorHandler maps errors to HTTP responses and logs them on the
// request-scoped entry when one is present.
type ErrorHandler struct {
	logger *logrus.Logger
}

func NewErrorHandler(log *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{logger: log}
}

// levelFor picks the log level of a failed request. Bad media and bad
// calls are the client's problem; only host failures log at error.
func levelFor(t ErrorType) logrus.Level {
	switch t {
	case ErrorTypeInternal, ErrorTypeIO, ErrorTypeServiceDown:
		return logrus.ErrorLevel
	case ErrorTypeDemux, ErrorTypeDecode, ErrorTypeSubtitle,
		ErrorTypeInvalidFormat, ErrorTypeInvalidState, ErrorTypeBuffer:
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}

// HandleError writes err as an ErrorResponse. Errors that are not an
// AppError are reported as INTERNAL_ERROR without their text.
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := GetAppError(err)
	if !ok {
		appErr = WrapInternalError(err, "An unexpected error occurred")
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = StatusFor(appErr.Type)
	}

	logger.EntryFrom(r.Context(), h.logger).WithFields(logrus.Fields{
		"error_type": appErr.Type,
		"error_code": appErr.Code,
		"status":     status,
	}).Log(levelFor(appErr.Type), appErr.Error())

	h.writeJSON(w, status, ErrorResponse{
		Error: ErrorDetails{
			Type:    appErr.Type,
			Message: appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		},
		TraceID:   r.Header.Get(logger.RequestIDHeader),
		SessionID: logger.GetSessionID(r.Context()),
	})
}

func (h *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, NewNotFoundError("endpoint"))
}

func (h *ErrorHandler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.HandleError(w, r, New(ErrorTypeValidation, "Method not allowed", http.StatusMethodNotAllowed))
}

// HandlePanic logs a recovered panic and answers 500.
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	logger.EntryFrom(r.Context(), h.logger).
		WithField("panic", recovered).
		Error("Panic recovered in HTTP handler")
	h.HandleError(w, r, NewInternalError("An unexpected error occurred"))
}

func (h *ErrorHandler) writeJSON(w http.ResponseWriter, status int, body ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.WithError(err).Error("Failed to encode error response")
	}
}

// Middleware turns handler panics into 500 responses.
func (h *ErrorHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				h.HandlePanic(w, r, recovered)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
