package request

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Jacobbrewer1/kennel/pkg/logging"
)

var (
	// ErrInternalServer is the message returned for unexpected failures.
	ErrInternalServer = errors.New("internal server error")

	// ErrNotFound is the message returned for unknown routes.
	ErrNotFound = errors.New("not found")

	// ErrMethodNotAllowed is the message returned for unsupported methods.
	ErrMethodNotAllowed = errors.New("method not allowed")

	// ErrTooManyRequests is the message returned when a client is rate limited.
	ErrTooManyRequests = errors.New("too many requests")
)

// FieldError describes why a field of a request body was rejected.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorMessage is the body of every error response.
type ErrorMessage struct {
	Error string `json:"error"`

	// Details is set when the request body failed validation.
	Details []FieldError `json:"details,omitempty"`
}

// NewErrorMessage creates an ErrorMessage.
func NewErrorMessage(message string, details ...FieldError) *ErrorMessage {
	return &ErrorMessage{
		Error:   message,
		Details: details,
	}
}

// Encode writes v as the JSON body of a response with the given status.
func Encode(l *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		l.Error("Error encoding response", slog.String(logging.KeyError, err.Error()))
	}
}

// Error writes an ErrorMessage response.
func Error(l *slog.Logger, w http.ResponseWriter, status int, message string, details ...FieldError) {
	Encode(l, w, status, NewErrorMessage(message, details...))
}
