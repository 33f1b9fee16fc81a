package request

import (
	"log/slog"
	"net/http"
)

// NotFoundHandler returns a handler that returns a 404 response.
func NotFoundHandler(l *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		Error(l, w, http.StatusNotFound, ErrNotFound.Error())
	}
}

// MethodNotAllowedHandler returns a handler that returns a 405 response.
func MethodNotAllowedHandler(l *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		Error(l, w, http.StatusMethodNotAllowed, ErrMethodNotAllowed.Error())
	}
}
