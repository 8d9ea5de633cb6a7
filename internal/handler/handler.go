// Package handler provides the HTTP handlers of the token API. Handlers
// decode requests, call the service layer and render DRF-style JSON bodies:
// field error maps for validation failures and {"detail": ...} otherwise.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tokenapi/tokenapi/internal/middleware"
	"github.com/tokenapi/tokenapi/internal/service"
)

const (
	msgNotFound         = "Not found."
	msgMethodNotAllowed = "Method \"%s\" not allowed."
	msgServerError      = "A server error occurred."
)

// NotFound handles unmatched routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeDetail(w, http.StatusNotFound, msgNotFound)
}

// MethodNotAllowed handles known routes requested with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeDetailf(w, http.StatusMethodNotAllowed, msgMethodNotAllowed, r.Method)
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeDetail writes {"detail": msg}.
func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

func writeDetailf(w http.ResponseWriter, status int, format string, args ...any) {
	writeDetail(w, status, fmt.Sprintf(format, args...))
}

// writeError maps service errors to responses. Unexpected errors are logged
// with the request ID and rendered as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var verr service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, verr)
	case errors.Is(err, service.ErrNotFound):
		writeDetail(w, http.StatusNotFound, msgNotFound)
	default:
		logger.Error("request failed",
			slog.String("error", err.Error()),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("request_id", middleware.GetRequestID(r.Context())),
		)
		writeDetail(w, http.StatusInternalServerError, msgServerError)
	}
}
