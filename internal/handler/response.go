package handler

// Every endpoint funnels its output through the two helpers below, so the
// whole API speaks one dialect: successes are plain JSON bodies, failures
// are always
//
//	{"error": "conflict", "message": "email is already registered"}
//
// with a machine-readable type and a human-readable message. Clients never
// have to guess the shape of an error.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/memberhub/internal/apperror"
)

// ErrorResponse is the one error shape the API ever returns.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CountResponse wraps the aggregate member-count endpoints.
type CountResponse struct {
	Count int `json:"count"`
}

// writeJSON sets the content type, sends the status line, then encodes the
// body. That ordering is load-bearing: the first byte written to the body
// flushes the headers, and anything set afterwards is silently dropped.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Too late to change the response; all we can do is log.
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError translates a service-layer error into an HTTP response. The
// services speak in apperror sentinels and know nothing about status codes;
// this is the single place where ErrNotFound becomes 404, ErrConflict
// becomes 409, and so on. errors.Is walks the wrap chain, so a sentinel
// buried under fmt.Errorf("...: %w", err) layers still matches.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, errorType := http.StatusInternalServerError, "internal_error"
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status, errorType = http.StatusBadRequest, "validation_error"
		case errors.Is(err, apperror.ErrUnauthorized):
			status, errorType = http.StatusUnauthorized, "unauthorized"
		case errors.Is(err, apperror.ErrForbidden):
			status, errorType = http.StatusForbidden, "forbidden"
		case errors.Is(err, apperror.ErrNotFound):
			status, errorType = http.StatusNotFound, "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status, errorType = http.StatusConflict, "conflict"
		}

		writeJSON(w, status, ErrorResponse{Error: errorType, Message: appErr.Message})
		return
	}

	// Anything we don't recognise is a 500 with a deliberately bland
	// message. Raw error strings can leak SQL, file paths, or provider
	// URLs to the client.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
