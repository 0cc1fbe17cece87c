package handler

// Response helpers shared by every endpoint. All errors leave the API in
// one shape:
//
//	{"error": "invalid_credentials", "message": "invalid credentials"}
//
// so the SPA parses failures the same way whether they came back as a 400,
// 401, or 500.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/influmatch/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
// Field is set for validation and duplicate errors so the frontend can
// highlight the offending input.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Offending field, when known
}

// writeJSON sends a JSON response with the given status code. The status
// must go out before the body: once Encode writes, headers are committed.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers already went out; logging is all that's left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError translates a domain error into an HTTP response. The service
// layer speaks apperror sentinels and never sees status codes; this is the
// only place the two vocabularies meet.
//
// errors.Is/As walk the whole wrap chain, so services are free to annotate
// repository errors with context and the sentinel still matches.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError

	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest // 400
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrDuplicate):
			status = http.StatusBadRequest // 400
			errorType = "duplicate"
		case errors.Is(err, apperror.ErrInvalidCreds):
			status = http.StatusBadRequest // 400 — matches the login contract
			errorType = "invalid_credentials"
		case errors.Is(err, apperror.ErrUnauthenticated):
			status = http.StatusUnauthorized // 401
			errorType = "unauthenticated"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound // 404
			errorType = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict // 409
			errorType = "conflict"
		case errors.Is(err, apperror.ErrProvider):
			status = http.StatusBadGateway // 502
			errorType = "provider_error"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// Unknown error — return a generic 500.
	// NEVER expose internal error details to the client: the raw message
	// might contain SQL queries, provider payloads, or file paths.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
