package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/sagarc03/satchel"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes a JSON error response based on the error kind.
// Used by the API endpoints; downloads render pages via writeDownloadError.
func HandleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, satchel.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "Not found")
	case errors.Is(err, satchel.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_input", "Invalid input")
	case errors.Is(err, satchel.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "Forbidden")
	default:
		slog.Error("request error", "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

// writeDownloadError maps a failed download to its response.
//
//	ErrArchiveDisabled, ErrQuotaExceeded      409 localized page
//	ErrArchiveOpenFailed, ErrStorageReadFailed 404 page (archive not produced)
//	ErrNotFound                                404 page naming the path
//	ErrForbidden                               403, no body
//	ErrInvalidInput                            400 JSON
func writeDownloadError(w http.ResponseWriter, r *http.Request, req satchel.Request, err error) {
	requested := path.Join("/", req.Dir, req.Files)

	switch {
	case errors.Is(err, satchel.ErrArchiveDisabled), errors.Is(err, satchel.ErrQuotaExceeded):
		slog.Info("archive download rejected", "dir", req.Dir, "files", req.Files, "err", err)
		writeConflict(w, r, err)
	case errors.Is(err, satchel.ErrArchiveOpenFailed), errors.Is(err, satchel.ErrStorageReadFailed):
		slog.Error("archive build failed", "dir", req.Dir, "files", req.Files, "err", err)
		writeNotFound(w, r, requested, msgArchiveFailedDetail)
	case errors.Is(err, satchel.ErrNotFound):
		writeNotFound(w, r, requested, msgNotFoundDetail)
	case errors.Is(err, satchel.ErrForbidden):
		w.WriteHeader(http.StatusForbidden)
	case errors.Is(err, satchel.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_input", err.Error())
	default:
		HandleError(w, err)
	}
}
