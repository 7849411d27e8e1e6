package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/lens/internal/apperr"
)

// Error codes returned in the error envelope.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeValidation     = "VALIDATION_ERROR"
	CodePathNotFound   = "PATH_NOT_FOUND"
	CodeSyncInProgress = "SYNC_IN_PROGRESS"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeInternal       = "INTERNAL_ERROR"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errDetail struct {
	Code    string `json:"code" example:"NOT_FOUND" validate:"required"`
	Message string `json:"message" example:"project not found" validate:"required"`
}

type errResponse struct {
	Error errDetail `json:"error" validate:"required"`
}

func errorBody(code, msg string) errResponse {
	return errResponse{Error: errDetail{Code: code, Message: msg}}
}

// writeError maps a service error onto its status and error code. Unknown
// errors are logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, code := http.StatusInternalServerError, CodeInternal
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status, code = http.StatusNotFound, CodeNotFound
	case errors.Is(err, apperr.ErrSyncInProgress):
		status, code = http.StatusConflict, CodeSyncInProgress
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrAlreadyExists):
		status, code = http.StatusConflict, CodeConflict
	case errors.Is(err, apperr.ErrPathNotFound):
		status, code = http.StatusBadRequest, CodePathNotFound
	case errors.Is(err, apperr.ErrValidation):
		status, code = http.StatusUnprocessableEntity, CodeValidation
	}
	if status == http.StatusInternalServerError {
		slog.Error(op+" failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeJSON(w, status, errorBody(code, "internal error"))
		return
	}
	writeJSON(w, status, errorBody(code, err.Error()))
}
