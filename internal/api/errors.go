package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/practitioner-booking/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

var statusByCode = map[apperr.Code]int{
	apperr.CodeValidation:        http.StatusUnprocessableEntity,
	apperr.CodeNotFound:          http.StatusNotFound,
	apperr.CodeConflict:          http.StatusConflict,
	apperr.CodeInvalidTransition: http.StatusConflict,
	apperr.CodeUnauthorized:      http.StatusForbidden,
	apperr.CodeExpired:           http.StatusUnauthorized,
}

func errorDetails(err error) string {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// writeAppError maps the error taxonomy onto HTTP. Anything outside it is
// logged and reported as an opaque 500.
func writeAppError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	if code := apperr.CodeOf(err); code != "" {
		writeError(w, statusByCode[code], string(code), errorDetails(err))
		return
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusServiceUnavailable, "timeout", "request abandoned before it could be served")
		return
	}

	logger.Error().
		Err(err).
		Str("request_id", GetRequestID(r.Context())).
		Str("path", r.URL.Path).
		Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
