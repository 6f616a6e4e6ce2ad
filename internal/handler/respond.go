// Package handler exposes the engine's operations over HTTP.
package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"cred/pkg/errors"
	"cred/pkg/logger"
)

// statusForError maps the error taxonomy onto HTTP status codes.
// Enforcement denials are 403: the caller is authenticated but the
// transfer is not allowed to proceed.
func statusForError(err error) int {
	switch {
	case errors.Is(err, errors.ErrRecordNotFound),
		errors.Is(err, errors.ErrSubjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, errors.ErrValidation),
		errors.Is(err, errors.ErrReasonRequired):
		return http.StatusBadRequest
	case errors.Is(err, errors.ErrInvalidTransition),
		errors.Is(err, errors.ErrAlreadyFinalized):
		return http.StatusConflict
	case errors.Is(err, errors.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, errors.ErrNotVerified),
		errors.Is(err, errors.ErrExpired),
		errors.Is(err, errors.ErrBlacklisted),
		errors.Is(err, errors.ErrNotWhitelisted),
		errors.Is(err, errors.ErrDailyLimitExceeded),
		errors.Is(err, errors.ErrMonthlyLimitExceeded),
		errors.Is(err, errors.ErrTotalLimitExceeded),
		errors.Is(err, errors.ErrTransactionBlocked):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(log logger.Logger, w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error("Failed to encode JSON response", map[string]interface{}{
			"error":  err.Error(),
			"status": status,
		})
	}
}

func respondError(log logger.Logger, w http.ResponseWriter, err error) {
	status := statusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the logs.
		log.Error("request failed", map[string]interface{}{"error": message})
		message = "internal server error"
	}
	respondJSON(log, w, status, map[string]string{"error": message})
}

// decodeRequest parses a JSON request body with a size cap and strict
// field checking.
func decodeRequest(w http.ResponseWriter, r *http.Request, req interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(req); err != nil {
		if err == io.EOF {
			return errors.Wrap(errors.ErrValidation, "request body is required")
		}
		return errors.Wrap(errors.ErrValidation, err.Error())
	}
	return nil
}
