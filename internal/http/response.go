package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"sixjars/internal/core"
	"sixjars/internal/log"
	"sixjars/internal/services"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// classify maps a service error onto an HTTP status and a stable code.
func classify(err error) (int, string) {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, core.ErrInvalidAmount):
		return http.StatusUnprocessableEntity, "invalid_amount"
	case errors.Is(err, core.ErrUnknownJar):
		return http.StatusUnprocessableEntity, "unknown_jar"
	case errors.Is(err, core.ErrSameJarTransfer):
		return http.StatusUnprocessableEntity, "same_jar_transfer"
	case errors.Is(err, core.ErrInvalidBudget):
		return http.StatusUnprocessableEntity, "invalid_budget"
	case errors.Is(err, core.ErrInvalidGoal):
		return http.StatusUnprocessableEntity, "invalid_goal"
	case errors.Is(err, core.ErrInvalidWindow):
		return http.StatusUnprocessableEntity, "invalid_window"
	case errors.Is(err, core.ErrInvalidTxType):
		return http.StatusUnprocessableEntity, "invalid_type"
	case core.IsClassificationError(err):
		return http.StatusUnprocessableEntity, "classification_rejected"
	case errors.Is(err, core.ErrEmptyUser):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, services.ErrClassifierUnavailable):
		return http.StatusServiceUnavailable, "classifier_unavailable"
	case core.IsStorageError(err), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "storage_unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

// writeError logs err and writes the JSON error body. Internal details are
// not exposed for 5xx responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	logger := log.FromContext(r.Context())
	msg := err.Error()
	if status >= 500 {
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err.Error(), "code", code)
		msg = http.StatusText(status)
	} else {
		logger.DebugContext(r.Context(), "Request rejected", log.FieldError, err.Error(), "code", code)
	}
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}
