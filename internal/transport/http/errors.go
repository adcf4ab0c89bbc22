package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
)

const (
	codeMethodNotAllowed   = "method_not_allowed"
	codeNotFound           = "not_found"
	codeInvalidRequestBody = "invalid_request_body"
	codeInvalidID          = "invalid_id"
	codeValidationFailed   = "validation_failed"
	codeMissingUser        = "missing_user"
	codeRateLimited        = "rate_limited"
	codeInternalError      = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps a domain error to its HTTP status. Anything that is
// not a domain error is logged and reported as a bare 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		logger.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		return
	}

	status := http.StatusInternalServerError
	switch derr.Kind {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindConflict:
		status = http.StatusConflict
	case domain.KindBadRequest:
		status = http.StatusBadRequest
	case domain.KindGone:
		status = http.StatusGone
	}
	writeError(w, status, derr.Code, derr.Msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
