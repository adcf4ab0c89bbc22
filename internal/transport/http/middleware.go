package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HeaderUserID carries the caller identity resolved by the upstream auth layer.
const HeaderUserID = "X-User-ID"

// RequestLogger logs basic request details and latency.
func RequestLogger(next http.Handler, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if rec.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(r.Context(), level, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"user_id", callerID(r),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// RequireUser rejects requests without a caller identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if callerID(r) == "" {
			writeError(w, http.StatusUnauthorized, codeMissingUser, "missing "+HeaderUserID+" header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderUserID))
}
