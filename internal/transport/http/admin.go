package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/cimillas/mentor-booking/services/reservations/internal/app"
)

// HandleReconcile serves POST /admin/reconcile. The optional mentor_id query
// parameter scopes both sweeps to one mentor.
func HandleReconcile(sweeper app.Sweeper, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mentorID := strings.TrimSpace(r.URL.Query().Get("mentor_id"))

		res, err := sweeper.ReleaseExpiredHolds(r.Context(), mentorID)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		canceled, err := sweeper.CancelStaleRequests(r.Context(), mentorID)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, reconcileResponse{
			Released:     res.Released,
			Failed:       res.Failed,
			AutoCanceled: canceled,
		})
	}
}
