package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
	"github.com/gorilla/mux"
)

type ScheduleReader interface {
	ListAvailableSlots(ctx context.Context, mentorID string) ([]domain.Slot, error)
	ListMentorSessions(ctx context.Context, userID, mentorID string) ([]domain.Session, error)
}

// HandleListSlots serves GET /mentors/{mentorID}/slots.
func HandleListSlots(svc ScheduleReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mentorID := strings.TrimSpace(mux.Vars(r)["mentorID"])

		slots, err := svc.ListAvailableSlots(r.Context(), mentorID)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		out := make([]slotResponse, 0, len(slots))
		for _, s := range slots {
			out = append(out, toSlotResponse(s))
		}
		writeJSON(w, http.StatusOK, map[string]any{"slots": out})
	}
}

// HandleListSessions serves GET /mentors/{mentorID}/sessions for the mentor.
func HandleListSessions(svc ScheduleReader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mentorID := strings.TrimSpace(mux.Vars(r)["mentorID"])

		sessions, err := svc.ListMentorSessions(r.Context(), callerID(r), mentorID)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		out := make([]sessionResponse, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, toSessionResponse(s))
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
	}
}
