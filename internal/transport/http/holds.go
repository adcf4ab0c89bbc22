package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cimillas/mentor-booking/services/reservations/internal/app"
	"github.com/gorilla/mux"
)

// SlotHolder is the minimal interface needed to hold a slot.
type SlotHolder interface {
	HoldSlot(ctx context.Context, in app.HoldSlotInput) (app.HoldResult, error)
}

// HandleHoldSlot serves POST /slots/{slotID}/hold.
func HandleHoldSlot(svc SlotHolder, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slotID, ok := pathID(w, mux.Vars(r), "slotID")
		if !ok {
			return
		}
		var req holdSlotRequest
		if !decodeBody(w, r, &req) {
			return
		}

		res, err := svc.HoldSlot(r.Context(), app.HoldSlotInput{
			MenteeID:  callerID(r),
			SlotID:    slotID,
			ServiceID: req.ServiceID,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, toHoldSlotResponse(res))
	}
}

// HoldChecker reports whether a session's hold can still be paid for.
type HoldChecker interface {
	CheckHoldForPayment(ctx context.Context, menteeID, sessionID string) (app.HoldStatus, error)
}

// HandleCheckHold serves POST /sessions/{sessionID}/payment-check. A lapsed
// hold answers 410 Gone.
func HandleCheckHold(svc HoldChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := pathID(w, mux.Vars(r), "sessionID")
		if !ok {
			return
		}

		status, err := svc.CheckHoldForPayment(r.Context(), callerID(r), sessionID)
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, holdStatusResponse{
			SessionID:        status.Session.ID,
			HoldExpiresAt:    status.HoldExpiresAt,
			RemainingSeconds: int(status.Remaining.Seconds()),
		})
	}
}
