package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cimillas/mentor-booking/services/reservations/internal/app"
	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
	"github.com/gorilla/mux"
)

// SessionConfirmer is the minimal interface needed to confirm a session.
type SessionConfirmer interface {
	ConfirmSession(ctx context.Context, in app.ConfirmSessionInput) (domain.SessionDetails, error)
}

// HandleConfirmSession serves POST /sessions/{sessionID}/confirm.
func HandleConfirmSession(svc SessionConfirmer, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := pathID(w, mux.Vars(r), "sessionID")
		if !ok {
			return
		}
		var req confirmSessionRequest
		if !decodeBody(w, r, &req) {
			return
		}

		details, err := svc.ConfirmSession(r.Context(), app.ConfirmSessionInput{
			UserID:          callerID(r),
			SessionID:       sessionID,
			PaymentIntentID: req.PaymentIntentID,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionDetailsResponse(details))
	}
}

type SessionCanceler interface {
	CancelSession(ctx context.Context, in app.CancelSessionInput) (domain.Session, error)
}

// HandleCancelSession serves POST /sessions/{sessionID}/cancel.
func HandleCancelSession(svc SessionCanceler, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := pathID(w, mux.Vars(r), "sessionID")
		if !ok {
			return
		}
		var req cancelSessionRequest
		if !decodeBody(w, r, &req) {
			return
		}

		session, err := svc.CancelSession(r.Context(), app.CancelSessionInput{
			UserID:    callerID(r),
			SessionID: sessionID,
			Reason:    req.Reason,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(session))
	}
}
