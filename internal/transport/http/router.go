package http

import (
	"log/slog"
	"net/http"

	"github.com/cimillas/mentor-booking/services/reservations/internal/app"
	"github.com/gorilla/mux"
)

// ReservationEngine is what the booking routes need from the engine.
type ReservationEngine interface {
	SlotHolder
	SessionConfirmer
	SessionCanceler
	HoldChecker
}

type RouterConfig struct {
	Engine      ReservationEngine
	Schedule    ScheduleReader
	Sweeper     app.Sweeper
	HoldLimiter *LimiterStore
	Health      map[string]Pinger
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter wires the booking API. Every route except /health requires the
// X-User-ID header.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := mux.NewRouter()
	r.NotFoundHandler = NotFoundHandler()
	r.MethodNotAllowedHandler = MethodNotAllowedHandler()

	r.Handle("/health", HealthHandler(cfg.Health, logger)).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(RequireUser)

	hold := http.Handler(HandleHoldSlot(cfg.Engine, logger))
	if cfg.HoldLimiter != nil {
		hold = RateLimit(cfg.HoldLimiter)(hold)
	}
	api.Handle("/slots/{slotID}/hold", hold).Methods(http.MethodPost)
	api.Handle("/sessions/{sessionID}/confirm", HandleConfirmSession(cfg.Engine, logger)).Methods(http.MethodPost)
	api.Handle("/sessions/{sessionID}/cancel", HandleCancelSession(cfg.Engine, logger)).Methods(http.MethodPost)
	api.Handle("/sessions/{sessionID}/payment-check", HandleCheckHold(cfg.Engine, logger)).Methods(http.MethodPost)
	api.Handle("/mentors/{mentorID}/slots", HandleListSlots(cfg.Schedule, logger)).Methods(http.MethodGet)
	api.Handle("/mentors/{mentorID}/sessions", HandleListSessions(cfg.Schedule, logger)).Methods(http.MethodGet)
	api.Handle("/admin/reconcile", HandleReconcile(cfg.Sweeper, logger)).Methods(http.MethodPost)

	return RequestLogger(CORS(cfg.CORSOrigins)(r), logger)
}
