package domain

import "errors"

// Kind classifies an Error for callers that translate it into a response.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindConflict   Kind = "conflict"
	KindBadRequest Kind = "bad_request"
	KindGone       Kind = "gone"
)

// Error is a caller-facing reservation failure.
type Error struct {
	Kind Kind
	Code string
	Msg  string
}

func (e *Error) Error() string {
	return e.Msg
}

var (
	ErrSlotNotFound        = &Error{Kind: KindNotFound, Code: "slot_not_found", Msg: "slot not found"}
	ErrServiceNotFound     = &Error{Kind: KindNotFound, Code: "service_not_found", Msg: "service not found"}
	ErrSessionNotFound     = &Error{Kind: KindNotFound, Code: "session_not_found", Msg: "session not found"}
	ErrSlotAlreadyBooked   = &Error{Kind: KindConflict, Code: "slot_already_booked", Msg: "slot is already booked"}
	ErrSlotHeld            = &Error{Kind: KindConflict, Code: "slot_held", Msg: "slot is held by another user"}
	ErrSlotBusy            = &Error{Kind: KindConflict, Code: "slot_busy", Msg: "slot is currently being reserved, please try again"}
	ErrNotParticipant      = &Error{Kind: KindBadRequest, Code: "not_authorized", Msg: "not authorized for this session"}
	ErrInvalidSessionState = &Error{Kind: KindBadRequest, Code: "invalid_session_state", Msg: "session cannot transition from its current status"}
	ErrPaymentMismatch     = &Error{Kind: KindBadRequest, Code: "payment_not_verified", Msg: "payment could not be verified for this session"}
	ErrHoldExpired         = &Error{Kind: KindBadRequest, Code: "hold_expired", Msg: "hold has expired"}
	ErrInvalidID           = &Error{Kind: KindBadRequest, Code: "invalid_id", Msg: "invalid id"}
	ErrHoldGone            = &Error{Kind: KindGone, Code: "hold_gone", Msg: "hold expired before payment could start"}
)

// KindOf reports the Kind of err, or "" when err is not a reservation Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
