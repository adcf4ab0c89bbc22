package domain

import "time"

type BookingEventType string

const (
	EventSlotHeld            BookingEventType = "slot.held"
	EventSessionConfirmed    BookingEventType = "session.confirmed"
	EventSessionCanceled     BookingEventType = "session.canceled"
	EventHoldExpired         BookingEventType = "hold.expired"
	EventSessionAutoCanceled BookingEventType = "session.auto_canceled"
)

// BookingEvent is emitted after a reservation transition commits.
type BookingEvent struct {
	Type       BookingEventType `json:"type"`
	SlotID     string           `json:"slot_id"`
	SessionID  string           `json:"session_id,omitempty"`
	MentorID   string           `json:"mentor_id"`
	MenteeID   string           `json:"mentee_id,omitempty"`
	Reason     string           `json:"reason,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
}
