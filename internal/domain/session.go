package domain

import "time"

type SessionStatus string

const (
	SessionStatusRequested SessionStatus = "requested"
	SessionStatusBooked    SessionStatus = "booked"
	SessionStatusPaid      SessionStatus = "paid"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCanceled  SessionStatus = "canceled"
)

const (
	CancelReasonHoldExpired = "Hold expired"
	CancelReasonMentorStale = "Auto-canceled: mentor did not respond within 3 days"
)

// Session is a mentee's booking of one slot for one service.
type Session struct {
	ID           string
	MentorID     string
	MenteeID     string
	SlotID       string
	ServiceID    string
	Status       SessionStatus
	StartsAt     time.Time
	EndsAt       time.Time
	CancelReason string
	CanceledAt   *time.Time
	CreatedAt    time.Time
}

// IsParticipant reports whether userID is the session's mentor or mentee.
func (s Session) IsParticipant(userID string) bool {
	return userID != "" && (userID == s.MentorID || userID == s.MenteeID)
}

// Cancelable reports whether the session may still be canceled by a participant.
func (s Session) Cancelable() bool {
	switch s.Status {
	case SessionStatusRequested, SessionStatusBooked, SessionStatusPaid:
		return true
	}
	return false
}

// SessionDetails is a session with the records it references.
type SessionDetails struct {
	Session Session
	Slot    Slot
	Service Service
}
