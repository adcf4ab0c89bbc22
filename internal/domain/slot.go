package domain

import "time"

type SlotStatus string

const (
	SlotStatusFree   SlotStatus = "free"
	SlotStatusHeld   SlotStatus = "held"
	SlotStatusBooked SlotStatus = "booked"
)

// Slot is a mentor-owned time interval that can be reserved.
// HoldExpiry is set if and only if Status is SlotStatusHeld.
type Slot struct {
	ID         string
	MentorID   string
	StartsAt   time.Time
	EndsAt     time.Time
	Status     SlotStatus
	HoldExpiry *time.Time
}

// HoldLive reports whether the slot carries a hold that has not lapsed at now.
func (s Slot) HoldLive(now time.Time) bool {
	return s.Status == SlotStatusHeld && s.HoldExpiry != nil && s.HoldExpiry.After(now)
}

// HoldLapsed reports whether the slot is held but its window has ended at now.
func (s Slot) HoldLapsed(now time.Time) bool {
	return s.Status == SlotStatusHeld && !s.HoldLive(now)
}
