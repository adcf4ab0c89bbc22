package app

import (
	"context"
	"errors"
	"time"

	"github.com/cimillas/mentor-booking/services/reservations/internal/clock"
	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
	"github.com/cimillas/mentor-booking/services/reservations/internal/lock"
)

// HoldDuration is how long a mentee keeps a slot while completing payment.
const HoldDuration = 10 * time.Minute

// ReservationRepository is the transactional store behind the engine. Every
// mutation runs inside WithTx and reads the slot with GetSlotForUpdate before
// touching it; the slot row lock is always taken before the session row lock.
type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetSlot(ctx context.Context, slotID string) (domain.Slot, error)
	GetSlotForUpdate(ctx context.Context, slotID string) (domain.Slot, error)
	UpdateSlot(ctx context.Context, slot domain.Slot) error
	GetService(ctx context.Context, serviceID string) (domain.Service, error)
	CreateSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	GetSessionForUpdate(ctx context.Context, sessionID string) (domain.Session, error)
	FindActiveSessionBySlot(ctx context.Context, slotID string) (*domain.Session, error)
	UpdateSession(ctx context.Context, session domain.Session) error
	GetPaymentBySession(ctx context.Context, sessionID string) (*domain.Payment, error)
}

type ReservationService struct {
	repo  ReservationRepository
	locks lock.Manager
	clock clock.Clock
	options
}

func NewReservationService(repo ReservationRepository, locks lock.Manager, clk clock.Clock, opts ...Option) *ReservationService {
	return &ReservationService{
		repo:    repo,
		locks:   locks,
		clock:   clk,
		options: applyOptions(opts),
	}
}

type HoldSlotInput struct {
	MenteeID  string
	SlotID    string
	ServiceID string
}

type HoldResult struct {
	Session             domain.Session
	HoldExpiresAt       time.Time
	HoldDurationMinutes int
}

// HoldSlot reserves a free slot for the mentee for HoldDuration. Concurrent
// attempts on the same slot are serialized by the slot lease; the row lock
// taken inside the transaction decides the outcome.
func (s *ReservationService) HoldSlot(ctx context.Context, in HoldSlotInput) (HoldResult, error) {
	if in.MenteeID == "" || in.SlotID == "" || in.ServiceID == "" {
		return HoldResult{}, domain.ErrInvalidID
	}

	res, err := lock.WithLock(ctx, s.locks, slotLockKey(in.SlotID), func(lockCtx context.Context) (holdOutcome, error) {
		return s.holdSlot(lockCtx, in)
	})
	switch {
	case errors.Is(err, lock.ErrContended):
		s.logger.DebugContext(ctx, "hold rejected, slot lease taken", "slot_id", in.SlotID, "mentee_id", in.MenteeID)
		return HoldResult{}, domain.ErrSlotBusy
	case errors.Is(err, lock.ErrUnavailable):
		s.logger.WarnContext(ctx, "lock store unavailable, relying on row lock", "slot_id", in.SlotID, "error", err)
		res, err = s.holdSlot(ctx, in)
	}
	if err != nil {
		return HoldResult{}, err
	}

	if res.reclaimed != nil {
		s.emit(ctx, sessionEvent(domain.EventHoldExpired, *res.reclaimed, res.now))
	}
	s.emit(ctx, sessionEvent(domain.EventSlotHeld, res.hold.Session, res.now))
	s.logger.InfoContext(ctx, "slot held",
		"slot_id", in.SlotID,
		"session_id", res.hold.Session.ID,
		"mentee_id", in.MenteeID,
		"hold_expires_at", res.hold.HoldExpiresAt,
	)
	return res.hold, nil
}

type holdOutcome struct {
	hold      HoldResult
	reclaimed *domain.Session
	now       time.Time
}

func (s *ReservationService) holdSlot(ctx context.Context, in HoldSlotInput) (holdOutcome, error) {
	now := s.clock.Now()
	out := holdOutcome{now: now}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		slot, err := s.repo.GetSlotForUpdate(txCtx, in.SlotID)
		if err != nil {
			return err
		}
		switch {
		case slot.Status == domain.SlotStatusBooked:
			return domain.ErrSlotAlreadyBooked
		case slot.HoldLive(now):
			return domain.ErrSlotHeld
		}

		service, err := s.repo.GetService(txCtx, in.ServiceID)
		if err != nil {
			return err
		}
		if service.MentorID != slot.MentorID || !service.Active {
			return domain.ErrServiceNotFound
		}

		if slot.Status == domain.SlotStatusHeld {
			// Passive reclaim: the previous hold lapsed without confirmation.
			prev, err := s.repo.FindActiveSessionBySlot(txCtx, slot.ID)
			if err != nil {
				return err
			}
			if prev != nil {
				if prev.Status != domain.SessionStatusRequested {
					return domain.ErrSlotHeld
				}
				cancelSession(prev, domain.CancelReasonHoldExpired, now)
				if err := s.repo.UpdateSession(txCtx, *prev); err != nil {
					return err
				}
				out.reclaimed = prev
			}
		}

		expiry := now.Add(HoldDuration)
		slot.Status = domain.SlotStatusHeld
		slot.HoldExpiry = &expiry
		if err := s.repo.UpdateSlot(txCtx, slot); err != nil {
			return err
		}

		session := domain.Session{
			ID:        newUUID(),
			MentorID:  slot.MentorID,
			MenteeID:  in.MenteeID,
			SlotID:    slot.ID,
			ServiceID: service.ID,
			Status:    domain.SessionStatusRequested,
			StartsAt:  slot.StartsAt,
			EndsAt:    slot.EndsAt,
			CreatedAt: now,
		}
		if err := s.repo.CreateSession(txCtx, session); err != nil {
			return err
		}

		out.hold = HoldResult{
			Session:             session,
			HoldExpiresAt:       expiry,
			HoldDurationMinutes: int(HoldDuration / time.Minute),
		}
		return nil
	})
	if err != nil {
		return holdOutcome{}, err
	}
	return out, nil
}

type ConfirmSessionInput struct {
	UserID          string
	SessionID       string
	PaymentIntentID string
}

// ConfirmSession turns a held session into a booked one. When the hold has
// already lapsed the slot is freed and the session canceled before the call
// fails with domain.ErrHoldExpired.
func (s *ReservationService) ConfirmSession(ctx context.Context, in ConfirmSessionInput) (domain.SessionDetails, error) {
	if in.UserID == "" || in.SessionID == "" {
		return domain.SessionDetails{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var details domain.SessionDetails
	expired := false

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		slot, session, err := s.lockSessionAndSlot(txCtx, in.SessionID)
		if err != nil {
			return err
		}
		if !session.IsParticipant(in.UserID) {
			return domain.ErrNotParticipant
		}
		if session.Status != domain.SessionStatusRequested && session.Status != domain.SessionStatusBooked {
			return domain.ErrInvalidSessionState
		}
		if in.PaymentIntentID != "" {
			if err := s.verifyPayment(txCtx, session, in.PaymentIntentID); err != nil {
				return err
			}
		}

		if slot.Status == domain.SlotStatusFree || slot.HoldLapsed(now) {
			// Commit the release; the caller still gets an error afterwards.
			freeSlot(&slot)
			if err := s.repo.UpdateSlot(txCtx, slot); err != nil {
				return err
			}
			cancelSession(&session, domain.CancelReasonHoldExpired, now)
			if err := s.repo.UpdateSession(txCtx, session); err != nil {
				return err
			}
			details = domain.SessionDetails{Session: session, Slot: slot}
			expired = true
			return nil
		}

		slot.Status = domain.SlotStatusBooked
		slot.HoldExpiry = nil
		if err := s.repo.UpdateSlot(txCtx, slot); err != nil {
			return err
		}
		session.Status = domain.SessionStatusBooked
		if err := s.repo.UpdateSession(txCtx, session); err != nil {
			return err
		}

		service, err := s.repo.GetService(txCtx, session.ServiceID)
		if err != nil {
			return err
		}
		details = domain.SessionDetails{Session: session, Slot: slot, Service: service}
		return nil
	})
	if err != nil {
		return domain.SessionDetails{}, err
	}

	if expired {
		s.emit(ctx, sessionEvent(domain.EventHoldExpired, details.Session, now))
		s.logger.InfoContext(ctx, "confirm after hold expiry, slot released",
			"session_id", in.SessionID,
			"slot_id", details.Slot.ID,
		)
		return domain.SessionDetails{}, domain.ErrHoldExpired
	}

	s.emit(ctx, sessionEvent(domain.EventSessionConfirmed, details.Session, now))
	s.logger.InfoContext(ctx, "session confirmed",
		"session_id", details.Session.ID,
		"slot_id", details.Slot.ID,
		"user_id", in.UserID,
	)
	return details, nil
}

type CancelSessionInput struct {
	UserID    string
	SessionID string
	Reason    string
}

// CancelSession cancels a live session and frees its slot, whatever state
// the slot was in.
func (s *ReservationService) CancelSession(ctx context.Context, in CancelSessionInput) (domain.Session, error) {
	if in.UserID == "" || in.SessionID == "" {
		return domain.Session{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	var result domain.Session

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		slot, session, err := s.lockSessionAndSlot(txCtx, in.SessionID)
		if err != nil {
			return err
		}
		if !session.IsParticipant(in.UserID) {
			return domain.ErrNotParticipant
		}
		if !session.Cancelable() {
			return domain.ErrInvalidSessionState
		}

		freeSlot(&slot)
		if err := s.repo.UpdateSlot(txCtx, slot); err != nil {
			return err
		}

		reason := in.Reason
		if reason == "" {
			reason = defaultCancelReason(session, in.UserID)
		}
		cancelSession(&session, reason, now)
		if err := s.repo.UpdateSession(txCtx, session); err != nil {
			return err
		}
		result = session
		return nil
	})
	if err != nil {
		return domain.Session{}, err
	}

	s.emit(ctx, sessionEvent(domain.EventSessionCanceled, result, now))
	s.logger.InfoContext(ctx, "session canceled",
		"session_id", result.ID,
		"slot_id", result.SlotID,
		"user_id", in.UserID,
		"reason", result.CancelReason,
	)
	return result, nil
}

type HoldStatus struct {
	Session       domain.Session
	HoldExpiresAt time.Time
	Remaining     time.Duration
}

// CheckHoldForPayment is the precondition for starting a payment intent: the
// mentee's session must still be requested and its hold live. A lapsed hold
// reports domain.ErrHoldGone.
func (s *ReservationService) CheckHoldForPayment(ctx context.Context, menteeID, sessionID string) (HoldStatus, error) {
	if menteeID == "" || sessionID == "" {
		return HoldStatus{}, domain.ErrInvalidID
	}

	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return HoldStatus{}, err
	}
	if session.MenteeID != menteeID {
		return HoldStatus{}, domain.ErrNotParticipant
	}
	if session.Status != domain.SessionStatusRequested {
		return HoldStatus{}, domain.ErrInvalidSessionState
	}

	slot, err := s.repo.GetSlot(ctx, session.SlotID)
	if err != nil {
		return HoldStatus{}, err
	}
	now := s.clock.Now()
	if !slot.HoldLive(now) {
		return HoldStatus{}, domain.ErrHoldGone
	}
	return HoldStatus{
		Session:       session,
		HoldExpiresAt: *slot.HoldExpiry,
		Remaining:     slot.HoldExpiry.Sub(now),
	}, nil
}

// lockSessionAndSlot locks the session's slot row first, then the session row,
// matching the order used by HoldSlot and the sweeps.
func (s *ReservationService) lockSessionAndSlot(ctx context.Context, sessionID string) (domain.Slot, domain.Session, error) {
	peek, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return domain.Slot{}, domain.Session{}, err
	}
	slot, err := s.repo.GetSlotForUpdate(ctx, peek.SlotID)
	if err != nil {
		return domain.Slot{}, domain.Session{}, err
	}
	session, err := s.repo.GetSessionForUpdate(ctx, sessionID)
	if err != nil {
		return domain.Slot{}, domain.Session{}, err
	}
	return slot, session, nil
}

func (s *ReservationService) verifyPayment(ctx context.Context, session domain.Session, intentID string) error {
	payment, err := s.repo.GetPaymentBySession(ctx, session.ID)
	if err != nil {
		return err
	}
	if payment == nil ||
		payment.MenteeID != session.MenteeID ||
		payment.ProviderIntentID != intentID ||
		!payment.Settled() {
		s.logger.WarnContext(ctx, "payment verification failed", "session_id", session.ID, "intent_id", intentID)
		return domain.ErrPaymentMismatch
	}
	return nil
}

func slotLockKey(slotID string) string {
	return "slot:" + slotID
}

func freeSlot(slot *domain.Slot) {
	slot.Status = domain.SlotStatusFree
	slot.HoldExpiry = nil
}

func cancelSession(session *domain.Session, reason string, at time.Time) {
	session.Status = domain.SessionStatusCanceled
	session.CancelReason = reason
	session.CanceledAt = &at
}

func defaultCancelReason(session domain.Session, userID string) string {
	if userID == session.MentorID {
		return "Canceled by mentor"
	}
	return "Canceled by mentee"
}

func sessionEvent(typ domain.BookingEventType, session domain.Session, at time.Time) domain.BookingEvent {
	return domain.BookingEvent{
		Type:       typ,
		SlotID:     session.SlotID,
		SessionID:  session.ID,
		MentorID:   session.MentorID,
		MenteeID:   session.MenteeID,
		Reason:     session.CancelReason,
		OccurredAt: at,
	}
}
