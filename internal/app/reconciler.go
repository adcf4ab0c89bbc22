package app

import (
	"context"
	"time"

	"github.com/cimillas/mentor-booking/services/reservations/internal/clock"
	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
)

// MentorResponseWindow is how long a requested session may wait for the mentor.
const MentorResponseWindow = 72 * time.Hour

type SweepRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListLapsedHoldSlotIDs(ctx context.Context, now time.Time, mentorID string) ([]string, error)
	GetSlotForUpdate(ctx context.Context, slotID string) (domain.Slot, error)
	UpdateSlot(ctx context.Context, slot domain.Slot) error
	FindActiveSessionBySlot(ctx context.Context, slotID string) (*domain.Session, error)
	UpdateSession(ctx context.Context, session domain.Session) error
	CancelStaleRequested(ctx context.Context, mentorID string, createdBefore, now time.Time, reason string) ([]domain.Session, error)
	FreeHeldSlots(ctx context.Context, slotIDs []string) (int, error)
}

// ExpiryReconciler frees slots whose holds lapsed without confirmation. It
// keeps no timers; callers run it on read paths and from a scheduler.
type ExpiryReconciler struct {
	repo  SweepRepository
	clock clock.Clock
	options
}

func NewExpiryReconciler(repo SweepRepository, clk clock.Clock, opts ...Option) *ExpiryReconciler {
	return &ExpiryReconciler{
		repo:    repo,
		clock:   clk,
		options: applyOptions(opts),
	}
}

type ReleaseResult struct {
	Released int
	Failed   int
}

// ReleaseExpiredHolds frees every held slot whose hold has lapsed, optionally
// only for one mentor. Each slot is released in its own transaction so one
// failure does not block the rest. Running it twice in a row releases nothing
// the second time.
func (r *ExpiryReconciler) ReleaseExpiredHolds(ctx context.Context, mentorID string) (ReleaseResult, error) {
	now := r.clock.Now()

	slotIDs, err := r.repo.ListLapsedHoldSlotIDs(ctx, now, mentorID)
	if err != nil {
		return ReleaseResult{}, err
	}

	var res ReleaseResult
	for _, slotID := range slotIDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		released, canceled, err := r.releaseOne(ctx, slotID, now)
		if err != nil {
			res.Failed++
			r.logger.ErrorContext(ctx, "release expired hold failed", "slot_id", slotID, "error", err)
			continue
		}
		if !released {
			continue
		}
		res.Released++
		if canceled != nil {
			r.emit(ctx, sessionEvent(domain.EventHoldExpired, *canceled, now))
		}
	}

	if res.Released > 0 || res.Failed > 0 {
		r.logger.InfoContext(ctx, "expired holds reconciled",
			"mentor_id", mentorID,
			"released", res.Released,
			"failed", res.Failed,
		)
	}
	return res, nil
}

func (r *ExpiryReconciler) releaseOne(ctx context.Context, slotID string, now time.Time) (bool, *domain.Session, error) {
	released := false
	var canceled *domain.Session

	err := r.repo.WithTx(ctx, func(txCtx context.Context) error {
		slot, err := r.repo.GetSlotForUpdate(txCtx, slotID)
		if err != nil {
			return err
		}
		// Re-check under the row lock: a confirm or a new hold may have won.
		if !slot.HoldLapsed(now) {
			return nil
		}
		freeSlot(&slot)
		if err := r.repo.UpdateSlot(txCtx, slot); err != nil {
			return err
		}
		released = true

		session, err := r.repo.FindActiveSessionBySlot(txCtx, slotID)
		if err != nil {
			return err
		}
		if session == nil || session.Status != domain.SessionStatusRequested {
			return nil
		}
		cancelSession(session, domain.CancelReasonHoldExpired, now)
		if err := r.repo.UpdateSession(txCtx, *session); err != nil {
			return err
		}
		canceled = session
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return released, canceled, nil
}

// CancelStaleRequests cancels sessions the mentor left in requested for longer
// than MentorResponseWindow and frees their held slots in one transaction. An
// empty mentorID sweeps every mentor.
func (r *ExpiryReconciler) CancelStaleRequests(ctx context.Context, mentorID string) (int, error) {
	now := r.clock.Now()
	var canceled []domain.Session

	err := r.repo.WithTx(ctx, func(txCtx context.Context) error {
		sessions, err := r.repo.CancelStaleRequested(txCtx, mentorID, now.Add(-MentorResponseWindow), now, domain.CancelReasonMentorStale)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			return nil
		}
		slotIDs := make([]string, 0, len(sessions))
		for _, session := range sessions {
			slotIDs = append(slotIDs, session.SlotID)
		}
		if _, err := r.repo.FreeHeldSlots(txCtx, slotIDs); err != nil {
			return err
		}
		canceled = sessions
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, session := range canceled {
		r.emit(ctx, sessionEvent(domain.EventSessionAutoCanceled, session, now))
	}
	if len(canceled) > 0 {
		r.logger.InfoContext(ctx, "stale requests auto-canceled", "mentor_id", mentorID, "count", len(canceled))
	}
	return len(canceled), nil
}
