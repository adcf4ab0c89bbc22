package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
	"github.com/jackc/pgx/v5"
)

// ListLapsedHoldSlotIDs returns held slots whose hold_expiry is at or before
// now. An empty mentorID covers every mentor.
func (r *ReservationRepository) ListLapsedHoldSlotIDs(ctx context.Context, now time.Time, mentorID string) ([]string, error) {
	const query = `
SELECT id
FROM slots
WHERE status = 'held' AND hold_expiry <= $1 AND ($2::text = '' OR mentor_id = $2::text)
ORDER BY hold_expiry ASC`

	rows, err := dbFrom(ctx, r.pool).Query(ctx, query, now, mentorID)
	if err != nil {
		return nil, fmt.Errorf("list lapsed holds: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan lapsed holds: %w", err)
	}
	return ids, nil
}

// CancelStaleRequested cancels requested sessions created before
// createdBefore and returns them. The slots of those sessions are locked
// first so the bulk update keeps the slot-then-session lock order.
func (r *ReservationRepository) CancelStaleRequested(ctx context.Context, mentorID string, createdBefore, now time.Time, reason string) ([]domain.Session, error) {
	const lockSlots = `
SELECT sl.id
FROM slots sl
JOIN sessions s ON s.slot_id = sl.id
WHERE s.status = 'requested' AND s.created_at < $1 AND ($2::text = '' OR s.mentor_id = $2::text)
ORDER BY sl.id
FOR UPDATE OF sl`

	db := dbFrom(ctx, r.pool)
	rows, err := db.Query(ctx, lockSlots, createdBefore, mentorID)
	if err != nil {
		return nil, fmt.Errorf("lock stale slots: %w", err)
	}
	if _, err := pgx.CollectRows(rows, pgx.RowTo[string]); err != nil {
		return nil, fmt.Errorf("lock stale slots: %w", err)
	}

	const stmt = `
UPDATE sessions
SET status = 'canceled', cancel_reason = $3, canceled_at = $4
WHERE status = 'requested' AND created_at < $1 AND ($2::text = '' OR mentor_id = $2::text)
RETURNING ` + sessionColumns

	rows, err = db.Query(ctx, stmt, createdBefore, mentorID, reason, now)
	if err != nil {
		return nil, fmt.Errorf("cancel stale sessions: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Session, error) {
		return scanSession(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan canceled sessions: %w", err)
	}
	return sessions, nil
}

// FreeHeldSlots frees the given slots that are still held. Booked slots are
// left alone.
func (r *ReservationRepository) FreeHeldSlots(ctx context.Context, slotIDs []string) (int, error) {
	if len(slotIDs) == 0 {
		return 0, nil
	}
	const stmt = `UPDATE slots SET status = 'free', hold_expiry = NULL WHERE id = ANY($1::uuid[]) AND status = 'held'`
	tag, err := dbFrom(ctx, r.pool).Exec(ctx, stmt, slotIDs)
	if err != nil {
		return 0, fmt.Errorf("free held slots: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *ReservationRepository) ListFreeSlots(ctx context.Context, mentorID string, from time.Time) ([]domain.Slot, error) {
	const query = `
SELECT ` + slotColumns + `
FROM slots
WHERE mentor_id = $1 AND status = 'free' AND starts_at > $2
ORDER BY starts_at ASC`

	rows, err := dbFrom(ctx, r.pool).Query(ctx, query, mentorID, from)
	if err != nil {
		return nil, fmt.Errorf("list free slots: %w", err)
	}
	slots, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Slot, error) {
		return scanSlot(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan free slots: %w", err)
	}
	return slots, nil
}

func (r *ReservationRepository) ListSessionsByMentor(ctx context.Context, mentorID string) ([]domain.Session, error) {
	const query = `
SELECT ` + sessionColumns + `
FROM sessions
WHERE mentor_id = $1
ORDER BY starts_at ASC, created_at ASC`

	rows, err := dbFrom(ctx, r.pool).Query(ctx, query, mentorID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Session, error) {
		return scanSession(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return sessions, nil
}
