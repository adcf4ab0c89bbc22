package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReservationRepository stores slots, sessions and the read-only service and
// payment rows the engine consults. Methods join the transaction carried by
// ctx when there is one.
type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const slotColumns = `id, mentor_id, starts_at, ends_at, status, hold_expiry`

func scanSlot(row pgx.Row) (domain.Slot, error) {
	var s domain.Slot
	err := row.Scan(&s.ID, &s.MentorID, &s.StartsAt, &s.EndsAt, &s.Status, &s.HoldExpiry)
	return s, err
}

func (r *ReservationRepository) GetSlot(ctx context.Context, slotID string) (domain.Slot, error) {
	return r.getSlot(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1`, slotID)
}

func (r *ReservationRepository) GetSlotForUpdate(ctx context.Context, slotID string) (domain.Slot, error) {
	return r.getSlot(ctx, `SELECT `+slotColumns+` FROM slots WHERE id = $1 FOR UPDATE`, slotID)
}

func (r *ReservationRepository) getSlot(ctx context.Context, query, slotID string) (domain.Slot, error) {
	slot, err := scanSlot(dbFrom(ctx, r.pool).QueryRow(ctx, query, slotID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Slot{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Slot{}, domain.ErrSlotNotFound
		}
		return domain.Slot{}, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

func (r *ReservationRepository) UpdateSlot(ctx context.Context, slot domain.Slot) error {
	const stmt = `UPDATE slots SET status = $2, hold_expiry = $3 WHERE id = $1`
	tag, err := dbFrom(ctx, r.pool).Exec(ctx, stmt, slot.ID, slot.Status, slot.HoldExpiry)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

func (r *ReservationRepository) GetService(ctx context.Context, serviceID string) (domain.Service, error) {
	const query = `SELECT id, mentor_id, title, active FROM services WHERE id = $1`
	var s domain.Service
	err := dbFrom(ctx, r.pool).QueryRow(ctx, query, serviceID).Scan(&s.ID, &s.MentorID, &s.Title, &s.Active)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Service{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Service{}, domain.ErrServiceNotFound
		}
		return domain.Service{}, fmt.Errorf("get service: %w", err)
	}
	return s, nil
}

const sessionColumns = `id, mentor_id, mentee_id, slot_id, service_id, status, starts_at, ends_at, cancel_reason, canceled_at, created_at`

func scanSession(row pgx.Row) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID,
		&s.MentorID,
		&s.MenteeID,
		&s.SlotID,
		&s.ServiceID,
		&s.Status,
		&s.StartsAt,
		&s.EndsAt,
		&s.CancelReason,
		&s.CanceledAt,
		&s.CreatedAt,
	)
	return s, err
}

// CreateSession inserts a requested session. A second live session for the
// same slot violates sessions_one_active_per_slot and reports ErrSlotHeld.
func (r *ReservationRepository) CreateSession(ctx context.Context, session domain.Session) error {
	const stmt = `
INSERT INTO sessions (id, mentor_id, mentee_id, slot_id, service_id, status, starts_at, ends_at, cancel_reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := dbFrom(ctx, r.pool).Exec(ctx, stmt,
		session.ID,
		session.MentorID,
		session.MenteeID,
		session.SlotID,
		session.ServiceID,
		session.Status,
		session.StartsAt,
		session.EndsAt,
		session.CancelReason,
		session.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotHeld
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	return r.getSession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, sessionID)
}

func (r *ReservationRepository) GetSessionForUpdate(ctx context.Context, sessionID string) (domain.Session, error) {
	return r.getSession(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1 FOR UPDATE`, sessionID)
}

func (r *ReservationRepository) getSession(ctx context.Context, query, sessionID string) (domain.Session, error) {
	session, err := scanSession(dbFrom(ctx, r.pool).QueryRow(ctx, query, sessionID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Session{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return session, nil
}

func (r *ReservationRepository) FindActiveSessionBySlot(ctx context.Context, slotID string) (*domain.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE slot_id = $1 AND status <> 'canceled' FOR UPDATE`
	session, err := scanSession(dbFrom(ctx, r.pool).QueryRow(ctx, query, slotID))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active session: %w", err)
	}
	return &session, nil
}

func (r *ReservationRepository) UpdateSession(ctx context.Context, session domain.Session) error {
	const stmt = `UPDATE sessions SET status = $2, cancel_reason = $3, canceled_at = $4 WHERE id = $1`
	tag, err := dbFrom(ctx, r.pool).Exec(ctx, stmt, session.ID, session.Status, session.CancelReason, session.CanceledAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// GetPaymentBySession returns the latest payment recorded for the session, or
// nil when none exists.
func (r *ReservationRepository) GetPaymentBySession(ctx context.Context, sessionID string) (*domain.Payment, error) {
	const query = `
SELECT id, session_id, mentee_id, provider_intent_id, status
FROM payments
WHERE session_id = $1
ORDER BY created_at DESC
LIMIT 1`

	var p domain.Payment
	err := dbFrom(ctx, r.pool).QueryRow(ctx, query, sessionID).
		Scan(&p.ID, &p.SessionID, &p.MenteeID, &p.ProviderIntentID, &p.Status)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get payment: %w", err)
	}
	return &p, nil
}
