package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
	"github.com/cimillas/mentor-booking/services/reservations/internal/testutil"
	"github.com/google/uuid"
)

func TestReservationRepository(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewReservationRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("GetSlotForUpdate returns slot and ErrSlotNotFound", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		slotID := testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1"})

		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			slot, err := repo.GetSlotForUpdate(txCtx, slotID)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if slot.ID != slotID || slot.MentorID != "mentor-1" || slot.Status != domain.SlotStatusFree || slot.HoldExpiry != nil {
				t.Fatalf("unexpected slot: %+v", slot)
			}

			_, err = repo.GetSlotForUpdate(txCtx, "00000000-0000-0000-0000-000000000001")
			if err != domain.ErrSlotNotFound {
				t.Fatalf("expected ErrSlotNotFound, got %v", err)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}

		_, err = repo.GetSlot(ctx, "not-a-uuid")
		if err != domain.ErrInvalidID {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("UpdateSlot round-trips hold expiry", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		slotID := testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1"})
		expiry := time.Now().UTC().Add(10 * time.Minute).Truncate(time.Microsecond)

		slot, err := repo.GetSlot(ctx, slotID)
		if err != nil {
			t.Fatalf("get slot: %v", err)
		}
		slot.Status = domain.SlotStatusHeld
		slot.HoldExpiry = &expiry
		if err := repo.UpdateSlot(ctx, slot); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		got, err := repo.GetSlot(ctx, slotID)
		if err != nil {
			t.Fatalf("get slot: %v", err)
		}
		if got.Status != domain.SlotStatusHeld || got.HoldExpiry == nil || !got.HoldExpiry.Equal(expiry) {
			t.Fatalf("unexpected slot after update: %+v", got)
		}

		slot.Status = domain.SlotStatusFree
		if err := repo.UpdateSlot(ctx, slot); err == nil {
			t.Fatalf("expected free slot with expiry to violate constraint")
		}
	})

	t.Run("CreateSession enforces one live session per slot", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		serviceID := testutil.InsertService(t, ctx, pool, "mentor-1", true)
		slotID := testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1"})
		slot, _ := repo.GetSlot(ctx, slotID)
		now := time.Now().UTC()

		newSession := func(menteeID string) domain.Session {
			return domain.Session{
				ID:        uuid.NewString(),
				MentorID:  "mentor-1",
				MenteeID:  menteeID,
				SlotID:    slotID,
				ServiceID: serviceID,
				Status:    domain.SessionStatusRequested,
				StartsAt:  slot.StartsAt,
				EndsAt:    slot.EndsAt,
				CreatedAt: now,
			}
		}

		first := newSession("mentee-a")
		if err := repo.CreateSession(ctx, first); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := repo.CreateSession(ctx, newSession("mentee-b")); err != domain.ErrSlotHeld {
			t.Fatalf("expected ErrSlotHeld, got %v", err)
		}

		canceledAt := now
		first.Status = domain.SessionStatusCanceled
		first.CancelReason = domain.CancelReasonHoldExpired
		first.CanceledAt = &canceledAt
		if err := repo.UpdateSession(ctx, first); err != nil {
			t.Fatalf("update session: %v", err)
		}
		if err := repo.CreateSession(ctx, newSession("mentee-b")); err != nil {
			t.Fatalf("expected new session after cancel, got %v", err)
		}

		active, err := repo.FindActiveSessionBySlot(ctx, slotID)
		if err != nil {
			t.Fatalf("find active: %v", err)
		}
		if active == nil || active.MenteeID != "mentee-b" {
			t.Fatalf("unexpected active session: %+v", active)
		}

		got, err := repo.GetSession(ctx, first.ID)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		if got.Status != domain.SessionStatusCanceled || got.CancelReason != domain.CancelReasonHoldExpired || got.CanceledAt == nil {
			t.Fatalf("unexpected canceled session: %+v", got)
		}
	})

	t.Run("GetService and GetPaymentBySession", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		serviceID := testutil.InsertService(t, ctx, pool, "mentor-1", false)
		slotID := testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1"})
		sessionID := testutil.InsertSession(t, ctx, pool, domain.Session{
			MentorID: "mentor-1", MenteeID: "mentee-a", SlotID: slotID, ServiceID: serviceID,
		})

		svc, err := repo.GetService(ctx, serviceID)
		if err != nil {
			t.Fatalf("get service: %v", err)
		}
		if svc.MentorID != "mentor-1" || svc.Active {
			t.Fatalf("unexpected service: %+v", svc)
		}
		if _, err := repo.GetService(ctx, "00000000-0000-0000-0000-000000000001"); err != domain.ErrServiceNotFound {
			t.Fatalf("expected ErrServiceNotFound, got %v", err)
		}

		p, err := repo.GetPaymentBySession(ctx, sessionID)
		if err != nil || p != nil {
			t.Fatalf("expected no payment, got %+v, %v", p, err)
		}
		testutil.InsertPayment(t, ctx, pool, domain.Payment{
			SessionID: sessionID, MenteeID: "mentee-a", ProviderIntentID: "pi_1", Status: domain.PaymentStatusSucceeded,
		})
		p, err = repo.GetPaymentBySession(ctx, sessionID)
		if err != nil {
			t.Fatalf("get payment: %v", err)
		}
		if p == nil || p.ProviderIntentID != "pi_1" || !p.Settled() {
			t.Fatalf("unexpected payment: %+v", p)
		}
	})
}

func TestReservationRepository_Sweeps(t *testing.T) {
	pool := testutil.NewTestPool(t)
	repo := NewReservationRepository(pool)
	testutil.ApplyMigrations(t, context.Background(), pool)

	t.Run("ListLapsedHoldSlotIDs includes expiry equal to now", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC().Truncate(time.Microsecond)
		past := now.Add(-time.Minute)
		future := now.Add(time.Minute)

		lapsed := testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1", Status: domain.SlotStatusHeld, HoldExpiry: &past})
		edge := testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1", Status: domain.SlotStatusHeld, HoldExpiry: &now})
		testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1", Status: domain.SlotStatusHeld, HoldExpiry: &future})
		other := testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-2", Status: domain.SlotStatusHeld, HoldExpiry: &past})

		ids, err := repo.ListLapsedHoldSlotIDs(ctx, now, "")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(ids) != 3 {
			t.Fatalf("expected 3 lapsed slots, got %v", ids)
		}

		ids, err = repo.ListLapsedHoldSlotIDs(ctx, now, "mentor-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(ids) != 2 || !contains(ids, lapsed) || !contains(ids, edge) || contains(ids, other) {
			t.Fatalf("unexpected scoped ids: %v", ids)
		}
	})

	t.Run("CancelStaleRequested and FreeHeldSlots", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC()
		serviceID := testutil.InsertService(t, ctx, pool, "mentor-1", true)
		expiry := now.Add(-4 * 24 * time.Hour).Add(10 * time.Minute)

		staleSlot := testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1", Status: domain.SlotStatusHeld, HoldExpiry: &expiry})
		staleSession := testutil.InsertSession(t, ctx, pool, domain.Session{
			MentorID: "mentor-1", MenteeID: "mentee-a", SlotID: staleSlot, ServiceID: serviceID,
			CreatedAt: now.Add(-4 * 24 * time.Hour),
		})
		bookedSlot := testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1", Status: domain.SlotStatusBooked})
		testutil.InsertSession(t, ctx, pool, domain.Session{
			MentorID: "mentor-1", MenteeID: "mentee-b", SlotID: bookedSlot, ServiceID: serviceID,
			Status: domain.SessionStatusBooked, CreatedAt: now.Add(-5 * 24 * time.Hour),
		})

		var canceled []domain.Session
		err := repo.WithTx(ctx, func(txCtx context.Context) error {
			var err error
			canceled, err = repo.CancelStaleRequested(txCtx, "mentor-1", now.Add(-72*time.Hour), now, domain.CancelReasonMentorStale)
			if err != nil {
				return err
			}
			n, err := repo.FreeHeldSlots(txCtx, []string{staleSlot, bookedSlot})
			if err != nil {
				return err
			}
			if n != 1 {
				t.Fatalf("expected 1 slot freed, got %d", n)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("tx failed: %v", err)
		}
		if len(canceled) != 1 || canceled[0].ID != staleSession || canceled[0].CancelReason != domain.CancelReasonMentorStale {
			t.Fatalf("unexpected canceled sessions: %+v", canceled)
		}
		slot, _ := repo.GetSlot(ctx, staleSlot)
		if slot.Status != domain.SlotStatusFree || slot.HoldExpiry != nil {
			t.Fatalf("expected stale slot freed, got %+v", slot)
		}
		booked, _ := repo.GetSlot(ctx, bookedSlot)
		if booked.Status != domain.SlotStatusBooked {
			t.Fatalf("expected booked slot untouched, got %+v", booked)
		}
	})

	t.Run("ListFreeSlots and ListSessionsByMentor", func(t *testing.T) {
		ctx := context.Background()
		testutil.TruncateAll(t, ctx, pool)
		now := time.Now().UTC()
		serviceID := testutil.InsertService(t, ctx, pool, "mentor-1", true)

		later := testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1", StartsAt: now.Add(48 * time.Hour)})
		sooner := testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1", StartsAt: now.Add(24 * time.Hour)})
		testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1", StartsAt: now.Add(-24 * time.Hour)})
		testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-2", StartsAt: now.Add(24 * time.Hour)})
		bookedSlot := testutil.InsertSlot(t, ctx, pool, domain.Slot{MentorID: "mentor-1", Status: domain.SlotStatusBooked})
		testutil.InsertSession(t, ctx, pool, domain.Session{
			MentorID: "mentor-1", MenteeID: "mentee-a", SlotID: bookedSlot, ServiceID: serviceID, Status: domain.SessionStatusBooked,
		})

		slots, err := repo.ListFreeSlots(ctx, "mentor-1", now)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(slots) != 2 || slots[0].ID != sooner || slots[1].ID != later {
			t.Fatalf("unexpected free slots: %+v", slots)
		}

		sessions, err := repo.ListSessionsByMentor(ctx, "mentor-1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(sessions) != 1 || sessions[0].SlotID != bookedSlot {
			t.Fatalf("unexpected sessions: %+v", sessions)
		}
	})
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
