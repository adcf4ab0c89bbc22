package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cimillas/mentor-booking/services/reservations/internal/domain"
)

// fakeStore serializes whole transactions behind one mutex, which is a strict
// superset of row-level locking, and rolls back on error.
type fakeStore struct {
	mu       sync.Mutex
	slots    map[string]domain.Slot
	sessions map[string]domain.Session
	services map[string]domain.Service
	payments map[string]domain.Payment

	failUpdateSlot map[string]error
}

type txMarker struct{}

func newFakeStore() *fakeStore {
	return &fakeStore{
		slots:          make(map[string]domain.Slot),
		sessions:       make(map[string]domain.Session),
		services:       make(map[string]domain.Service),
		payments:       make(map[string]domain.Payment),
		failUpdateSlot: make(map[string]error),
	}
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	slots := cloneMap(f.slots)
	sessions := cloneMap(f.sessions)
	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		f.slots = slots
		f.sessions = sessions
		return err
	}
	return nil
}

// read runs fn under the store mutex unless the caller is already in a tx.
func (f *fakeStore) read(ctx context.Context, fn func()) {
	if ctx.Value(txMarker{}) != nil {
		fn()
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	fn()
}

func (f *fakeStore) GetSlot(ctx context.Context, slotID string) (slot domain.Slot, err error) {
	f.read(ctx, func() {
		s, ok := f.slots[slotID]
		if !ok {
			err = domain.ErrSlotNotFound
			return
		}
		slot = copySlot(s)
	})
	return slot, err
}

func (f *fakeStore) GetSlotForUpdate(ctx context.Context, slotID string) (domain.Slot, error) {
	return f.GetSlot(ctx, slotID)
}

func (f *fakeStore) UpdateSlot(ctx context.Context, slot domain.Slot) (err error) {
	f.read(ctx, func() {
		if ferr, ok := f.failUpdateSlot[slot.ID]; ok {
			err = ferr
			return
		}
		if _, ok := f.slots[slot.ID]; !ok {
			err = domain.ErrSlotNotFound
			return
		}
		f.slots[slot.ID] = copySlot(slot)
	})
	return err
}

func (f *fakeStore) GetService(ctx context.Context, serviceID string) (svc domain.Service, err error) {
	f.read(ctx, func() {
		s, ok := f.services[serviceID]
		if !ok {
			err = domain.ErrServiceNotFound
			return
		}
		svc = s
	})
	return svc, err
}

func (f *fakeStore) CreateSession(ctx context.Context, session domain.Session) (err error) {
	f.read(ctx, func() {
		for _, s := range f.sessions {
			if s.SlotID == session.SlotID && s.Status != domain.SessionStatusCanceled {
				err = domain.ErrSlotHeld
				return
			}
		}
		f.sessions[session.ID] = session
	})
	return err
}

func (f *fakeStore) GetSession(ctx context.Context, sessionID string) (session domain.Session, err error) {
	f.read(ctx, func() {
		s, ok := f.sessions[sessionID]
		if !ok {
			err = domain.ErrSessionNotFound
			return
		}
		session = s
	})
	return session, err
}

func (f *fakeStore) GetSessionForUpdate(ctx context.Context, sessionID string) (domain.Session, error) {
	return f.GetSession(ctx, sessionID)
}

func (f *fakeStore) FindActiveSessionBySlot(ctx context.Context, slotID string) (found *domain.Session, err error) {
	f.read(ctx, func() {
		for _, s := range f.sessions {
			if s.SlotID == slotID && s.Status != domain.SessionStatusCanceled {
				cp := s
				found = &cp
				return
			}
		}
	})
	return found, nil
}

func (f *fakeStore) UpdateSession(ctx context.Context, session domain.Session) (err error) {
	f.read(ctx, func() {
		if _, ok := f.sessions[session.ID]; !ok {
			err = domain.ErrSessionNotFound
			return
		}
		f.sessions[session.ID] = session
	})
	return err
}

func (f *fakeStore) GetPaymentBySession(ctx context.Context, sessionID string) (payment *domain.Payment, err error) {
	f.read(ctx, func() {
		if p, ok := f.payments[sessionID]; ok {
			payment = &p
		}
	})
	return payment, nil
}

func (f *fakeStore) ListLapsedHoldSlotIDs(ctx context.Context, now time.Time, mentorID string) (ids []string, err error) {
	f.read(ctx, func() {
		for id, s := range f.slots {
			if mentorID != "" && s.MentorID != mentorID {
				continue
			}
			if s.HoldLapsed(now) {
				ids = append(ids, id)
			}
		}
	})
	sort.Strings(ids)
	return ids, nil
}

func (f *fakeStore) CancelStaleRequested(ctx context.Context, mentorID string, createdBefore, now time.Time, reason string) (out []domain.Session, err error) {
	f.read(ctx, func() {
		for id, s := range f.sessions {
			if mentorID != "" && s.MentorID != mentorID {
				continue
			}
			if s.Status != domain.SessionStatusRequested || !s.CreatedAt.Before(createdBefore) {
				continue
			}
			cancelSession(&s, reason, now)
			f.sessions[id] = s
			out = append(out, s)
		}
	})
	return out, nil
}

func (f *fakeStore) FreeHeldSlots(ctx context.Context, slotIDs []string) (n int, err error) {
	f.read(ctx, func() {
		for _, id := range slotIDs {
			s, ok := f.slots[id]
			if !ok || s.Status != domain.SlotStatusHeld {
				continue
			}
			freeSlot(&s)
			f.slots[id] = s
			n++
		}
	})
	return n, nil
}

func (f *fakeStore) ListFreeSlots(ctx context.Context, mentorID string, from time.Time) (out []domain.Slot, err error) {
	f.read(ctx, func() {
		for _, s := range f.slots {
			if s.MentorID == mentorID && s.Status == domain.SlotStatusFree && s.StartsAt.After(from) {
				out = append(out, copySlot(s))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

func (f *fakeStore) ListSessionsByMentor(ctx context.Context, mentorID string) (out []domain.Session, err error) {
	f.read(ctx, func() {
		for _, s := range f.sessions {
			if s.MentorID == mentorID {
				out = append(out, s)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, nil
}

// helpers for assertions, safe to call outside a tx

func (f *fakeStore) slot(id string) domain.Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copySlot(f.slots[id])
}

func (f *fakeStore) session(id string) domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessions[id]
}

func (f *fakeStore) sessionsForSlot(slotID string) []domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Session
	for _, s := range f.sessions {
		if s.SlotID == slotID {
			out = append(out, s)
		}
	}
	return out
}

func copySlot(s domain.Slot) domain.Slot {
	if s.HoldExpiry != nil {
		exp := *s.HoldExpiry
		s.HoldExpiry = &exp
	}
	return s
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.BookingEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, evt domain.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) types() []domain.BookingEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.BookingEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var errStoreDown = errors.New("store down")
