package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cimillas/mentor-booking/services/reservations/internal/clock"
)

func TestWithLock(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("runs fn and releases lease", func(t *testing.T) {
		m := NewMemoryManager(clock.NewFixed(now), DefaultTTL)

		got, err := WithLock(context.Background(), m, "slot-1", func(ctx context.Context) (string, error) {
			if _, ok, _ := m.Acquire(ctx, "slot-1"); ok {
				t.Fatalf("expected lease to be held inside fn")
			}
			return "done", nil
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got != "done" {
			t.Fatalf("expected result done, got %q", got)
		}
		if _, ok, _ := m.Acquire(context.Background(), "slot-1"); !ok {
			t.Fatalf("expected lease released after fn")
		}
	})

	t.Run("releases lease when fn fails", func(t *testing.T) {
		m := NewMemoryManager(clock.NewFixed(now), DefaultTTL)
		boom := errors.New("boom")

		_, err := WithLock(context.Background(), m, "slot-1", func(context.Context) (int, error) {
			return 0, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected fn error, got %v", err)
		}
		if _, ok, _ := m.Acquire(context.Background(), "slot-1"); !ok {
			t.Fatalf("expected lease released after failure")
		}
	})

	t.Run("releases lease when fn panics", func(t *testing.T) {
		m := NewMemoryManager(clock.NewFixed(now), DefaultTTL)

		func() {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic to propagate")
				}
			}()
			_, _ = WithLock(context.Background(), m, "slot-1", func(context.Context) (int, error) {
				panic("kaboom")
			})
		}()

		if _, ok, _ := m.Acquire(context.Background(), "slot-1"); !ok {
			t.Fatalf("expected lease released after panic")
		}
	})

	t.Run("contended lease skips fn", func(t *testing.T) {
		m := NewMemoryManager(clock.NewFixed(now), DefaultTTL)
		if _, ok, _ := m.Acquire(context.Background(), "slot-1"); !ok {
			t.Fatalf("expected first acquire to succeed")
		}

		called := false
		_, err := WithLock(context.Background(), m, "slot-1", func(context.Context) (int, error) {
			called = true
			return 0, nil
		})
		if !errors.Is(err, ErrContended) {
			t.Fatalf("expected ErrContended, got %v", err)
		}
		if called {
			t.Fatalf("expected fn not to run")
		}
	})

	t.Run("store failure wraps ErrUnavailable", func(t *testing.T) {
		_, err := WithLock(context.Background(), failingManager{}, "slot-1", func(context.Context) (int, error) {
			t.Fatalf("fn must not run")
			return 0, nil
		})
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("releases even when caller context is canceled", func(t *testing.T) {
		m := NewMemoryManager(clock.NewFixed(now), DefaultTTL)
		ctx, cancel := context.WithCancel(context.Background())

		_, _ = WithLock(ctx, m, "slot-1", func(context.Context) (int, error) {
			cancel()
			return 0, nil
		})
		if _, ok, _ := m.Acquire(context.Background(), "slot-1"); !ok {
			t.Fatalf("expected lease released after cancellation")
		}
	})
}

type failingManager struct{}

func (failingManager) Acquire(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection refused")
}

func (failingManager) Release(context.Context, string, string) (bool, error) {
	return false, nil
}
