// Package lock provides expiring, token-owned leases used to serialize work on
// a single key across service instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTTL bounds how long a lease survives an owner that never releases it.
// It must stay well above the duration of the critical section it guards.
const DefaultTTL = 10 * time.Second

const releaseTimeout = 2 * time.Second

var (
	// ErrContended means another owner currently holds the lease. It is a
	// normal outcome, not a failure of the lock store.
	ErrContended = errors.New("resource is locked by another request, please retry")
	// ErrUnavailable wraps failures talking to the lock store.
	ErrUnavailable = errors.New("lock store unavailable")
)

// Manager hands out leases keyed by resource.
type Manager interface {
	// Acquire atomically creates the lease for key if none exists. ok is false
	// when someone else owns it.
	Acquire(ctx context.Context, key string) (token string, ok bool, err error)
	// Release deletes the lease only if it is still owned by token.
	Release(ctx context.Context, key, token string) (bool, error)
}

// WithLock runs fn while holding the lease for key and releases it on every
// exit path, panics included. It returns ErrContended without running fn when
// the lease is taken, and an error wrapping ErrUnavailable when the store
// could not be reached.
func WithLock[T any](ctx context.Context, m Manager, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	token, ok, err := m.Acquire(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("%w: acquire %s: %v", ErrUnavailable, key, err)
	}
	if !ok {
		return zero, ErrContended
	}

	defer func() {
		// The caller's context may already be canceled; the lease still has to go.
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		released, err := m.Release(relCtx, key, token)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "lock release failed", "key", key, "error", err)
		case !released:
			slog.WarnContext(ctx, "lock lease lost before release", "key", key)
		}
	}()

	return fn(ctx)
}
