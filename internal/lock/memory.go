package lock

import (
	"context"
	"sync"
	"time"

	"github.com/cimillas/mentor-booking/services/reservations/internal/clock"
	"github.com/google/uuid"
)

// MemoryManager is a single-process Manager for tests and local runs without
// Redis. It honors the same TTL and ownership rules as RedisManager.
type MemoryManager struct {
	mu     sync.Mutex
	clock  clock.Clock
	ttl    time.Duration
	leases map[string]lease
}

type lease struct {
	token     string
	expiresAt time.Time
}

func NewMemoryManager(clk clock.Clock, ttl time.Duration) *MemoryManager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryManager{
		clock:  clk,
		ttl:    ttl,
		leases: make(map[string]lease),
	}
}

func (m *MemoryManager) Acquire(_ context.Context, key string) (string, bool, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if l, ok := m.leases[key]; ok && l.expiresAt.After(now) {
		return "", false, nil
	}
	token := uuid.NewString()
	m.leases[key] = lease{token: token, expiresAt: now.Add(m.ttl)}
	return token, true, nil
}

func (m *MemoryManager) Release(_ context.Context, key, token string) (bool, error) {
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.leases[key]
	if !ok || l.token != token {
		return false, nil
	}
	delete(m.leases, key)
	return l.expiresAt.After(now), nil
}
