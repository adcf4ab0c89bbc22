package lock

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Compare-and-delete: a caller whose lease expired and was re-acquired by
// someone else must not delete the new owner's lease.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisManager stores leases as plain keys with a PX expiry.
type RedisManager struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisOption func(*RedisManager)

func WithPrefix(prefix string) RedisOption {
	return func(m *RedisManager) {
		m.prefix = strings.Trim(prefix, ":")
	}
}

func WithTTL(d time.Duration) RedisOption {
	return func(m *RedisManager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

func NewRedisManager(rdb *redis.Client, opts ...RedisOption) *RedisManager {
	m := &RedisManager{
		rdb:    rdb,
		prefix: "lock",
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *RedisManager) Acquire(ctx context.Context, key string) (string, bool, error) {
	token := uuid.NewString()
	ok, err := m.rdb.SetNX(ctx, m.key(key), token, m.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

func (m *RedisManager) Release(ctx context.Context, key, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, m.rdb, []string{m.key(key)}, token).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (m *RedisManager) key(key string) string {
	if m.prefix == "" {
		return key
	}
	return m.prefix + ":" + key
}
