package notify

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Marks records which (channel, order) pairs were already notified.
type Marks interface {
	// Claim returns true when the key was not marked yet and is now marked.
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// MemoryMarks is a process-local mark set bounded by TTL and entry count.
// When full, the oldest mark is evicted.
type MemoryMarks struct {
	mu      sync.Mutex
	ttl     time.Duration
	max     int
	now     func() time.Time
	expires map[string]time.Time
	order   []string
}

func NewMemoryMarks(ttl time.Duration, max int) *MemoryMarks {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if max <= 0 {
		max = 10000
	}
	return &MemoryMarks{
		ttl:     ttl,
		max:     max,
		now:     time.Now,
		expires: make(map[string]time.Time),
	}
}

func (m *MemoryMarks) Claim(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if expiry, ok := m.expires[key]; ok && now.Before(expiry) {
		return false, nil
	}
	if _, ok := m.expires[key]; ok {
		m.forget(key)
	}
	m.order = append(m.order, key)
	m.expires[key] = now.Add(m.ttl)
	m.evict(now)
	return true, nil
}

func (m *MemoryMarks) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.expires[key]; ok {
		delete(m.expires, key)
		m.forget(key)
	}
	return nil
}

// forget removes key from the insertion order. Callers hold m.mu.
func (m *MemoryMarks) forget(key string) {
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

func (m *MemoryMarks) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.expires[key]
	return ok && m.now().Before(expiry)
}

func (m *MemoryMarks) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.expires)
}

func (m *MemoryMarks) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires = make(map[string]time.Time)
	m.order = nil
}

// evict drops released, expired and overflow entries from the front of the
// insertion order. Callers hold m.mu.
func (m *MemoryMarks) evict(now time.Time) {
	for len(m.order) > 0 {
		key := m.order[0]
		expiry, ok := m.expires[key]
		switch {
		case !ok:
		case !now.Before(expiry):
			delete(m.expires, key)
		case len(m.expires) > m.max:
			delete(m.expires, key)
		default:
			return
		}
		m.order = m.order[1:]
	}
}

// RedisMarks shares marks between counter processes through SETNX with a TTL.
type RedisMarks struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisMarks(client *redis.Client, ttl time.Duration) *RedisMarks {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisMarks{client: client, prefix: "notified:", ttl: ttl}
}

func (m *RedisMarks) Claim(ctx context.Context, key string) (bool, error) {
	return m.client.SetNX(ctx, m.prefix+key, "1", m.ttl).Result()
}

func (m *RedisMarks) Release(ctx context.Context, key string) error {
	return m.client.Del(ctx, m.prefix+key).Err()
}
