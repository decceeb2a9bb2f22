package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryEntry struct {
	token   string
	expires time.Time
}

// MemoryLocker holds leases in process. Suitable for a single replica.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]memoryEntry
	now  func() time.Time
}

// NewMemoryLocker creates an empty in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.held[key]; ok && now.Before(e.expires) {
		return nil, ErrLeaseHeld
	}

	token := uuid.NewString()
	m.held[key] = memoryEntry{token: token, expires: now.Add(effectiveTTL(ttl))}
	return &memoryLease{locker: m, key: key, token: token}, nil
}

// Held reports whether key is currently leased
func (m *MemoryLocker) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.held[key]
	return ok && m.now().Before(e.expires)
}

func (m *MemoryLocker) release(key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.held[key]
	if !ok {
		return nil
	}
	if e.token != token {
		return ErrLeaseLost
	}
	delete(m.held, key)
	return nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	token  string
	once   sync.Once
	err    error
}

func (l *memoryLease) Key() string { return l.key }

func (l *memoryLease) Release(context.Context) error {
	l.once.Do(func() { l.err = l.locker.release(l.key, l.token) })
	return l.err
}
