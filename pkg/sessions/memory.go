package sessions

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultCapacity bounds a MemoryStore when no capacity is given
const DefaultCapacity = 100000

// MemoryStore keeps sessions in a size-bounded LRU. When full, the least
// recently used session is evicted, which logs that user out.
type MemoryStore struct {
	cache *expirable.LRU[string, Session]
	now   func() time.Time
}

// NewMemoryStore creates an in-process store. ttl is the upper bound on an
// entry's lifetime; Get also honours each session's own ExpiresAt.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, Session](capacity, nil, ttl),
		now:   time.Now,
	}
}

// Put implements Store
func (m *MemoryStore) Put(_ context.Context, handle string, s Session) error {
	m.cache.Add(storeKey(handle), s)
	return nil
}

// Get implements Store
func (m *MemoryStore) Get(_ context.Context, handle string) (*Session, error) {
	key := storeKey(handle)
	s, ok := m.cache.Get(key)
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !s.ExpiresAt.IsZero() && !m.now().Before(s.ExpiresAt) {
		m.cache.Remove(key)
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

// Delete implements Store
func (m *MemoryStore) Delete(_ context.Context, handle string) error {
	m.cache.Remove(storeKey(handle))
	return nil
}

// Len returns the number of live entries
func (m *MemoryStore) Len() int {
	return m.cache.Len()
}

// Close implements Store
func (m *MemoryStore) Close() error {
	m.cache.Purge()
	return nil
}
