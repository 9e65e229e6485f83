package session

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps sessions in a bounded, expiring LRU. It is suitable for
// a single process; sessions are lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, *Record]
	now   func() time.Time
}

// NewMemoryStore creates a store holding at most capacity sessions, each
// evicted no later than ttl after its last write.
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: expirable.NewLRU[string, *Record](capacity, nil, ttl),
		now:   time.Now,
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.cache.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	if !m.now().Before(rec.ExpiresAt) {
		m.cache.Remove(id)
		return nil, ErrNotFound
	}
	return &Record{
		ID:        rec.ID,
		Values:    cloneValues(rec.Values),
		Version:   rec.Version,
		ExpiresAt: rec.ExpiresAt,
	}, nil
}

func (m *MemoryStore) Save(_ context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.cache.Peek(rec.ID)
	switch {
	case rec.Version == 0 && exists:
		return ErrConflict
	case rec.Version != 0 && (!exists || current.Version != rec.Version):
		return ErrConflict
	}

	stored := &Record{
		ID:        rec.ID,
		Values:    cloneValues(rec.Values),
		Version:   rec.Version + 1,
		ExpiresAt: rec.ExpiresAt,
	}
	m.cache.Add(rec.ID, stored)
	rec.Version = stored.Version
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(id)
	return nil
}

// DeleteExpired drops records whose own expiry has passed. The LRU's TTL
// already bounds memory; this catches records with a shorter lifetime.
func (m *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, id := range m.cache.Keys() {
		rec, ok := m.cache.Peek(id)
		if ok && !now.Before(rec.ExpiresAt) {
			m.cache.Remove(id)
			n++
		}
	}
	return n, nil
}
