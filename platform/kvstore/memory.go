package kvstore

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     string
	storedAt  time.Time
	permanent bool
}

// MemoryStore keeps values in process memory. Used in development and tests:
// nothing survives a restart, and permanent values are only bounded by Delete.
type MemoryStore struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       Clock
	retention time.Duration
}

// NewMemoryStore creates an empty store. A nil clock uses time.Now.
func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), now: now, retention: DefaultRetention}
}

func (m *MemoryStore) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, storedAt: m.now()}
	return nil
}

func (m *MemoryStore) PutPermanent(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, storedAt: m.now(), permanent: true}
	return nil
}

func (m *MemoryStore) GetFresh(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if m.expired(entry) || isStale(entry.storedAt, m.now(), ttl) {
		delete(m.entries, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.entries, k)
	}
	return nil
}

// Prune drops every non-permanent entry older than the retention and
// returns how many were removed.
func (m *MemoryStore) Prune() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed
}

func (m *MemoryStore) expired(e memoryEntry) bool {
	return !e.permanent && isStale(e.storedAt, m.now(), m.retention)
}

// Len returns the number of stored keys, stale ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
