package querycache

import (
	"context"
	"sync"
)

// MemoryStore is a thread-safe in-process Store. With a positive maxEntries
// it evicts the least recently used entry; otherwise it grows until flushed.
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	entries    map[string][]byte
	order      []string // oldest first, tracked only when bounded
}

// NewMemoryStore creates a MemoryStore. maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		maxEntries: maxEntries,
		entries:    make(map[string][]byte),
	}
}

// Get retrieves an entry.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	s.moveToEnd(key)
	return data, true, nil
}

// Set adds an entry, evicting the oldest if full.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[key]; ok {
		s.entries[key] = value
		s.moveToEnd(key)
		return nil
	}

	if s.bounded() {
		for len(s.entries) >= s.maxEntries && len(s.order) > 0 {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.entries, oldest)
		}
		s.order = append(s.order, key)
	}
	s.entries[key] = value
	return nil
}

// Flush removes every entry.
func (s *MemoryStore) Flush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string][]byte)
	s.order = nil
	return nil
}

// Len returns the number of entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) bounded() bool {
	return s.maxEntries > 0
}

func (s *MemoryStore) moveToEnd(key string) {
	if !s.bounded() {
		return
	}
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			s.order = append(s.order, key)
			return
		}
	}
}
