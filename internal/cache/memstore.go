package cache

import "sync"

// MemStore is an in-memory Store for tests and for cache-disabled runs
// that still want per-process reuse.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
	closed  bool
}

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string][]byte)}
}

func (s *MemStore) Get(key Key) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	code, ok := s.entries[key.String()]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(code))
	copy(out, code)
	return out, nil
}

func (s *MemStore) Put(key Key, code []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	stored := make([]byte, len(code))
	copy(stored, code)
	s.entries[key.String()] = stored
	return nil
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}

// Len reports the number of stored entries.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
