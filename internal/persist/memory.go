package persist

import (
	"context"
	"sync"
)

var _ Slot = (*MemorySlot)(nil)

// MemorySlot keeps values in process memory.
type MemorySlot struct {
	mu     sync.RWMutex
	values map[string][]byte
	puts   int
}

// NewMemorySlot creates an empty in-memory slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{values: make(map[string][]byte)}
}

// Get returns the value stored under key.
func (s *MemorySlot) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, ErrSlotEmpty
	}
	return append([]byte(nil), v...), nil
}

// Put overwrites the value stored under key.
func (s *MemorySlot) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = append([]byte(nil), value...)
	s.puts++
	return nil
}

// Puts returns the number of writes applied so far.
func (s *MemorySlot) Puts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.puts
}

// Name returns "memory".
func (s *MemorySlot) Name() string {
	return "memory"
}

// Close is a no-op.
func (s *MemorySlot) Close() error {
	return nil
}
