package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

var _ Slot = (*PebbleSlot)(nil)

// PebbleSlot stores values in a Pebble database directory.
type PebbleSlot struct {
	db *pebble.DB
}

// OpenPebble opens (or creates) the Pebble database in dir.
func OpenPebble(dir string) (*PebbleSlot, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble store: %w", err)
	}
	return &PebbleSlot{db: db}, nil
}

// Get returns the value stored under key.
func (s *PebbleSlot) Get(_ context.Context, key string) ([]byte, error) {
	v, closer, err := s.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrSlotEmpty
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

// Put overwrites the value stored under key with a synced write.
func (s *PebbleSlot) Put(_ context.Context, key string, value []byte) error {
	return s.db.Set([]byte(key), value, pebble.Sync)
}

// Name returns "pebble".
func (s *PebbleSlot) Name() string {
	return "pebble"
}

// Close closes the database.
func (s *PebbleSlot) Close() error {
	return s.db.Close()
}
