// Package persist stores the conversation list in a single durable
// key-value slot.
package persist

import (
	"context"
	"errors"
)

// ErrSlotEmpty is returned by Slot.Get when the key holds no value.
var ErrSlotEmpty = errors.New("slot is empty")

// Slot is a durable key-value store holding opaque values.
type Slot interface {
	// Get returns the value stored under key, or ErrSlotEmpty.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put overwrites the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Name identifies the backend in logs and metrics.
	Name() string

	// Close releases the backend.
	Close() error
}
