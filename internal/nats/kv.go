package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/knowledge-chat/internal/persist"
)

// DefaultBucket is the KV bucket holding the durable slot.
const DefaultBucket = "CHAT_STATE"

var _ persist.Slot = (*KVSlot)(nil)

// KVSlot is a persist.Slot backed by a JetStream key-value bucket.
type KVSlot struct {
	kv jetstream.KeyValue
}

// OpenKV binds to bucket, creating it when missing. Only the latest value
// of each key is retained.
func OpenKV(ctx context.Context, client *Client, bucket string) (*KVSlot, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	js := client.JetStream()

	kv, err := js.KeyValue(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:      bucket,
			Description: "Knowledge chat conversation state",
			History:     1,
			Storage:     jetstream.FileStorage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to bind KV bucket %s: %w", bucket, err)
	}

	return &KVSlot{kv: kv}, nil
}

// Get returns the value stored under key.
func (s *KVSlot) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, persist.ErrSlotEmpty
	}
	if err != nil {
		return nil, err
	}
	return entry.Value(), nil
}

// Put overwrites the value stored under key.
func (s *KVSlot) Put(ctx context.Context, key string, value []byte) error {
	_, err := s.kv.Put(ctx, key, value)
	return err
}

// Name returns "nats".
func (s *KVSlot) Name() string {
	return "nats"
}

// Close releases the bucket binding. The connection belongs to the caller
// of OpenKV and stays open.
func (s *KVSlot) Close() error {
	return nil
}
