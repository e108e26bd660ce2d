package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/InfiniteCod3/chatplugins/internal/kv"
)

// BucketName is the JetStream key-value bucket holding plugin state.
const BucketName = "CHATPLUGINS"

// KV stores records in a JetStream key-value bucket.
type KV struct {
	bucket jetstream.KeyValue
}

// EnsureKV opens the plugin bucket, creating it on first use.
func EnsureKV(ctx context.Context, c *Client) (*KV, error) {
	js := c.JetStream()

	bucket, err := js.KeyValue(ctx, BucketName)
	if err == nil {
		return &KV{bucket: bucket}, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("failed to open bucket %s: %w", BucketName, err)
	}

	bucket, err = js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      BucketName,
		Description: "Chat plugin state",
		History:     1,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket %s: %w", BucketName, err)
	}
	return &KV{bucket: bucket}, nil
}

// Get reads the latest revision of key.
func (s *KV) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.bucket.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return entry.Value(), nil
}

// Put writes a new revision of key.
func (s *KV) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.bucket.Put(ctx, key, value); err != nil {
		return fmt.Errorf("failed to put %s: %w", key, err)
	}
	return nil
}
