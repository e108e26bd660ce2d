// Package kv provides single-record key-value backends for local plugin state.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// ErrLocked is returned when another process holds the database file.
var ErrLocked = errors.New("store is locked by another process")

// KV stores opaque records under fixed keys.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}
