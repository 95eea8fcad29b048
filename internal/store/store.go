package store

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable reports a disabled, closed or unreachable storage area.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrQuotaExceeded reports a write that would exceed the area quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Change signals that the value under Key was rewritten.
type Change struct {
	Key string
}

// Reader reads raw values out of a storage area.
type Reader interface {
	// Get returns the value stored under key. found is false when the key
	// has never been written.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
}

// Writer replaces raw values in a storage area.
type Writer interface {
	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
}

// Watcher emits a Change whenever some key in the area is rewritten,
// including writes made by other processes sharing the area when the
// backend can observe them. The channel is closed once ctx is done.
// Signals are best effort and may be dropped for slow consumers.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}

// Area is a shared key-value storage area holding opaque blobs.
type Area interface {
	Reader
	Writer
	Watcher

	// Close releases the underlying resources.
	Close() error
}

// Backend names accepted by configuration.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)
