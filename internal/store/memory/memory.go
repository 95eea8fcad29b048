// Package memory implements an in-process storage area. Several room stores
// sharing one Area behave like browser tabs sharing local storage.
package memory

import (
	"context"
	"sync"

	"github.com/hh6422123-cyber/Eak/internal/store"
)

// Area keeps blobs in a map guarded by a mutex.
type Area struct {
	mu     sync.RWMutex
	data   map[string][]byte
	quota  int
	fail   error
	closed bool

	changes store.Broadcaster
}

// Option configures an Area.
type Option func(*Area)

// WithQuota limits the total size of keys plus values in bytes.
// Zero disables the limit.
func WithQuota(bytes int) Option {
	return func(a *Area) { a.quota = bytes }
}

// New creates an empty memory area.
func New(opts ...Option) *Area {
	a := &Area{data: make(map[string][]byte)}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Fail makes every subsequent Get and Set return err. A nil err restores
// normal operation.
func (a *Area) Fail(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail = err
}

// Get returns a copy of the value stored under key.
func (a *Area) Get(_ context.Context, key string) ([]byte, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.usable(); err != nil {
		return nil, false, err
	}
	v, ok := a.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set replaces the value under key and signals watchers.
func (a *Area) Set(_ context.Context, key string, value []byte) error {
	a.mu.Lock()
	if err := a.usable(); err != nil {
		a.mu.Unlock()
		return err
	}
	if a.quota > 0 && a.sizeWith(key, value) > a.quota {
		a.mu.Unlock()
		return store.ErrQuotaExceeded
	}
	a.data[key] = append([]byte(nil), value...)
	a.mu.Unlock()

	a.changes.Publish(key)
	return nil
}

// Watch subscribes to writes made through this area.
func (a *Area) Watch(ctx context.Context) (<-chan store.Change, error) {
	return a.changes.Watch(ctx)
}

// Close drops all data and detaches watchers.
func (a *Area) Close() error {
	a.mu.Lock()
	a.closed = true
	a.data = make(map[string][]byte)
	a.mu.Unlock()

	a.changes.Close()
	return nil
}

func (a *Area) usable() error {
	if a.closed {
		return store.ErrUnavailable
	}
	return a.fail
}

// sizeWith reports the area size if key were set to value. Callers hold mu.
func (a *Area) sizeWith(key string, value []byte) int {
	total := len(key) + len(value)
	for k, v := range a.data {
		if k == key {
			continue
		}
		total += len(k) + len(v)
	}
	return total
}
