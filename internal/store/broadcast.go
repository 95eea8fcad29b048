package store

import (
	"context"
	"sync"
)

const watchBuffer = 16

// Broadcaster fans a Change out to every active watcher.
// The zero value is ready to use.
type Broadcaster struct {
	mu       sync.Mutex
	watchers map[chan Change]struct{}
	closed   bool
}

// Watch registers a new watcher that stays attached until ctx is done.
func (b *Broadcaster) Watch(ctx context.Context) (<-chan Change, error) {
	ch := make(chan Change, watchBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrUnavailable
	}
	if b.watchers == nil {
		b.watchers = make(map[chan Change]struct{})
	}
	b.watchers[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.detach(ch)
	}()

	return ch, nil
}

// Publish notifies all watchers about key. Slow watchers miss the signal.
func (b *Broadcaster) Publish(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.watchers {
		select {
		case ch <- Change{Key: key}:
		default:
			// Drop if slow consumer.
		}
	}
}

// Close detaches every watcher and refuses new ones.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for ch := range b.watchers {
		delete(b.watchers, ch)
		close(ch)
	}
}

// Len reports the number of attached watchers.
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watchers)
}

func (b *Broadcaster) detach(ch chan Change) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.watchers[ch]; ok {
		delete(b.watchers, ch)
		close(ch)
	}
}
