package notifier

import (
	"context"
	"time"

	"github.com/hh6422123-cyber/Eak/internal/store"
)

// Trigger names the producer that asked for a redelivery.
type Trigger int

const (
	// TriggerTick comes from the poll timer.
	TriggerTick Trigger = iota
	// TriggerSignal comes from a storage change signal for the watched key.
	TriggerSignal
)

func (t Trigger) String() string {
	if t == TriggerSignal {
		return "signal"
	}
	return "tick"
}

// changeSource merges the poll timer and the storage change signal into one
// trigger stream. Triggers coalesce: while one is pending, more are dropped,
// since every delivery re-reads the full current state anyway.
type changeSource struct {
	C <-chan Trigger

	done <-chan struct{}
}

// newChangeSource starts both producers. signals may be nil for poll-only
// operation. The returned source stops when ctx is done; done is closed once
// both producers have exited.
func newChangeSource(ctx context.Context, interval time.Duration, signals <-chan store.Change, key string) *changeSource {
	out := make(chan Trigger, 1)
	done := make(chan struct{})

	emit := func(t Trigger) {
		select {
		case out <- t:
		default:
		}
	}

	producers := make(chan struct{}, 2)

	go func() {
		defer func() { producers <- struct{}{} }()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				emit(TriggerTick)
			}
		}
	}()

	go func() {
		defer func() { producers <- struct{}{} }()

		if signals == nil {
			<-ctx.Done()
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-signals:
				if !ok {
					// Watch ended early; the timer keeps the source alive.
					<-ctx.Done()
					return
				}
				if c.Key != key {
					continue
				}
				emit(TriggerSignal)
			}
		}
	}()

	go func() {
		<-producers
		<-producers
		close(done)
	}()

	return &changeSource{C: out, done: done}
}
