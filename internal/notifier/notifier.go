// Package notifier delivers a room's current message list to subscribers
// whenever it may have changed. There is no push transport: a poll timer and
// the storage area's change signal both trigger a re-read of the full list.
package notifier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hh6422123-cyber/Eak/internal/log"
	"github.com/hh6422123-cyber/Eak/internal/roomstore"
	"github.com/hh6422123-cyber/Eak/internal/store"
)

// DefaultPollInterval is used when Options.PollInterval is zero.
const DefaultPollInterval = time.Second

// Fetcher returns a room's messages sorted by timestamp, empty when the room
// is missing or storage cannot be read.
type Fetcher interface {
	Messages(ctx context.Context, roomID string) []roomstore.Message
}

// Callback receives the full, timestamp-sorted message list.
type Callback func(messages []roomstore.Message)

// Options configures a Notifier.
type Options struct {
	// Key is the storage key whose change signals trigger a delivery.
	Key          string
	PollInterval time.Duration
	Logger       *zerolog.Logger
}

// Notifier creates subscriptions.
type Notifier struct {
	fetch Fetcher
	watch store.Watcher
	key   string
	every time.Duration
	log   *zerolog.Logger
}

// New builds a notifier reading through fetch. watch may be nil, in which
// case subscriptions rely on polling only.
func New(fetch Fetcher, watch store.Watcher, opts Options) *Notifier {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	l := log.OrNop(opts.Logger).With().Str("component", "notifier").Logger()
	return &Notifier{
		fetch: fetch,
		watch: watch,
		key:   opts.Key,
		every: opts.PollInterval,
		log:   &l,
	}
}

// Subscribe delivers the current messages of roomID to cb before returning,
// then again on every poll tick and every change signal for the notifier's
// key. Deliveries are not diffed and never overlap. The subscription ends
// when Unsubscribe is called or ctx is done; until then its timer keeps
// running.
func (n *Notifier) Subscribe(ctx context.Context, roomID string, cb Callback) *Subscription {
	subCtx, cancel := context.WithCancel(ctx)

	sub := &Subscription{
		roomID: roomID,
		fetch:  n.fetch,
		cb:     cb,
		cancel: cancel,
		done:   make(chan struct{}),
		log:    n.log,
	}
	sub.alive.Store(true)

	sub.deliver(subCtx, nil)

	var signals <-chan store.Change
	if n.watch != nil {
		ch, err := n.watch.Watch(subCtx)
		if err != nil {
			n.log.Warn().Err(err).Str("room_id", roomID).Msg("storage signal unavailable, polling only")
		} else {
			signals = ch
		}
	}

	src := newChangeSource(subCtx, n.every, signals, n.key)
	go sub.run(subCtx, src)

	return sub
}

// State is the lifecycle state of a subscription.
type State int

const (
	// Active subscriptions keep delivering.
	Active State = iota
	// Stopped subscriptions never deliver again.
	Stopped
)

func (s State) String() string {
	if s == Stopped {
		return "stopped"
	}
	return "active"
}

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	roomID string
	fetch  Fetcher
	cb     Callback
	cancel context.CancelFunc
	done   chan struct{}
	log    *zerolog.Logger

	once       sync.Once
	alive      atomic.Bool
	inCallback atomic.Bool
	deliveries atomic.Int64
}

// RoomID returns the subscribed room.
func (s *Subscription) RoomID() string {
	return s.roomID
}

// State reports whether the subscription is still delivering.
func (s *Subscription) State() State {
	if s.alive.Load() {
		return Active
	}
	return Stopped
}

// Deliveries returns how many lists have been handed to the callback.
func (s *Subscription) Deliveries() int64 {
	return s.deliveries.Load()
}

// Unsubscribe stops the timer, detaches the change signal and prevents any
// delivery that has not yet started. It is idempotent and may be called from
// inside the callback. When no delivery is in progress it also waits for the
// subscription's goroutines to exit; otherwise it returns without waiting
// and the running delivery is the last one.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.alive.Store(false)
		s.cancel()
	})
	if s.inCallback.Load() {
		return
	}
	<-s.done
}

// Done is closed after the subscription has fully stopped.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) run(ctx context.Context, src *changeSource) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			s.alive.Store(false)
			<-src.done
			return
		case t := <-src.C:
			s.deliver(ctx, &t)
		}
	}
}

// deliver re-reads the room and hands the list to the callback if the
// subscription is still alive. inCallback is raised before alive is checked
// so Unsubscribe can tell whether a delivery may still start.
func (s *Subscription) deliver(ctx context.Context, trigger *Trigger) {
	s.inCallback.Store(true)
	defer s.inCallback.Store(false)

	if !s.alive.Load() || ctx.Err() != nil {
		return
	}

	messages := s.fetch.Messages(ctx, s.roomID)
	if !s.alive.Load() {
		return
	}

	if e := s.log.Trace(); e.Enabled() {
		src := "initial"
		if trigger != nil {
			src = trigger.String()
		}
		e.Str("room_id", s.roomID).Str("trigger", src).Int("messages", len(messages)).Msg("delivering")
	}

	s.deliveries.Add(1)
	s.safeCall(messages)
}

// safeCall runs the callback, turning a panic into a logged error so one bad
// delivery does not kill the subscription.
func (s *Subscription) safeCall(messages []roomstore.Message) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err, ok := recovered.(error)
			if !ok {
				err = fmt.Errorf("%v", recovered)
			}
			s.log.Error().Err(err).Str("room_id", s.roomID).Msg("subscriber callback panicked")
		}
	}()

	s.cb(messages)
}
