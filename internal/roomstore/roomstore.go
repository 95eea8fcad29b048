// Package roomstore keeps chat rooms and their messages in a single JSON
// table stored under one key of a shared storage area.
//
// Every mutation reads the whole table, changes it in memory and writes the
// whole table back. Mutations are serialized within one Store; nothing
// coordinates Stores in different processes, so concurrent writers sharing
// an area can overwrite each other's changes.
package roomstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hh6422123-cyber/Eak/internal/log"
	"github.com/hh6422123-cyber/Eak/internal/store"
	"github.com/hh6422123-cyber/Eak/internal/utils"
)

// Defaults applied by New for zero option values.
const (
	DefaultKey            = "roomchat.rooms"
	DefaultRoomIDDigits   = 6
	DefaultCreateAttempts = 10
)

// ErrNoFreeRoomID is returned when every generated room id collided.
var ErrNoFreeRoomID = errors.New("no free room id")

// CreateResult is the outcome of a create-room attempt.
type CreateResult int

const (
	// CreateOK means the room was created and persisted.
	CreateOK CreateResult = iota
	// CreateCollision means the id was already taken; nothing changed.
	CreateCollision
	// CreateAbandoned means persisting the new room failed and the write was
	// dropped. The Alerter has been notified.
	CreateAbandoned
)

// OK reports whether the room was created.
func (r CreateResult) OK() bool {
	return r == CreateOK
}

func (r CreateResult) String() string {
	switch r {
	case CreateOK:
		return "created"
	case CreateCollision:
		return "collision"
	case CreateAbandoned:
		return "abandoned"
	default:
		return fmt.Sprintf("CreateResult(%d)", int(r))
	}
}

// Options configures a Store.
type Options struct {
	// Key is the storage key holding the table.
	Key string
	// Latency is waited before create, check and send to mirror a remote call.
	Latency time.Duration
	// RoomIDDigits is the length of ids made by CreateRandomRoom.
	RoomIDDigits int
	// CreateAttempts bounds collision retries in CreateRandomRoom.
	CreateAttempts int

	Now          func() time.Time
	NewMessageID func() string
	NewRoomID    func(digits int) string
	Alerter      Alerter
	Logger       *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.Key == "" {
		o.Key = DefaultKey
	}
	if o.RoomIDDigits <= 0 {
		o.RoomIDDigits = DefaultRoomIDDigits
	}
	if o.CreateAttempts <= 0 {
		o.CreateAttempts = DefaultCreateAttempts
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewMessageID == nil {
		o.NewMessageID = utils.NewMessageID
	}
	if o.NewRoomID == nil {
		o.NewRoomID = utils.NewRoomID
	}
	o.Logger = log.OrNop(o.Logger)
	if o.Alerter == nil {
		o.Alerter = LogAlerter{Log: o.Logger}
	}
	return o
}

// Store performs room and message operations on a storage area.
type Store struct {
	area store.Area
	opts Options
	log  *zerolog.Logger

	mu sync.Mutex
}

// New creates a Store on area.
func New(area store.Area, opts Options) *Store {
	opts = opts.withDefaults()
	l := opts.Logger.With().Str("component", "roomstore").Str("key", opts.Key).Logger()
	return &Store{
		area: area,
		opts: opts,
		log:  &l,
	}
}

// Key returns the storage key owned by the store.
func (s *Store) Key() string {
	return s.opts.Key
}

// CreateRoom persists a new empty room under roomID unless it already exists.
// The error is non-nil only when ctx ends before the operation runs.
func (s *Store) CreateRoom(ctx context.Context, roomID string) (CreateResult, error) {
	if err := s.delay(ctx); err != nil {
		return CreateAbandoned, err
	}
	return s.createRoom(ctx, roomID), nil
}

// CreateRandomRoom creates a room under a freshly generated numeric id,
// retrying with a new id on each collision.
func (s *Store) CreateRandomRoom(ctx context.Context) (string, CreateResult, error) {
	for attempt := 1; attempt <= s.opts.CreateAttempts; attempt++ {
		roomID := s.opts.NewRoomID(s.opts.RoomIDDigits)

		res, err := s.CreateRoom(ctx, roomID)
		if err != nil {
			return "", res, err
		}
		if res != CreateCollision {
			return roomID, res, nil
		}
		s.log.Debug().Str("room_id", roomID).Int("attempt", attempt).Msg("room id taken, retrying")
	}
	return "", CreateCollision, fmt.Errorf("%w after %d attempts", ErrNoFreeRoomID, s.opts.CreateAttempts)
}

// RoomExists reports whether roomID is in the table. An unreadable table
// counts as empty.
func (s *Store) RoomExists(ctx context.Context, roomID string) (bool, error) {
	if err := s.delay(ctx); err != nil {
		return false, err
	}
	_, ok := s.load(ctx)[roomID]
	return ok, nil
}

// SendMessage appends a message to roomID. A missing room is ignored, and a
// failed write is reported to the Alerter rather than to the caller. The
// error is non-nil only when ctx ends before the operation runs.
func (s *Store) SendMessage(ctx context.Context, roomID, username, text string) error {
	if err := s.delay(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.load(ctx)
	room, ok := table[roomID]
	if !ok {
		s.log.Debug().Str("room_id", roomID).Msg("send to unknown room ignored")
		return nil
	}
	if room.Messages == nil {
		room.Messages = make(map[string]Message)
	}

	msg := Message{
		ID:        s.opts.NewMessageID(),
		Username:  username,
		Text:      text,
		Timestamp: s.opts.Now().UnixMilli(),
	}
	room.Messages[msg.ID] = msg
	table[roomID] = room

	if s.save(ctx, table) {
		s.log.Debug().Str("room_id", roomID).Str("message_id", msg.ID).Msg("message stored")
	}
	return nil
}

// Messages returns the messages of roomID ascending by timestamp. A missing
// room or unreadable table yields an empty slice.
func (s *Store) Messages(ctx context.Context, roomID string) []Message {
	room, ok := s.load(ctx)[roomID]
	if !ok {
		return []Message{}
	}
	return room.SortedMessages()
}

// Room returns a snapshot of roomID.
func (s *Store) Room(ctx context.Context, roomID string) (Room, bool) {
	room, ok := s.load(ctx)[roomID]
	return room, ok
}

func (s *Store) createRoom(ctx context.Context, roomID string) CreateResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	table := s.load(ctx)
	if _, exists := table[roomID]; exists {
		return CreateCollision
	}

	table[roomID] = Room{
		CreatedAt: s.opts.Now().UnixMilli(),
		Messages:  make(map[string]Message),
	}
	if !s.save(ctx, table) {
		return CreateAbandoned
	}

	s.log.Info().Str("room_id", roomID).Msg("room created")
	return CreateOK
}

// load reads the table, degrading to an empty one when the blob is missing,
// unreadable or corrupt.
func (s *Store) load(ctx context.Context) Table {
	raw, found, err := s.area.Get(ctx, s.opts.Key)
	if err != nil {
		s.log.Warn().Err(err).Msg("read rooms failed, using empty table")
		return Table{}
	}
	if !found {
		return Table{}
	}

	table, err := decodeTable(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("stored rooms are corrupt, using empty table")
		return Table{}
	}
	return table
}

// save rewrites the whole table. On failure the prior blob stays in place and
// the Alerter is notified.
func (s *Store) save(ctx context.Context, table Table) bool {
	raw, err := encodeTable(table)
	if err == nil {
		err = s.area.Set(ctx, s.opts.Key, raw)
	}
	if err != nil {
		err = fmt.Errorf("save rooms: %w", err)
		s.log.Error().Err(err).Msg("write abandoned")
		s.opts.Alerter.Alert(err)
		return false
	}
	return true
}

func (s *Store) delay(ctx context.Context) error {
	if s.opts.Latency <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(s.opts.Latency)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
