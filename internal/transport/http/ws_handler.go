package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/hh6422123-cyber/Eak/internal/proto"
	"github.com/hh6422123-cyber/Eak/internal/roomstore"
)

// WSOptions tunes WebSocket sessions.
type WSOptions struct {
	// ReadLimit caps one inbound frame in bytes. Zero keeps the library default.
	ReadLimit int64
	// SendsPerWin messages may be sent per Window. Zero disables the limit.
	SendsPerWin int
	Window      time.Duration
}

// WSHandler upgrades HTTP connections and streams a room's message list to
// the client on every notifier delivery.
type WSHandler struct {
	rooms Rooms
	subs  Subscriber
	opts  WSOptions
	log   *zerolog.Logger

	sessions sessionSet
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(rooms Rooms, subs Subscriber, opts WSOptions, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		rooms: rooms,
		subs:  subs,
		opts:  opts,
		log:   logger,
	}
}

// Sessions reports the number of open sessions.
func (h *WSHandler) Sessions() int {
	return h.sessions.len()
}

// Wait blocks until every session has ended or ctx is done.
func (h *WSHandler) Wait(ctx context.Context) error {
	return h.sessions.wait(ctx)
}

// ServeHTTP serves GET /ws/rooms/{id}.
func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	roomID := strings.TrimPrefix(r.URL.Path, wsRoomsPrefix)
	if roomID == "" || strings.Contains(roomID, "/") {
		stdhttp.NotFound(w, r)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	h.sessions.add()
	defer h.sessions.done()

	if h.opts.ReadLimit > 0 {
		conn.SetReadLimit(h.opts.ReadLimit)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Only the latest list matters; an undelivered older one is replaced.
	updates := make(chan []roomstore.Message, 1)
	push := func(msgs []roomstore.Message) {
		for {
			select {
			case updates <- msgs:
				return
			default:
			}
			select {
			case <-updates:
			default:
			}
		}
	}

	sub := h.subs.Subscribe(ctx, roomID, push)
	defer sub.Unsubscribe()

	limiter := newRateLimiter(h.opts.SendsPerWin, h.opts.Window, time.Now)

	h.log.Debug().Str("room_id", roomID).Msg("ws subscriber attached")

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, roomID, limiter)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, roomID, updates)
	}()

	err = <-errCh
	cancel() // stop the other goroutine
	<-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = err.Error()
			h.log.Warn().Err(err).Str("room_id", roomID).Msg("ws connection closed with error")
		}
	}

	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, roomID string, limiter *rateLimiter) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		msg, protoErr, err := inboundToMessage(inbound)
		if err != nil {
			h.log.Warn().Err(err).Str("room_id", roomID).Msg("failed to map inbound")
			protoErr = &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "malformed data"}
		}
		if protoErr == nil && !limiter.allow() {
			protoErr = &proto.Error{Code: proto.ErrCodeRateLimited, Msg: "too many messages"}
		}
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, outboundError(protoErr)); writeErr != nil {
				return writeErr
			}
			continue
		}

		if err := h.rooms.SendMessage(ctx, roomID, msg.Username, msg.Text); err != nil {
			return err
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, roomID string, updates <-chan []roomstore.Message) error {
	for {
		select {
		case msgs := <-updates:
			if err := wsjson.Write(ctx, conn, outboundFromMessages(roomID, msgs)); err != nil {
				h.log.Error().Err(err).Str("room_id", roomID).Msg("write ws delivery")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// sessionSet counts open sessions so shutdown can wait for them.
type sessionSet struct {
	mu      sync.Mutex
	n       int
	changed chan struct{}
}

func (s *sessionSet) add() {
	s.mu.Lock()
	s.n++
	s.mu.Unlock()
}

func (s *sessionSet) done() {
	s.mu.Lock()
	s.n--
	if s.changed != nil {
		close(s.changed)
		s.changed = nil
	}
	s.mu.Unlock()
}

func (s *sessionSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

func (s *sessionSet) wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		if s.n == 0 {
			s.mu.Unlock()
			return nil
		}
		if s.changed == nil {
			s.changed = make(chan struct{})
		}
		ch := s.changed
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
