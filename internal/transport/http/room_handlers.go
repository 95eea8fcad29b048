package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/hh6422123-cyber/Eak/internal/roomstore"
)

// RoomHandlers provides HTTP handlers for room and message endpoints.
type RoomHandlers struct {
	rooms Rooms
	log   *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(rooms Rooms, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		rooms: rooms,
		log:   logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// CreateRoomRequest represents the create room request body. An empty
// RoomID asks the server to pick a free one.
type CreateRoomRequest struct {
	RoomID string `json:"room_id" binding:"omitempty,max=64"`
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	RoomID       string `json:"room_id"`
	CreatedAt    string `json:"created_at,omitempty"`
	MessageCount int    `json:"message_count"`
}

// SendMessageRequest represents the send message request body.
type SendMessageRequest struct {
	Username string `json:"username" binding:"required,min=1,max=64"`
	Text     string `json:"text" binding:"required"`
}

// MessageResponse represents a message in API responses.
type MessageResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// CreateRoom handles room creation.
// POST /api/rooms
func (h *RoomHandlers) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.log.Debug().Err(err).Msg("invalid create room request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	roomID := req.RoomID

	var (
		res roomstore.CreateResult
		err error
	)
	if roomID == "" {
		roomID, res, err = h.rooms.CreateRandomRoom(ctx)
	} else {
		res, err = h.rooms.CreateRoom(ctx, roomID)
	}

	switch {
	case errors.Is(err, roomstore.ErrNoFreeRoomID):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "no free room id, try again"})
		return
	case err != nil:
		h.log.Debug().Err(err).Msg("create room cancelled")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "request cancelled"})
		return
	}

	switch res {
	case roomstore.CreateCollision:
		c.JSON(http.StatusConflict, ErrorResponse{Error: "room already exists"})
	case roomstore.CreateAbandoned:
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "room could not be saved"})
	default:
		room, _ := h.rooms.Room(ctx, roomID)
		c.JSON(http.StatusCreated, roomResponse(roomID, room))
	}
}

// GetRoom reports whether a room exists.
// GET /api/rooms/:id
func (h *RoomHandlers) GetRoom(c *gin.Context) {
	roomID := c.Param("id")
	ctx := c.Request.Context()

	exists, err := h.rooms.RoomExists(ctx, roomID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "request cancelled"})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}

	room, _ := h.rooms.Room(ctx, roomID)
	c.JSON(http.StatusOK, roomResponse(roomID, room))
}

// ListMessages returns a room's messages ordered by timestamp. Unknown rooms
// yield an empty list.
// GET /api/rooms/:id/messages
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	msgs := h.rooms.Messages(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, messageResponses(msgs))
}

// SendMessage appends a message. Sends to unknown rooms are accepted and
// dropped.
// POST /api/rooms/:id/messages
func (h *RoomHandlers) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid send message request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	roomID := c.Param("id")
	if err := h.rooms.SendMessage(c.Request.Context(), roomID, req.Username, req.Text); err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "request cancelled"})
		return
	}

	h.log.Debug().Str("room_id", roomID).Str("username", req.Username).Msg("message accepted")
	c.Status(http.StatusAccepted)
}

func roomResponse(roomID string, room roomstore.Room) RoomResponse {
	resp := RoomResponse{RoomID: roomID, MessageCount: len(room.Messages)}
	if room.CreatedAt != 0 {
		resp.CreatedAt = time.UnixMilli(room.CreatedAt).UTC().Format(time.RFC3339)
	}
	return resp
}

func messageResponses(msgs []roomstore.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, MessageResponse{
			ID:        m.ID,
			Username:  m.Username,
			Text:      m.Text,
			Timestamp: m.Timestamp,
		})
	}
	return out
}
