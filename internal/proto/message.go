package proto

import "encoding/json"

// Inbound is the envelope for messages coming from a WebSocket client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	InboundTypeMsg = "msg"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventMessages = "messages"
)

// MsgData is a chat message sent by the client.
type MsgData struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage is one message inside a delivery.
type EventMessage struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Text     string `json:"text"`
	TS       int64  `json:"timestamp"`
}

// EventMessageList carries the full, ordered message list of a room.
type EventMessageList struct {
	Room     string         `json:"room"`
	Messages []EventMessage `json:"messages"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

// Error codes sent to clients.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeRateLimited = "rate_limited"
	ErrCodeUnknownType = "invalid_message"
)
