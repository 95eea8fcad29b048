package roomstore

import (
	"encoding/json"
	"sort"
)

// Message is a chat message as persisted in the root table.
type Message struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds
}

// Room holds a room's creation time and its messages keyed by id.
type Room struct {
	CreatedAt int64              `json:"createdAt"` // unix milliseconds
	Messages  map[string]Message `json:"messages"`
}

// Table maps room ids to rooms. It is the entire persisted state and is
// always written as one blob.
type Table map[string]Room

// decodeTable parses a stored blob. A JSON null decodes to an empty table.
func decodeTable(raw []byte) (Table, error) {
	var t Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, err
	}
	if t == nil {
		t = Table{}
	}
	return t, nil
}

func encodeTable(t Table) ([]byte, error) {
	return json.Marshal(t)
}

// SortedMessages returns the room's messages ascending by timestamp.
// Order among equal timestamps is unspecified.
func (r Room) SortedMessages() []Message {
	out := make([]Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}
