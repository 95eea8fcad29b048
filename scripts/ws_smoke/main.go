package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/hh6422123-cyber/Eak/internal/proto"
)

// outbound mirrors proto.Outbound with the payload kept raw for decoding.
type outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("addr", "ws://localhost:8080/ws/rooms/", "WebSocket room endpoint prefix")
	user := flag.String("user", "tester", "display name")
	room := flag.String("room", "123456", "room id (must exist)")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, *base+*room, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	msgPayload, err := json.Marshal(proto.MsgData{Username: *user, Text: *text})
	if err != nil {
		return fmt.Errorf("marshal msg: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: proto.InboundTypeMsg, Data: msgPayload}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		var out outbound
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", out.Type)
		if out.Event != "" {
			fmt.Printf(" event=%s", out.Event)
		}
		fmt.Println()

		if out.Error != nil {
			return fmt.Errorf("server error %s: %s", out.Error.Code, out.Error.Msg)
		}
		if out.Event != proto.EventMessages {
			continue
		}

		var list proto.EventMessageList
		if err := json.Unmarshal(out.Data, &list); err != nil {
			fmt.Printf("Raw data: %s\n", string(out.Data))
			return fmt.Errorf("unmarshal messages: %w", err)
		}
		for _, m := range list.Messages {
			if m.Username == *user && m.Text == *text {
				fmt.Printf("Delivered: room=%s id=%s user=%s text=%q ts=%d (%d in room)\n",
					list.Room, m.ID, m.Username, m.Text, m.TS, len(list.Messages))
				return nil
			}
		}
	}
}
