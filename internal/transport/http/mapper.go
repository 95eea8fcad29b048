package http

import (
	"encoding/json"
	"strings"

	"github.com/hh6422123-cyber/Eak/internal/proto"
	"github.com/hh6422123-cyber/Eak/internal/roomstore"
)

func inboundToMessage(inbound proto.Inbound) (*proto.MsgData, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeMsg:
		var msg proto.MsgData
		if err := json.Unmarshal(inbound.Data, &msg); err != nil {
			return nil, nil, err
		}
		if strings.TrimSpace(msg.Username) == "" {
			return nil, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "username is required"}, nil
		}
		if msg.Text == "" {
			return nil, &proto.Error{Code: proto.ErrCodeBadRequest, Msg: "text is required"}, nil
		}
		return &msg, nil, nil
	default:
		return nil, &proto.Error{Code: proto.ErrCodeUnknownType, Msg: "unknown message type"}, nil
	}
}

func outboundFromMessages(roomID string, msgs []roomstore.Message) proto.Outbound {
	list := make([]proto.EventMessage, 0, len(msgs))
	for _, m := range msgs {
		list = append(list, proto.EventMessage{
			ID:       m.ID,
			Username: m.Username,
			Text:     m.Text,
			TS:       m.Timestamp,
		})
	}
	return proto.Outbound{
		Type:  proto.OutboundTypeEvent,
		Event: proto.EventMessages,
		Data: proto.EventMessageList{
			Room:     roomID,
			Messages: list,
		},
	}
}

func outboundError(e *proto.Error) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeError, Error: e}
}
