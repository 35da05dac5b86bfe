package http

import (
	"encoding/json"
	"strings"

	"github.com/vovakirdan/ito-server/internal/core"
	"github.com/vovakirdan/ito-server/internal/ito"
	"github.com/vovakirdan/ito-server/internal/proto"
)

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	var kind core.CommandKind
	switch inbound.Type {
	case proto.InboundTypeSubscribe:
		kind = core.CommandSubscribe
	case proto.InboundTypeUnsubscribe:
		kind = core.CommandUnsubscribe
	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}

	var data proto.SubscribeData
	if err := json.Unmarshal(inbound.Data, &data); err != nil {
		return nil, nil, err
	}
	if data.Room == "" {
		return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "room is required"}, nil
	}
	if err := ito.ValidateRoomID(data.Room); err != nil {
		return nil, &proto.Error{Code: ito.CodeInvalidRoomID, Msg: ito.Notice(err)}, nil
	}

	return &core.Command{Kind: kind, Path: ito.RoomPath(data.Room)}, nil, nil
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventSnapshot:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventSnapshot,
			Data: proto.SnapshotData{
				RoomID: roomIDFromPath(event.Path),
				Exists: event.Exists(),
				Room:   event.Value,
			},
		}
	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}

func roomIDFromPath(path string) string {
	return strings.TrimPrefix(path, ito.RoomsRoot+"/")
}
