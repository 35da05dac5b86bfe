package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/ito-server/internal/ito"
	"github.com/vovakirdan/ito-server/internal/proto"
)

// ErrStopWatch can be returned by a watch callback to end Watch cleanly.
var ErrStopWatch = errors.New("stop watching")

// ServerError is an error frame pushed over the watch connection.
type ServerError struct {
	Code string
	Msg  string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("ito ws: %s: %s", e.Code, e.Msg)
}

func (e *ServerError) Unwrap() error {
	return ito.FromCode(e.Code)
}

type outbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	Error *proto.Error    `json:"error"`
}

func (c *Client) wsURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// Watch subscribes to roomID and calls fn with every snapshot, starting
// with the current one. fn receives nil once the room is gone. Watch
// returns when ctx ends, the connection drops or fn returns an error;
// ErrStopWatch is reported as nil.
func (c *Client) Watch(ctx context.Context, roomID string, fn func(*ito.Room) error) error {
	conn, _, err := websocket.Dial(ctx, c.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("dial ws: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := send(ctx, conn, proto.InboundTypeHello, proto.HelloData{Client: "itoctl", Protocol: proto.ProtocolVersion}); err != nil {
		return err
	}
	if err := send(ctx, conn, proto.InboundTypeSubscribe, proto.SubscribeData{Room: roomID}); err != nil {
		return err
	}

	for {
		var msg outbound
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read ws: %w", err)
		}

		if msg.Type == proto.OutboundTypeError {
			if msg.Error == nil {
				return &ServerError{Code: "unknown", Msg: "unknown error"}
			}
			return &ServerError{Code: msg.Error.Code, Msg: msg.Error.Msg}
		}
		if msg.Event != proto.EventSnapshot {
			continue
		}

		room, err := decodeSnapshot(msg.Data)
		if err != nil {
			return err
		}
		if err := fn(room); err != nil {
			if errors.Is(err, ErrStopWatch) {
				return nil
			}
			return err
		}
	}
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", typ, err)
	}
	if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: payload}); err != nil {
		return fmt.Errorf("send %s: %w", typ, err)
	}
	return nil
}

func decodeSnapshot(raw json.RawMessage) (*ito.Room, error) {
	var snap proto.SnapshotData
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if !snap.Exists {
		return nil, nil
	}
	var room ito.Room
	if err := json.Unmarshal(snap.Room, &room); err != nil {
		return nil, fmt.Errorf("decode room: %w", err)
	}
	if room.Players == nil {
		room.Players = map[string]ito.PlayerRecord{}
	}
	return &room, nil
}
