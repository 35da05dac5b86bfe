package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeHello       = "hello"
	InboundTypeSubscribe   = "subscribe"
	InboundTypeUnsubscribe = "unsubscribe"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventSnapshot = "snapshot"
)

// HelloData is sent by the client to introduce itself.
type HelloData struct {
	Client   string `json:"client,omitempty"`
	Protocol int    `json:"protocol,omitempty"`
}

// SubscribeData names the room whose snapshots the client wants.
type SubscribeData struct {
	Room string `json:"room"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// SnapshotData carries the full current state of a room. Room is absent
// when the room no longer exists.
type SnapshotData struct {
	RoomID string          `json:"room_id"`
	Exists bool            `json:"exists"`
	Room   json.RawMessage `json:"room,omitempty"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
