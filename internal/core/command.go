package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandSubscribe starts snapshot delivery for a path.
	CommandSubscribe CommandKind = iota
	// CommandUnsubscribe stops snapshot delivery for a path.
	CommandUnsubscribe
)

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
	Path string
}
