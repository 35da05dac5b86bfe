package core

import "sync"

// Client is a snapshot subscriber as seen by the core layer.
type Client struct {
	ID       string
	Name     string
	Commands chan *Command
	Events   chan *Event

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id, name string) *Client {
	if name == "" {
		name = id
	}
	return &Client{
		ID:       id,
		Name:     name,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 16),
		done:     make(chan struct{}),
	}
}

// close stops command forwarding and ends the event stream. Called by the hub only.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		close(c.Events)
	})
}
