package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/ito-server/internal/store"
)

type envelope struct {
	client *Client
	cmd    *Command
}

// Hub owns path subscriptions and pushes full snapshots to subscribers
// whenever a related path is written.
type Hub struct {
	store store.Reader
	log   *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	inbox      chan envelope
	quit       chan struct{}

	pendingMu sync.Mutex
	pending   map[string]struct{}
	wake      chan struct{}

	// owned by the Run goroutine
	clients map[*Client]map[string]struct{}
	topics  map[string]*Topic
}

// NewHub creates a hub reading snapshots from reader.
func NewHub(reader store.Reader, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		store:      reader,
		log:        logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbox:      make(chan envelope, 64),
		quit:       make(chan struct{}),
		pending:    make(map[string]struct{}),
		wake:       make(chan struct{}, 1),
		clients:    make(map[*Client]map[string]struct{}),
		topics:     make(map[string]*Topic),
	}
}

// RegisterClient attaches a client and starts forwarding its commands.
func (h *Hub) RegisterClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		c.close()
	}
}

// UnregisterClient drops every subscription of c and closes its event stream.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

// Publish records that path was written. It never blocks; paths written
// several times before the hub wakes up produce a single snapshot.
func (h *Hub) Publish(path string) {
	h.pendingMu.Lock()
	h.pending[path] = struct{}{}
	h.pendingMu.Unlock()

	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Run processes registrations, commands and publications until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.quit)
		for c := range h.clients {
			c.close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case c := <-h.register:
			h.clients[c] = make(map[string]struct{})
			go h.forward(c)
			h.log.Debug().Str("client_id", c.ID).Msg("client registered")
		case c := <-h.unregister:
			h.dropClient(c)
		case env := <-h.inbox:
			h.handleCommand(ctx, env.client, env.cmd)
		case <-h.wake:
			h.flush(ctx)
		}
	}
}

func (h *Hub) forward(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.inbox <- envelope{client: c, cmd: cmd}:
			case <-c.done:
				return
			case <-h.quit:
				return
			}
		case <-c.done:
			return
		case <-h.quit:
			return
		}
	}
}

func (h *Hub) dropClient(c *Client) {
	subs, ok := h.clients[c]
	if !ok {
		return
	}
	for path := range subs {
		h.removeFromTopic(c, path)
	}
	delete(h.clients, c)
	c.close()
	h.log.Debug().Str("client_id", c.ID).Msg("client unregistered")
}

func (h *Hub) handleCommand(ctx context.Context, c *Client, cmd *Command) {
	subs, ok := h.clients[c]
	if !ok {
		return
	}

	if _, err := store.Split(cmd.Path); err != nil {
		send(c, &Event{Kind: EventError, Path: cmd.Path, Error: coreError(ErrCodeBadRequest, err.Error())})
		return
	}

	switch cmd.Kind {
	case CommandSubscribe:
		topic, exists := h.topics[cmd.Path]
		if !exists {
			topic = NewTopic(cmd.Path)
			h.topics[cmd.Path] = topic
		}
		if topic.Has(c) {
			send(c, &Event{Kind: EventError, Path: cmd.Path, Error: coreError(ErrCodeAlreadySubscribed, "already subscribed")})
			return
		}
		topic.AddClient(c)
		subs[cmd.Path] = struct{}{}

		event, err := h.snapshot(ctx, cmd.Path)
		if err != nil {
			send(c, &Event{Kind: EventError, Path: cmd.Path, Error: coreError(ErrCodeStoreUnavailable, "failed to read snapshot")})
			return
		}
		send(c, event)
		h.log.Debug().Str("client_id", c.ID).Str("path", cmd.Path).Msg("subscribed")

	case CommandUnsubscribe:
		if topic, exists := h.topics[cmd.Path]; !exists || !topic.Has(c) {
			send(c, &Event{Kind: EventError, Path: cmd.Path, Error: coreError(ErrCodeNotSubscribed, "not subscribed")})
			return
		}
		delete(subs, cmd.Path)
		h.removeFromTopic(c, cmd.Path)
		h.log.Debug().Str("client_id", c.ID).Str("path", cmd.Path).Msg("unsubscribed")

	default:
		send(c, &Event{Kind: EventError, Path: cmd.Path, Error: coreError(ErrCodeBadRequest, "unknown command")})
	}
}

func (h *Hub) removeFromTopic(c *Client, path string) {
	topic, ok := h.topics[path]
	if !ok {
		return
	}
	topic.RemoveClient(c)
	if topic.Empty() {
		delete(h.topics, path)
	}
}

// flush pushes one fresh snapshot to every topic related to a pending write.
func (h *Hub) flush(ctx context.Context) {
	h.pendingMu.Lock()
	written := h.pending
	h.pending = make(map[string]struct{})
	h.pendingMu.Unlock()

	for path, topic := range h.topics {
		related := false
		for w := range written {
			if store.IsRelated(path, w) {
				related = true
				break
			}
		}
		if !related {
			continue
		}

		event, err := h.snapshot(ctx, path)
		if err != nil {
			h.log.Warn().Err(err).Str("path", path).Msg("failed to read snapshot for subscribers")
			continue
		}
		topic.Broadcast(event)
	}
}

func (h *Hub) snapshot(ctx context.Context, path string) (*Event, error) {
	snap, err := h.store.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	return &Event{Kind: EventSnapshot, Path: path, Value: snap.Value}, nil
}
