package core

import "slices"

// Topic groups clients subscribed to the same path.
type Topic struct {
	Path    string
	clients map[*Client]struct{}
}

// NewTopic constructs a topic with no subscribers.
func NewTopic(path string) *Topic {
	return &Topic{
		Path:    path,
		clients: make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the topic. Returns true if newly added.
func (t *Topic) AddClient(c *Client) bool {
	if _, exists := t.clients[c]; exists {
		return false
	}
	t.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the topic. Returns true if removed.
func (t *Topic) RemoveClient(c *Client) bool {
	if _, exists := t.clients[c]; !exists {
		return false
	}
	delete(t.clients, c)
	return true
}

// Has reports whether c is subscribed.
func (t *Topic) Has(c *Client) bool {
	_, ok := t.clients[c]
	return ok
}

// Broadcast sends an event to all subscribers of the topic.
func (t *Topic) Broadcast(event *Event) {
	for client := range t.clients {
		send(client, event)
	}
}

// Empty returns true if no clients are subscribed.
func (t *Topic) Empty() bool {
	return len(t.clients) == 0
}

// send queues event for c. When the buffer is full, queued snapshots of the
// same path are superseded by newer ones so the last write always reaches a
// slow reader. Only called from the hub goroutine.
func send(c *Client, event *Event) {
	select {
	case c.Events <- event:
		return
	default:
	}

	queued := make([]*Event, 0, cap(c.Events)+1)
drain:
	for {
		select {
		case ev := <-c.Events:
			queued = append(queued, ev)
		default:
			break drain
		}
	}
	kept := latestPerPath(append(queued, event))
	if over := len(kept) - cap(c.Events); over > 0 {
		kept = kept[over:]
	}
	for _, ev := range kept {
		select {
		case c.Events <- ev:
		default:
		}
	}
}

// latestPerPath keeps the newest snapshot of each path and every error,
// in their original order.
func latestPerPath(events []*Event) []*Event {
	seen := make(map[string]struct{}, len(events))
	kept := make([]*Event, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		ev := events[i]
		if ev.Kind == EventSnapshot {
			if _, dup := seen[ev.Path]; dup {
				continue
			}
			seen[ev.Path] = struct{}{}
		}
		kept = append(kept, ev)
	}
	slices.Reverse(kept)
	return kept
}
