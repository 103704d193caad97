package core

import "sync"

// Group is the in-process fan-out target for one channel: the set of
// clients currently subscribed to it. Delivery only reaches connections
// held by this instance; there is no cross-instance backplane.
type Group struct {
	Name string

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewGroup constructs a group with no clients.
func NewGroup(name string) *Group {
	return &Group{
		Name:    name,
		clients: make(map[*Client]struct{}),
	}
}

// Add inserts a client into the group. Returns true if newly added.
func (g *Group) Add(c *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.clients[c]; exists {
		return false
	}
	g.clients[c] = struct{}{}
	return true
}

// Remove deletes a client from the group. Returns true if removed.
func (g *Group) Remove(c *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.clients[c]; !exists {
		return false
	}
	delete(g.clients, c)
	return true
}

// Contains reports whether the client is subscribed.
func (g *Group) Contains(c *Client) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.clients[c]
	return ok
}

// Broadcast sends an event to all clients in the group.
func (g *Group) Broadcast(ev *Event) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for client := range g.clients {
		client.send(ev)
	}
}

// Empty returns true if no clients are in the group.
func (g *Group) Empty() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients) == 0
}
