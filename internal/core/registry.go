package core

import "sync"

// registry holds the hub's in-memory view: every live client on this
// instance plus the per-channel broadcast groups. It is the only shared
// mutable state of the hub and is guarded by one RWMutex; everything
// durable lives in the store.
type registry struct {
	mu      sync.RWMutex
	clients map[string]*Client // by connection id
	groups  map[string]*Group  // by channel name
}

func newRegistry() registry {
	return registry{
		clients: make(map[string]*Client),
		groups:  make(map[string]*Group),
	}
}

func (r *registry) addClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.ID] = c
}

func (r *registry) removeClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c.ID)
}

// clientByID returns the live client for a connection id, or nil.
func (r *registry) clientByID(id string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[id]
}

// group returns the channel's group or nil if nobody subscribed yet.
func (r *registry) group(name string) *Group {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groups[name]
}

// ensureGroup returns the channel's group, creating it if needed.
func (r *registry) ensureGroup(name string) *Group {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.groups[name]
	if !ok {
		g = NewGroup(name)
		r.groups[name] = g
	}
	return g
}

func (r *registry) dropGroup(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.groups, name)
}

// broadcastAll sends an event to every live client on this instance.
func (r *registry) broadcastAll(ev *Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.clients {
		c.send(ev)
	}
}
