package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/causerie/causerie-server/internal/store"
)

// fakeStore is an in-memory store.Store for hub tests. Methods the hub
// never touches come from the embedded nil interface and panic if called.
// connErr, when set, makes every GetConnection fail outright.
type fakeStore struct {
	store.Store

	mu       sync.Mutex
	conns    map[string]*store.Connection
	channels map[string]*store.Channel
	mutes    []*store.MuteRecord
	messages []*store.Message
	privates []*store.PrivateMessage
	nextID   int64
	connErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		conns:    make(map[string]*store.Connection),
		channels: make(map[string]*store.Channel),
	}
}

func (f *fakeStore) addChannel(name, createdBy string, muted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels[name] = &store.Channel{
		Name:      name,
		CreatedBy: createdBy,
		Muted:     muted,
		CreatedAt: time.Now(),
	}
}

func (f *fakeStore) addMute(channel *string, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutes = append(f.mutes, &store.MuteRecord{Channel: channel, UserID: userID})
}

func (f *fakeStore) UpsertConnection(_ context.Context, conn *store.Connection) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.conns[conn.ID]; ok {
		existing.LastActivityAt = conn.LastActivityAt
		existing.LastPingAt = conn.LastPingAt
		return nil
	}
	cp := *conn
	f.conns[conn.ID] = &cp
	return nil
}

func (f *fakeStore) GetConnection(_ context.Context, id string) (*store.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connErr != nil {
		return nil, f.connErr
	}
	conn, ok := f.conns[id]
	if !ok {
		return nil, fmt.Errorf("connection %s: %w", id, store.ErrNotFound)
	}
	cp := *conn
	return &cp, nil
}

func (f *fakeStore) SetConnectionChannel(_ context.Context, id string, channel *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conn, ok := f.conns[id]; ok {
		conn.Channel = channel
	}
	return nil
}

func (f *fakeStore) TouchConnectionActivity(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if conn, ok := f.conns[id]; ok {
		conn.LastActivityAt = at
	}
	return nil
}

func (f *fakeStore) DeleteConnection(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.conns, id)
	return nil
}

func (f *fakeStore) CountConnectionsByUsername(_ context.Context, username string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, conn := range f.conns {
		if conn.Username == username {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ListConnectionsByUserID(_ context.Context, userID string) ([]*store.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Connection
	for _, conn := range f.conns {
		if conn.UserID == userID {
			cp := *conn
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListConnectionsInChannel(_ context.Context, channel string) ([]*store.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Connection
	for _, conn := range f.conns {
		if conn.Channel != nil && *conn.Channel == channel {
			cp := *conn
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) GetChannelByName(_ context.Context, name string) (*store.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[name]
	if !ok {
		return nil, fmt.Errorf("channel %s: %w", name, store.ErrNotFound)
	}
	cp := *ch
	return &cp, nil
}

func (f *fakeStore) IsUserMuted(_ context.Context, channel, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mutes {
		if m.UserID != userID {
			continue
		}
		if m.Channel == nil || *m.Channel == channel {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) HasGlobalMute(_ context.Context, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.mutes {
		if m.UserID == userID && m.Channel == nil {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) SaveMessage(_ context.Context, msg *store.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg.ID = f.nextID
	cp := *msg
	f.messages = append(f.messages, &cp)
	return nil
}

func (f *fakeStore) ListMessages(_ context.Context, channel string, limit int, _ *int64) ([]*store.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Message
	for _, msg := range f.messages {
		if msg.Channel == channel && !msg.Suppressed && !msg.Deleted {
			cp := *msg
			out = append(out, &cp)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeStore) SavePrivateMessage(_ context.Context, msg *store.PrivateMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg.ID = f.nextID
	cp := *msg
	f.privates = append(f.privates, &cp)
	return nil
}

func (f *fakeStore) MarkPrivateMessagesRead(_ context.Context, fromUserID, toUserID string) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []int64
	for _, msg := range f.privates {
		if msg.FromUserID == fromUserID && msg.ToUserID == toUserID && !msg.Read {
			msg.Read = true
			ids = append(ids, msg.ID)
		}
	}
	return ids, nil
}

func (f *fakeStore) storedMessages() []*store.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*store.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *fakeStore) storedPrivates() []*store.PrivateMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*store.PrivateMessage, len(f.privates))
	copy(out, f.privates)
	return out
}

func newTestHub(f *fakeStore) *Hub {
	logger := zerolog.New(nil)
	return NewHub(f, "test-instance", &logger)
}

// drain collects every event already queued on the client. Hub operations
// are synchronous, so after an operation returns its events are in place.
func drain(c *Client) []*Event {
	var out []*Event
	for {
		select {
		case ev := <-c.Events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func countKind(events []*Event, kind EventKind) int {
	n := 0
	for _, ev := range events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func mustEvent(t *testing.T, events []*Event, kind EventKind) *Event {
	t.Helper()
	for _, ev := range events {
		if ev.Kind == kind {
			return ev
		}
	}
	t.Fatalf("expected event kind %v, got %v", kind, kinds(events))
	return nil
}

func kinds(events []*Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}
