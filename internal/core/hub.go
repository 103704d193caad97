package core

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/causerie/causerie-server/internal/store"
)

// historyLimit is how many recent messages a client receives on join.
const historyLimit = 50

// Hub is the session coordinator. It tracks live clients and per-channel
// broadcast groups in memory and keeps durable presence records in the
// store. Operations are invoked concurrently, one goroutine per connection;
// each opens its own short-lived store calls and there is no global lock
// beyond the registry maps' own mutex.
type Hub struct {
	store      store.Store
	log        *zerolog.Logger
	instanceID string

	reg registry
}

// NewHub creates a new hub instance.
func NewHub(st store.Store, instanceID string, logger *zerolog.Logger) *Hub {
	return &Hub{
		store:      st,
		log:        logger,
		instanceID: instanceID,
		reg:        newRegistry(),
	}
}

// Connect registers a client. If its identity carries a username and no
// presence record for that username exists yet, everyone is told the user
// came online. Anonymous identities announce nothing.
func (h *Hub) Connect(ctx context.Context, c *Client) {
	h.reg.addClient(c)

	if c.Username == "" {
		return
	}
	n, err := h.store.CountConnectionsByUsername(ctx, c.Username)
	if err != nil {
		h.log.Error().Err(err).Str("username", c.Username).Msg("count connections on connect")
		return
	}
	if n == 0 {
		h.reg.broadcastAll(&Event{
			Kind:   EventUserStatus,
			User:   c.Username,
			UserID: c.UserID,
			Online: true,
		})
	}
}

// Disconnect removes the client's presence record and subscriptions. The
// offline announcement only fires when this was the username's last
// connection; intermediate disconnects of a multi-device user stay silent.
func (h *Hub) Disconnect(ctx context.Context, c *Client) {
	h.reg.removeClient(c)

	rec, err := h.store.GetConnection(ctx, c.ID)
	if err == nil && rec.Channel != nil {
		if g := h.reg.group(*rec.Channel); g != nil {
			g.Remove(c)
			g.Broadcast(&Event{
				Kind:    EventUserLeft,
				Channel: *rec.Channel,
				User:    rec.Username,
				UserID:  rec.UserID,
			})
			h.pushMemberList(ctx, g)
		}
	}

	if err := h.store.DeleteConnection(ctx, c.ID); err != nil {
		h.log.Error().Err(err).Str("connection_id", c.ID).Msg("delete connection on disconnect")
	}

	if c.Username == "" {
		return
	}
	n, err := h.store.CountConnectionsByUsername(ctx, c.Username)
	if err != nil {
		h.log.Error().Err(err).Str("username", c.Username).Msg("count connections on disconnect")
		return
	}
	if n == 0 {
		h.reg.broadcastAll(&Event{
			Kind:   EventUserStatus,
			User:   c.Username,
			UserID: c.UserID,
			Online: false,
		})
	}
}

// Ping upserts the client's presence record: created on the first ping,
// timestamps refreshed afterwards. Every other operation requires it.
func (h *Hub) Ping(ctx context.Context, c *Client) {
	now := time.Now().UTC()
	err := h.store.UpsertConnection(ctx, &store.Connection{
		ID:             c.ID,
		UserID:         c.UserID,
		Username:       c.Username,
		ConnectedAt:    now,
		LastActivityAt: now,
		LastPingAt:     now,
		InstanceID:     h.instanceID,
	})
	if err != nil {
		h.log.Error().Err(err).Str("connection_id", c.ID).Msg("upsert connection on ping")
	}
}

// JoinChannel subscribes the client to a channel's broadcast group. Joining
// the channel the client is already in is a strict no-op; joining a
// different one leaves the old channel first.
func (h *Hub) JoinChannel(ctx context.Context, c *Client, name string) {
	rec := h.identified(ctx, c)
	if rec == nil {
		return
	}

	if _, err := h.store.GetChannelByName(ctx, name); err != nil {
		c.send(&Event{Kind: EventChannelNotFound, Channel: name})
		return
	}

	if rec.Channel != nil && *rec.Channel == name {
		// Re-entrant join: no duplicate join/leave notifications.
		return
	}

	var oldGroup *Group
	if rec.Channel != nil {
		old := *rec.Channel
		if g := h.reg.group(old); g != nil {
			g.Remove(c)
			g.Broadcast(&Event{
				Kind:    EventUserLeft,
				Channel: old,
				User:    rec.Username,
				UserID:  rec.UserID,
			})
			oldGroup = g
		}
	}

	if err := h.store.SetConnectionChannel(ctx, c.ID, &name); err != nil {
		h.log.Error().Err(err).Str("connection_id", c.ID).Str("channel", name).Msg("set connection channel")
		return
	}
	if err := h.store.TouchConnectionActivity(ctx, c.ID, time.Now().UTC()); err != nil {
		h.log.Error().Err(err).Str("connection_id", c.ID).Msg("touch connection on join")
	}
	if oldGroup != nil {
		// The old channel gets its refreshed member list once the record
		// points at the new one.
		h.pushMemberList(ctx, oldGroup)
	}

	g := h.reg.ensureGroup(name)
	g.Add(c)
	g.Broadcast(&Event{
		Kind:    EventUserJoined,
		Channel: name,
		User:    rec.Username,
		UserID:  rec.UserID,
	})
	h.pushMemberList(ctx, g)

	messages, err := h.store.ListMessages(ctx, name, historyLimit, nil)
	if err != nil {
		h.log.Error().Err(err).Str("channel", name).Msg("list history on join")
		return
	}
	c.send(&Event{Kind: EventHistory, Channel: name, Messages: messages})
}

// LeaveChannel unsubscribes the client when the given name matches its
// recorded channel; a mismatch is a silent no-op. On match the whole
// presence record is deleted, which couples leaving with going offline for
// presence purposes. That coupling is intentional, observed behavior.
func (h *Hub) LeaveChannel(ctx context.Context, c *Client, name string) {
	rec := h.identified(ctx, c)
	if rec == nil {
		return
	}
	if rec.Channel == nil || *rec.Channel != name {
		return
	}

	if g := h.reg.group(name); g != nil {
		g.Remove(c)
		g.Broadcast(&Event{
			Kind:    EventUserLeft,
			Channel: name,
			User:    rec.Username,
			UserID:  rec.UserID,
		})
		h.pushMemberList(ctx, g)
	}

	if err := h.store.DeleteConnection(ctx, c.ID); err != nil {
		h.log.Error().Err(err).Str("connection_id", c.ID).Msg("delete connection on leave")
	}
}

// SendMessage runs mute arbitration and acts on the verdict: refuse and
// tell only the sender, persist suppressed and echo to the sender, or
// persist and fan out to the channel.
func (h *Hub) SendMessage(ctx context.Context, c *Client, channel, text string) {
	rec := h.identified(ctx, c)
	if rec == nil {
		return
	}

	ch, err := h.store.GetChannelByName(ctx, channel)
	if err != nil {
		c.send(&Event{Kind: EventChannelNotFound, Channel: channel})
		return
	}

	individuallyMuted, err := h.store.IsUserMuted(ctx, channel, rec.UserID)
	if err != nil {
		h.log.Error().Err(err).Str("channel", channel).Str("user_id", rec.UserID).Msg("query individual mute")
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeInternal, "internal error")})
		return
	}

	bypass := c.IsAdmin || strings.EqualFold(ch.CreatedBy, rec.Username)
	verdict := Decide(ch.Muted, bypass, individuallyMuted)

	switch verdict {
	case VerdictBlocked:
		c.send(&Event{Kind: EventMessageBlocked, Channel: channel})
		return

	case VerdictSuppressed:
		msg := &store.Message{
			Channel:    channel,
			UserID:     rec.UserID,
			Username:   rec.Username,
			Body:       text,
			Suppressed: true,
			CreatedAt:  time.Now().UTC(),
		}
		if err := h.store.SaveMessage(ctx, msg); err != nil {
			h.log.Error().Err(err).Str("channel", channel).Msg("save suppressed message")
			return
		}
		// Echo to the sender only; the channel never sees it.
		c.send(&Event{Kind: EventMessage, Channel: channel, Message: msg})
		return

	case VerdictBroadcast:
		msg := &store.Message{
			Channel:   channel,
			UserID:    rec.UserID,
			Username:  rec.Username,
			Body:      text,
			CreatedAt: time.Now().UTC(),
		}
		if err := h.store.SaveMessage(ctx, msg); err != nil {
			h.log.Error().Err(err).Str("channel", channel).Msg("save message")
			return
		}
		if g := h.reg.group(channel); g != nil {
			g.Broadcast(&Event{Kind: EventMessage, Channel: channel, Message: msg})
		}
		if err := h.store.TouchConnectionActivity(ctx, c.ID, time.Now().UTC()); err != nil {
			h.log.Error().Err(err).Str("connection_id", c.ID).Msg("touch connection on send")
		}
	}
}

// SendPrivateMessage always persists the message. A globally muted sender's
// message is hidden from the recipient forever, online or not, while the
// sender still gets a normal delivery confirmation.
func (h *Hub) SendPrivateMessage(ctx context.Context, c *Client, toUserID, toUsername, text string) {
	rec := h.identified(ctx, c)
	if rec == nil {
		return
	}

	globallyMuted, err := h.store.HasGlobalMute(ctx, rec.UserID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", rec.UserID).Msg("query global mute")
		c.send(&Event{Kind: EventError, Error: coreError(ErrCodeInternal, "internal error")})
		return
	}

	msg := &store.PrivateMessage{
		FromUserID:          rec.UserID,
		FromUsername:        rec.Username,
		ToUserID:            toUserID,
		ToUsername:          toUsername,
		Body:                text,
		HiddenFromRecipient: globallyMuted,
		CreatedAt:           time.Now().UTC(),
	}
	if err := h.store.SavePrivateMessage(ctx, msg); err != nil {
		h.log.Error().Err(err).Str("to_user_id", toUserID).Msg("save private message")
		return
	}

	if !globallyMuted {
		h.deliverToUser(ctx, toUserID, &Event{Kind: EventPrivateMessage, Private: msg})
	}

	c.send(&Event{Kind: EventPrivateSent, Private: msg})
}

// MarkPrivateMessagesRead marks every unread message from the other party
// to the caller as read, then tells the other party's live connections
// which ids were read and by whom.
func (h *Hub) MarkPrivateMessagesRead(ctx context.Context, c *Client, otherUserID string) {
	rec := h.identified(ctx, c)
	if rec == nil {
		return
	}

	ids, err := h.store.MarkPrivateMessagesRead(ctx, otherUserID, rec.UserID)
	if err != nil {
		h.log.Error().Err(err).Str("from_user_id", otherUserID).Msg("mark private messages read")
		return
	}

	h.deliverToUser(ctx, otherUserID, &Event{Kind: EventPrivateRead, ReadBy: rec.Username, ReadIDs: ids})
}

// NotifyChannelMuteChanged fans a mute-flag change out to the channel's
// group. Called by the auto-muter and by the mute administration surface;
// the flag itself is already persisted by then.
func (h *Hub) NotifyChannelMuteChanged(channel string, muted bool) {
	if g := h.reg.group(channel); g != nil {
		g.Broadcast(&Event{Kind: EventChannelMuted, Channel: channel, Muted: muted})
	}
}

// DropChannel discards the in-memory group after a channel is deleted.
// Durable cascades (message soft delete, membership purge) happen in the
// directory layer before this is called.
func (h *Hub) DropChannel(channel string) {
	h.reg.dropGroup(channel)
}

// deliverToUser pushes an event to a user's live clients, gated on durable
// presence: only connections holding a presence record receive anything.
// A client that never pinged, or whose record was evicted, is store-only.
func (h *Hub) deliverToUser(ctx context.Context, userID string, ev *Event) {
	recs, err := h.store.ListConnectionsByUserID(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("list recipient connections")
		return
	}
	for _, rec := range recs {
		if target := h.reg.clientByID(rec.ID); target != nil {
			target.send(ev)
		}
	}
}

// identified resolves the caller's presence record. A connection that never
// pinged gets the NotIdentified error and nil back; a failing store is
// reported as an internal error, not a missing identity.
func (h *Hub) identified(ctx context.Context, c *Client) *store.Connection {
	rec, err := h.store.GetConnection(ctx, c.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.send(&Event{Kind: EventError, Error: coreError(ErrCodeNotIdentified, MsgNotIdentified)})
		} else {
			h.log.Error().Err(err).Str("connection_id", c.ID).Msg("resolve connection record")
			c.send(&Event{Kind: EventError, Error: coreError(ErrCodeInternal, "internal error")})
		}
		return nil
	}
	return rec
}

func (h *Hub) pushMemberList(ctx context.Context, g *Group) {
	conns, err := h.store.ListConnectionsInChannel(ctx, g.Name)
	if err != nil {
		h.log.Error().Err(err).Str("channel", g.Name).Msg("list channel members")
		return
	}
	members := make([]string, 0, len(conns))
	seen := make(map[string]struct{}, len(conns))
	for _, conn := range conns {
		if _, ok := seen[conn.Username]; ok {
			continue
		}
		seen[conn.Username] = struct{}{}
		members = append(members, conn.Username)
	}
	g.Broadcast(&Event{Kind: EventUserList, Channel: g.Name, Members: members})
}
