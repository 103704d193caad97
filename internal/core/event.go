package core

import "github.com/causerie/causerie-server/internal/store"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage notifies clients about a chat message in a channel.
	EventMessage EventKind = iota
	// EventUserJoined notifies a channel that a user joined it.
	EventUserJoined
	// EventUserLeft notifies a channel that a user left it.
	EventUserLeft
	// EventUserList delivers the channel's refreshed member list.
	EventUserList
	// EventUserStatus announces a user going online or offline, to everyone.
	EventUserStatus
	// EventChannelMuted announces a change of the whole-channel mute flag.
	EventChannelMuted
	// EventMessageBlocked tells a sender their message was refused outright.
	EventMessageBlocked
	// EventChannelNotFound tells a caller the named channel does not exist.
	EventChannelNotFound
	// EventHistory delivers recent messages to a client joining a channel.
	EventHistory
	// EventPrivateMessage delivers a direct message to a recipient connection.
	EventPrivateMessage
	// EventPrivateSent confirms a direct message to its sender.
	EventPrivateSent
	// EventPrivateRead notifies a sender which of their messages were read.
	EventPrivateRead
	// EventError notifies clients about a domain error.
	EventError
)

// Event is sent to clients to describe what happened in the system.
type Event struct {
	Kind    EventKind
	Channel string
	User    string // username the event is about
	UserID  string
	Online  bool     // for EventUserStatus
	Muted   bool     // for EventChannelMuted
	Members []string // for EventUserList

	Message  *store.Message
	Messages []*store.Message // for EventHistory

	Private *store.PrivateMessage

	ReadBy  string  // for EventPrivateRead: username of the reader
	ReadIDs []int64 // for EventPrivateRead: ids marked read

	Error *CoreError
}
