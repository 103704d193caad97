package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypePing    = "ping"
	InboundTypeJoin    = "join"
	InboundTypeLeave   = "leave"
	InboundTypeMsg     = "msg"
	InboundTypePrivate = "private"
	InboundTypeRead    = "read"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"
)

// JoinData requests to join or leave a specific channel.
type JoinData struct {
	Channel string `json:"channel"`
}

// MsgData is a channel message from the client.
type MsgData struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

// PrivateData is a direct message from the client.
type PrivateData struct {
	ToUserID   string `json:"to_user"`
	ToUsername string `json:"to_name"`
	Text       string `json:"text"`
}

// ReadData asks to mark a correspondent's messages as read.
type ReadData struct {
	FromUserID string `json:"from_user"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// EventMessage carries one channel message.
type EventMessage struct {
	ID      int64  `json:"id,omitempty"`
	Channel string `json:"channel"`
	User    string `json:"user"`
	Text    string `json:"text"`
	TS      int64  `json:"ts"`
}

// EventUserJoined notifies that a user joined a channel.
type EventUserJoined struct {
	Channel string `json:"channel"`
	User    string `json:"user"`
	UserID  string `json:"user_id"`
}

// EventUserLeft notifies that a user left a channel.
type EventUserLeft struct {
	Channel string `json:"channel"`
	User    string `json:"user"`
	UserID  string `json:"user_id"`
}

// EventUserList carries a channel's refreshed member list.
type EventUserList struct {
	Channel string   `json:"channel"`
	Users   []string `json:"users"`
}

// EventUserStatus announces a user going online or offline.
type EventUserStatus struct {
	User   string `json:"user"`
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// EventChannelMuted announces a whole-channel mute flag change.
type EventChannelMuted struct {
	Channel string `json:"channel"`
	Muted   bool   `json:"muted"`
}

// EventMessageBlocked tells a sender their message was refused.
type EventMessageBlocked struct {
	Channel string `json:"channel"`
}

// EventHistory delivers recent messages on joining a channel.
type EventHistory struct {
	Channel  string         `json:"channel"`
	Messages []EventMessage `json:"messages"`
}

// EventPrivateMessage carries one direct message.
type EventPrivateMessage struct {
	ID       int64  `json:"id"`
	FromUser string `json:"from_user"`
	FromName string `json:"from_name"`
	ToUser   string `json:"to_user"`
	ToName   string `json:"to_name"`
	Text     string `json:"text"`
	TS       int64  `json:"ts"`
}

// EventPrivateRead notifies a sender which messages were read and by whom.
type EventPrivateRead struct {
	ReadBy string  `json:"read_by"`
	IDs    []int64 `json:"ids"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
