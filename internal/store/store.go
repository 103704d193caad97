package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
// Implementations wrap it so callers can tell a missing record from a
// failing store.
var ErrNotFound = errors.New("not found")

// User represents a registered or guest account.
type User struct {
	ID           string // stable user id, uuid for guests
	Username     string
	PasswordHash string
	IsAdmin      bool
	IsGuest      bool
	CreatedAt    time.Time
}

// Connection is the presence record for one live client connection.
// A logical user may hold any number of Connections at once (multi-tab,
// multi-device); the connection id is unique for the connection's lifetime.
type Connection struct {
	ID             string
	UserID         string
	Username       string
	Channel        *string // nil while not joined to any channel
	ConnectedAt    time.Time
	LastActivityAt time.Time
	LastPingAt     time.Time
	InstanceID     string // owning server instance
}

// Channel is a named broadcast target.
type Channel struct {
	ID          int64
	Name        string
	CreatedBy   string // creator username
	Description *string
	Muted       bool // whole-channel mute flag
	CreatedAt   time.Time
	DeletedAt   *time.Time
}

// MuteRecord silences one user, either inside a single channel or, when
// Channel is nil, globally (every channel plus private messaging).
// At most one active record exists per (scope, user) pair.
type MuteRecord struct {
	ID        int64
	Channel   *string // nil means global
	UserID    string
	MutedBy   string
	Reason    *string
	CreatedAt time.Time
}

// Message is a persisted channel message. Suppressed marks a message that
// was stored but withheld from broadcast because its author was muted;
// Deleted marks cascade soft-deletion when the channel is removed. The two
// are independent flags on purpose.
type Message struct {
	ID         int64
	Channel    string
	UserID     string
	Username   string
	Body       string
	Suppressed bool
	Deleted    bool
	CreatedAt  time.Time
}

// PrivateMessage is a direct message between two users. Hidden flags are
// per-party soft deletes; HiddenFromRecipient is also how a globally muted
// sender's messages are kept from their recipient.
type PrivateMessage struct {
	ID                  int64
	FromUserID          string
	FromUsername        string
	ToUserID            string
	ToUsername          string
	Body                string
	Read                bool
	HiddenFromSender    bool
	HiddenFromRecipient bool
	CreatedAt           time.Time
}

// UserStore handles account persistence.
type UserStore interface {
	// CreateUser creates a new user with hashed password.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// CreateGuestUser creates a temporary guest identity.
	CreateGuestUser(ctx context.Context, id, username string) (*User, error)

	// GetUserByID retrieves a user by id.
	GetUserByID(ctx context.Context, id string) (*User, error)

	// GetUserByUsername retrieves a registered user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// SetUserAdmin grants or revokes the admin flag.
	SetUserAdmin(ctx context.Context, id string, admin bool) error
}

// ConnectionStore handles presence records.
type ConnectionStore interface {
	// UpsertConnection creates the record on first ping and refreshes
	// last-ping/last-activity afterwards.
	UpsertConnection(ctx context.Context, conn *Connection) error

	// GetConnection retrieves a presence record by connection id.
	GetConnection(ctx context.Context, id string) (*Connection, error)

	// SetConnectionChannel records which channel the connection is in.
	SetConnectionChannel(ctx context.Context, id string, channel *string) error

	// TouchConnectionActivity refreshes last-activity.
	TouchConnectionActivity(ctx context.Context, id string, at time.Time) error

	// DeleteConnection removes one presence record.
	DeleteConnection(ctx context.Context, id string) error

	// CountConnectionsByUsername counts live records for a username.
	CountConnectionsByUsername(ctx context.Context, username string) (int, error)

	// ListConnectionsByUserID lists every live connection of a user.
	ListConnectionsByUserID(ctx context.Context, userID string) ([]*Connection, error)

	// ListConnectionsInChannel lists the channel's current members.
	ListConnectionsInChannel(ctx context.Context, channel string) ([]*Connection, error)

	// LatestConnectionByUsername returns the most recently pinged record for
	// a username, matched case-insensitively, or nil when fully offline.
	LatestConnectionByUsername(ctx context.Context, username string) (*Connection, error)

	// DeleteConnectionsPingedBefore bulk-deletes records whose last ping is
	// older than cutoff. Returns the number removed.
	DeleteConnectionsPingedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// ClearChannelMembership detaches every connection from the channel.
	ClearChannelMembership(ctx context.Context, channel string) error
}

// ChannelStore handles the channel directory.
type ChannelStore interface {
	// CreateChannel creates a channel with a unique name.
	CreateChannel(ctx context.Context, name, createdBy string, description *string) (*Channel, error)

	// GetChannelByName retrieves a live (non-deleted) channel by name.
	GetChannelByName(ctx context.Context, name string) (*Channel, error)

	// ListChannels lists live channels.
	ListChannels(ctx context.Context) ([]*Channel, error)

	// ListUnmutedChannels lists live channels whose mute flag is unset.
	ListUnmutedChannels(ctx context.Context) ([]*Channel, error)

	// SetChannelMuted flips the whole-channel mute flag.
	SetChannelMuted(ctx context.Context, name string, muted bool) error

	// SetChannelDescription updates the optional description.
	SetChannelDescription(ctx context.Context, name string, description *string) error

	// DeleteChannel soft-deletes the channel.
	DeleteChannel(ctx context.Context, name string) error
}

// MuteStore handles individual mute records.
type MuteStore interface {
	// CreateMute inserts a record; the (scope, user) pair is unique.
	CreateMute(ctx context.Context, rec *MuteRecord) (*MuteRecord, error)

	// DeleteMute removes the record for the given scope and user.
	DeleteMute(ctx context.Context, channel *string, userID string) error

	// IsUserMuted reports whether the user is muted in the channel, either
	// by a channel-scoped record or by a global one.
	IsUserMuted(ctx context.Context, channel, userID string) (bool, error)

	// HasGlobalMute reports whether the user carries a global mute.
	HasGlobalMute(ctx context.Context, userID string) (bool, error)

	// ListMutes lists active records, optionally narrowed to one channel
	// scope (nil lists everything).
	ListMutes(ctx context.Context, channel *string) ([]*MuteRecord, error)
}

// MessageStore handles channel message persistence.
type MessageStore interface {
	// SaveMessage persists a message and fills in its id.
	SaveMessage(ctx context.Context, msg *Message) error

	// ListMessages retrieves recent non-suppressed, non-deleted messages
	// for a channel, newest last. If beforeID is set, only older ones.
	ListMessages(ctx context.Context, channel string, limit int, beforeID *int64) ([]*Message, error)

	// SoftDeleteChannelMessages flags every message of the channel deleted.
	SoftDeleteChannelMessages(ctx context.Context, channel string) error
}

// PrivateMessageStore handles direct message persistence.
type PrivateMessageStore interface {
	// SavePrivateMessage persists a direct message and fills in its id.
	SavePrivateMessage(ctx context.Context, msg *PrivateMessage) error

	// MarkPrivateMessagesRead marks every unread message from fromUserID to
	// toUserID as read and returns the ids affected.
	MarkPrivateMessagesRead(ctx context.Context, fromUserID, toUserID string) ([]int64, error)

	// ListConversation retrieves messages exchanged between two users that
	// the viewer is still allowed to see, newest last.
	ListConversation(ctx context.Context, viewerID, otherID string, limit int) ([]*PrivateMessage, error)

	// HideConversationFor soft-deletes the conversation for one party.
	HideConversationFor(ctx context.Context, viewerID, otherID string) error
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	ConnectionStore
	ChannelStore
	MuteStore
	MessageStore
	PrivateMessageStore

	// Close closes the underlying database connection.
	Close() error
}

// Factory yields store sessions. Background services acquire their own
// session per tick so they never share a request-scoped handle.
type Factory interface {
	Session(ctx context.Context) (Store, error)
}
