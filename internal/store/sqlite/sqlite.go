package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/causerie/causerie-server/internal/store"
)

func newUserID() string {
	return uuid.NewString()
}

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = store.ErrNotFound

// Schema is applied on startup. CREATE IF NOT EXISTS keeps restarts cheap;
// there is no migration history beyond this file.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	is_admin      BOOLEAN NOT NULL DEFAULT 0,
	is_guest      BOOLEAN NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS connections (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	username         TEXT NOT NULL,
	channel          TEXT,
	connected_at     DATETIME NOT NULL,
	last_activity_at DATETIME NOT NULL,
	last_ping_at     DATETIME NOT NULL,
	instance_id      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_connections_username ON connections(username);
CREATE INDEX IF NOT EXISTS idx_connections_user     ON connections(user_id);
CREATE INDEX IF NOT EXISTS idx_connections_channel  ON connections(channel);
CREATE INDEX IF NOT EXISTS idx_connections_ping     ON connections(last_ping_at);

CREATE TABLE IF NOT EXISTS channels (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	created_by  TEXT NOT NULL,
	description TEXT,
	muted       BOOLEAN NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	deleted_at  DATETIME
);

CREATE TABLE IF NOT EXISTS mutes (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel    TEXT,
	user_id    TEXT NOT NULL,
	muted_by   TEXT NOT NULL,
	reason     TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_mutes_scope_user ON mutes(COALESCE(channel, ''), user_id);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel    TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	username   TEXT NOT NULL,
	body       TEXT NOT NULL,
	suppressed BOOLEAN NOT NULL DEFAULT 0,
	deleted    BOOLEAN NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel, created_at DESC);

CREATE TABLE IF NOT EXISTS private_messages (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
	from_user_id          TEXT NOT NULL,
	from_username         TEXT NOT NULL,
	to_user_id            TEXT NOT NULL,
	to_username           TEXT NOT NULL,
	body                  TEXT NOT NULL,
	read                  BOOLEAN NOT NULL DEFAULT 0,
	hidden_from_sender    BOOLEAN NOT NULL DEFAULT 0,
	hidden_from_recipient BOOLEAN NOT NULL DEFAULT 0,
	created_at            DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_private_pair ON private_messages(from_user_id, to_user_id, read);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single writer connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function after
// applying the schema. Useful for tests to seed fixtures.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Session implements store.Factory. database/sql hands each call its own
// pooled connection, so the same store doubles as the per-tick session
// source for background services.
func (s *SQLiteStore) Session(_ context.Context) (store.Store, error) {
	return s, nil
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash string) (*store.User, error) {
	id := newUserID()
	query := `
		INSERT INTO users (id, username, password_hash, is_admin, is_guest)
		VALUES (?, ?, ?, 0, 0)
	`
	if _, err := s.db.ExecContext(ctx, query, id, username, passwordHash); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// CreateGuestUser creates a temporary guest identity. The id may be
// client-generated; guests carry no password.
func (s *SQLiteStore) CreateGuestUser(ctx context.Context, id, username string) (*store.User, error) {
	query := `
		INSERT INTO users (id, username, password_hash, is_admin, is_guest)
		VALUES (?, ?, '', 0, 1)
	`
	if _, err := s.db.ExecContext(ctx, query, id, username); err != nil {
		return nil, fmt.Errorf("insert guest user: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by id.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_admin, is_guest, created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.IsGuest,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// GetUserByUsername retrieves a registered user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, is_admin, is_guest, created_at
		FROM users
		WHERE username = ? AND is_guest = 0
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.IsAdmin,
		&user.IsGuest,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// SetUserAdmin grants or revokes the admin flag.
func (s *SQLiteStore) SetUserAdmin(ctx context.Context, id string, admin bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_admin = ? WHERE id = ?`, admin, id)
	if err != nil {
		return fmt.Errorf("update user admin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

// ==== ConnectionStore implementation ====

// UpsertConnection creates the presence record on first ping and refreshes
// the timestamps afterwards. The channel column is only set on insert; join
// and leave manage it through SetConnectionChannel.
func (s *SQLiteStore) UpsertConnection(ctx context.Context, conn *store.Connection) error {
	query := `
		INSERT INTO connections (id, user_id, username, channel, connected_at, last_activity_at, last_ping_at, instance_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id          = excluded.user_id,
			username         = excluded.username,
			last_activity_at = excluded.last_activity_at,
			last_ping_at     = excluded.last_ping_at
	`
	_, err := s.db.ExecContext(ctx, query,
		conn.ID,
		conn.UserID,
		conn.Username,
		conn.Channel,
		conn.ConnectedAt,
		conn.LastActivityAt,
		conn.LastPingAt,
		conn.InstanceID,
	)
	if err != nil {
		return fmt.Errorf("upsert connection: %w", err)
	}
	return nil
}

// GetConnection retrieves a presence record by connection id.
func (s *SQLiteStore) GetConnection(ctx context.Context, id string) (*store.Connection, error) {
	query := `
		SELECT id, user_id, username, channel, connected_at, last_activity_at, last_ping_at, instance_id
		FROM connections
		WHERE id = ?
	`
	conn, err := scanConnection(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("connection %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("query connection: %w", err)
	}
	return conn, nil
}

// SetConnectionChannel records the channel the connection is in (nil clears it).
func (s *SQLiteStore) SetConnectionChannel(ctx context.Context, id string, channel *string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE connections SET channel = ? WHERE id = ?`, channel, id); err != nil {
		return fmt.Errorf("update connection channel: %w", err)
	}
	return nil
}

// TouchConnectionActivity refreshes last-activity.
func (s *SQLiteStore) TouchConnectionActivity(ctx context.Context, id string, at time.Time) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE connections SET last_activity_at = ? WHERE id = ?`, at, id); err != nil {
		return fmt.Errorf("touch connection: %w", err)
	}
	return nil
}

// DeleteConnection removes one presence record.
func (s *SQLiteStore) DeleteConnection(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete connection: %w", err)
	}
	return nil
}

// CountConnectionsByUsername counts live records for a username.
func (s *SQLiteStore) CountConnectionsByUsername(ctx context.Context, username string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM connections WHERE username = ?`, username).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count connections: %w", err)
	}
	return n, nil
}

// ListConnectionsByUserID lists every live connection of a user.
func (s *SQLiteStore) ListConnectionsByUserID(ctx context.Context, userID string) ([]*store.Connection, error) {
	query := `
		SELECT id, user_id, username, channel, connected_at, last_activity_at, last_ping_at, instance_id
		FROM connections
		WHERE user_id = ?
		ORDER BY connected_at
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query connections by user: %w", err)
	}
	defer rows.Close()
	return collectConnections(rows)
}

// ListConnectionsInChannel lists the channel's current members.
func (s *SQLiteStore) ListConnectionsInChannel(ctx context.Context, channel string) ([]*store.Connection, error) {
	query := `
		SELECT id, user_id, username, channel, connected_at, last_activity_at, last_ping_at, instance_id
		FROM connections
		WHERE channel = ?
		ORDER BY connected_at
	`
	rows, err := s.db.QueryContext(ctx, query, channel)
	if err != nil {
		return nil, fmt.Errorf("query channel members: %w", err)
	}
	defer rows.Close()
	return collectConnections(rows)
}

// LatestConnectionByUsername returns the most recently pinged record for a
// username, matched case-insensitively. Returns nil, nil when the user has
// no live connection at all.
func (s *SQLiteStore) LatestConnectionByUsername(ctx context.Context, username string) (*store.Connection, error) {
	query := `
		SELECT id, user_id, username, channel, connected_at, last_activity_at, last_ping_at, instance_id
		FROM connections
		WHERE LOWER(username) = LOWER(?)
		ORDER BY last_ping_at DESC
		LIMIT 1
	`
	conn, err := scanConnection(s.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query latest connection: %w", err)
	}
	return conn, nil
}

// DeleteConnectionsPingedBefore bulk-deletes stale presence records.
func (s *SQLiteStore) DeleteConnectionsPingedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM connections WHERE last_ping_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale connections: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale connections affected: %w", err)
	}
	return n, nil
}

// ClearChannelMembership detaches every connection from the channel.
func (s *SQLiteStore) ClearChannelMembership(ctx context.Context, channel string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE connections SET channel = NULL WHERE channel = ?`, channel); err != nil {
		return fmt.Errorf("clear channel membership: %w", err)
	}
	return nil
}

// ==== ChannelStore implementation ====

// CreateChannel creates a channel with a unique name.
func (s *SQLiteStore) CreateChannel(ctx context.Context, name, createdBy string, description *string) (*store.Channel, error) {
	query := `
		INSERT INTO channels (name, created_by, description)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, name, createdBy, description); err != nil {
		return nil, fmt.Errorf("insert channel: %w", err)
	}
	return s.GetChannelByName(ctx, name)
}

// GetChannelByName retrieves a live channel by name.
func (s *SQLiteStore) GetChannelByName(ctx context.Context, name string) (*store.Channel, error) {
	query := `
		SELECT id, name, created_by, description, muted, created_at, deleted_at
		FROM channels
		WHERE name = ? AND deleted_at IS NULL
	`
	ch, err := scanChannel(s.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("channel %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("query channel: %w", err)
	}
	return ch, nil
}

// ListChannels lists live channels.
func (s *SQLiteStore) ListChannels(ctx context.Context) ([]*store.Channel, error) {
	return s.listChannels(ctx, false)
}

// ListUnmutedChannels lists live channels whose mute flag is unset.
func (s *SQLiteStore) ListUnmutedChannels(ctx context.Context) ([]*store.Channel, error) {
	return s.listChannels(ctx, true)
}

func (s *SQLiteStore) listChannels(ctx context.Context, unmutedOnly bool) ([]*store.Channel, error) {
	query := `
		SELECT id, name, created_by, description, muted, created_at, deleted_at
		FROM channels
		WHERE deleted_at IS NULL
	`
	if unmutedOnly {
		query += ` AND muted = 0`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	channels := make([]*store.Channel, 0)
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

// SetChannelMuted flips the whole-channel mute flag.
func (s *SQLiteStore) SetChannelMuted(ctx context.Context, name string, muted bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE channels SET muted = ? WHERE name = ? AND deleted_at IS NULL`, muted, name)
	if err != nil {
		return fmt.Errorf("update channel mute: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("channel %s: %w", name, ErrNotFound)
	}
	return nil
}

// SetChannelDescription updates the optional description.
func (s *SQLiteStore) SetChannelDescription(ctx context.Context, name string, description *string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE channels SET description = ? WHERE name = ? AND deleted_at IS NULL`, description, name)
	if err != nil {
		return fmt.Errorf("update channel description: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("channel %s: %w", name, ErrNotFound)
	}
	return nil
}

// DeleteChannel soft-deletes the channel. Cascading to its messages and
// to connection membership is the caller's business.
func (s *SQLiteStore) DeleteChannel(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE channels SET deleted_at = ? WHERE name = ? AND deleted_at IS NULL`, time.Now().UTC(), name)
	if err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("channel %s: %w", name, ErrNotFound)
	}
	return nil
}

// ==== MuteStore implementation ====

// CreateMute inserts a record; the unique index rejects a second active
// record for the same (scope, user) pair.
func (s *SQLiteStore) CreateMute(ctx context.Context, rec *store.MuteRecord) (*store.MuteRecord, error) {
	query := `
		INSERT INTO mutes (channel, user_id, muted_by, reason)
		VALUES (?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query, rec.Channel, rec.UserID, rec.MutedBy, rec.Reason)
	if err != nil {
		return nil, fmt.Errorf("insert mute: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("mute last insert id: %w", err)
	}

	out := *rec
	out.ID = id
	err = s.db.QueryRowContext(ctx, `SELECT created_at FROM mutes WHERE id = ?`, id).Scan(&out.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("query mute: %w", err)
	}
	return &out, nil
}

// DeleteMute removes the record for the given scope and user.
func (s *SQLiteStore) DeleteMute(ctx context.Context, channel *string, userID string) error {
	var (
		res sql.Result
		err error
	)
	if channel == nil {
		res, err = s.db.ExecContext(ctx, `DELETE FROM mutes WHERE channel IS NULL AND user_id = ?`, userID)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM mutes WHERE channel = ? AND user_id = ?`, *channel, userID)
	}
	if err != nil {
		return fmt.Errorf("delete mute: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mute for user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// IsUserMuted reports whether the user is muted in the channel, by a
// channel-scoped record or a global one.
func (s *SQLiteStore) IsUserMuted(ctx context.Context, channel, userID string) (bool, error) {
	query := `
		SELECT COUNT(*)
		FROM mutes
		WHERE user_id = ? AND (channel = ? OR channel IS NULL)
	`
	var n int
	if err := s.db.QueryRowContext(ctx, query, userID, channel).Scan(&n); err != nil {
		return false, fmt.Errorf("query mutes: %w", err)
	}
	return n > 0, nil
}

// HasGlobalMute reports whether the user carries a global mute.
func (s *SQLiteStore) HasGlobalMute(ctx context.Context, userID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mutes WHERE user_id = ? AND channel IS NULL`, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query global mute: %w", err)
	}
	return n > 0, nil
}

// ListMutes lists active records, optionally narrowed to one channel scope.
func (s *SQLiteStore) ListMutes(ctx context.Context, channel *string) ([]*store.MuteRecord, error) {
	query := `
		SELECT id, channel, user_id, muted_by, reason, created_at
		FROM mutes
	`
	args := []any{}
	if channel != nil {
		query += ` WHERE channel = ?`
		args = append(args, *channel)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mutes: %w", err)
	}
	defer rows.Close()

	records := make([]*store.MuteRecord, 0)
	for rows.Next() {
		var rec store.MuteRecord
		if err := rows.Scan(&rec.ID, &rec.Channel, &rec.UserID, &rec.MutedBy, &rec.Reason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mute: %w", err)
		}
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// ==== MessageStore implementation ====

// SaveMessage persists a channel message and fills in its id.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (channel, user_id, username, body, suppressed, deleted, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		msg.Channel,
		msg.UserID,
		msg.Username,
		msg.Body,
		msg.Suppressed,
		msg.Deleted,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("message last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// ListMessages retrieves recent visible messages for a channel, newest last.
func (s *SQLiteStore) ListMessages(ctx context.Context, channel string, limit int, beforeID *int64) ([]*store.Message, error) {
	query := `
		SELECT id, channel, user_id, username, body, suppressed, deleted, created_at
		FROM messages
		WHERE channel = ? AND suppressed = 0 AND deleted = 0
	`
	args := []any{channel}
	if beforeID != nil {
		query += ` AND id < ?`
		args = append(args, *beforeID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.Message, 0, limit)
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.Channel, &msg.UserID, &msg.Username, &msg.Body, &msg.Suppressed, &msg.Deleted, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Oldest first for display.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// SoftDeleteChannelMessages flags every message of the channel deleted.
func (s *SQLiteStore) SoftDeleteChannelMessages(ctx context.Context, channel string) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE messages SET deleted = 1 WHERE channel = ?`, channel); err != nil {
		return fmt.Errorf("soft delete channel messages: %w", err)
	}
	return nil
}

// ==== PrivateMessageStore implementation ====

// SavePrivateMessage persists a direct message and fills in its id.
func (s *SQLiteStore) SavePrivateMessage(ctx context.Context, msg *store.PrivateMessage) error {
	query := `
		INSERT INTO private_messages (from_user_id, from_username, to_user_id, to_username, body, read, hidden_from_sender, hidden_from_recipient, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query,
		msg.FromUserID,
		msg.FromUsername,
		msg.ToUserID,
		msg.ToUsername,
		msg.Body,
		msg.Read,
		msg.HiddenFromSender,
		msg.HiddenFromRecipient,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert private message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("private message last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// MarkPrivateMessagesRead marks unread messages from one user to another as
// read and returns the ids affected.
func (s *SQLiteStore) MarkPrivateMessagesRead(ctx context.Context, fromUserID, toUserID string) ([]int64, error) {
	query := `
		SELECT id FROM private_messages
		WHERE from_user_id = ? AND to_user_id = ? AND read = 0
	`
	rows, err := s.db.QueryContext(ctx, query, fromUserID, toUserID)
	if err != nil {
		return nil, fmt.Errorf("query unread private messages: %w", err)
	}
	defer rows.Close()

	ids := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan private message id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	update := `
		UPDATE private_messages SET read = 1
		WHERE from_user_id = ? AND to_user_id = ? AND read = 0
	`
	if _, err := s.db.ExecContext(ctx, update, fromUserID, toUserID); err != nil {
		return nil, fmt.Errorf("mark private messages read: %w", err)
	}
	return ids, nil
}

// ListConversation retrieves messages between two users still visible to
// the viewer, newest last.
func (s *SQLiteStore) ListConversation(ctx context.Context, viewerID, otherID string, limit int) ([]*store.PrivateMessage, error) {
	query := `
		SELECT id, from_user_id, from_username, to_user_id, to_username, body, read, hidden_from_sender, hidden_from_recipient, created_at
		FROM private_messages
		WHERE (
			(from_user_id = ? AND to_user_id = ? AND hidden_from_sender = 0)
			OR
			(from_user_id = ? AND to_user_id = ? AND hidden_from_recipient = 0)
		)
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, viewerID, otherID, otherID, viewerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	messages := make([]*store.PrivateMessage, 0, limit)
	for rows.Next() {
		var msg store.PrivateMessage
		err := rows.Scan(
			&msg.ID,
			&msg.FromUserID,
			&msg.FromUsername,
			&msg.ToUserID,
			&msg.ToUsername,
			&msg.Body,
			&msg.Read,
			&msg.HiddenFromSender,
			&msg.HiddenFromRecipient,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan private message: %w", err)
		}
		messages = append(messages, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// HideConversationFor soft-deletes the conversation for one party only.
func (s *SQLiteStore) HideConversationFor(ctx context.Context, viewerID, otherID string) error {
	asSender := `
		UPDATE private_messages SET hidden_from_sender = 1
		WHERE from_user_id = ? AND to_user_id = ?
	`
	if _, err := s.db.ExecContext(ctx, asSender, viewerID, otherID); err != nil {
		return fmt.Errorf("hide conversation for sender: %w", err)
	}
	asRecipient := `
		UPDATE private_messages SET hidden_from_recipient = 1
		WHERE from_user_id = ? AND to_user_id = ?
	`
	if _, err := s.db.ExecContext(ctx, asRecipient, otherID, viewerID); err != nil {
		return fmt.Errorf("hide conversation for recipient: %w", err)
	}
	return nil
}

// ==== helpers ====

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*store.Connection, error) {
	var conn store.Connection
	err := row.Scan(
		&conn.ID,
		&conn.UserID,
		&conn.Username,
		&conn.Channel,
		&conn.ConnectedAt,
		&conn.LastActivityAt,
		&conn.LastPingAt,
		&conn.InstanceID,
	)
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

func collectConnections(rows *sql.Rows) ([]*store.Connection, error) {
	conns := make([]*store.Connection, 0)
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connection: %w", err)
		}
		conns = append(conns, conn)
	}
	return conns, rows.Err()
}

func scanChannel(row rowScanner) (*store.Channel, error) {
	var ch store.Channel
	err := row.Scan(
		&ch.ID,
		&ch.Name,
		&ch.CreatedBy,
		&ch.Description,
		&ch.Muted,
		&ch.CreatedAt,
		&ch.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ch, nil
}
