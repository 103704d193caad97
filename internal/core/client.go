package core

// Client is a live connection as seen by the core layer. UserID and
// Username come from the transport's identity source and must be settled
// before the client is handed to Hub.Connect: once registered the identity
// fields are read concurrently by other connections' operations and may not
// be written again. The id is unique for the lifetime of the underlying
// connection.
type Client struct {
	ID       string
	UserID   string
	Username string
	IsAdmin  bool
	Events   chan *Event
}

// NewClient constructs a client with an initialized event channel.
func NewClient(id, userID, username string, isAdmin bool) *Client {
	return &Client{
		ID:       id,
		UserID:   userID,
		Username: username,
		IsAdmin:  isAdmin,
		Events:   make(chan *Event, 32),
	}
}

func (c *Client) send(ev *Event) {
	select {
	case c.Events <- ev:
	default:
		// Drop if slow consumer.
	}
}
