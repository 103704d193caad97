package utils

import (
	"os"

	"github.com/google/uuid"
)

// NewConnectionID returns a unique identifier for one client connection.
func NewConnectionID() string {
	return uuid.NewString()
}

// NewInstanceID derives an identifier for this server instance: the
// hostname when available, prefixed to stay unique across restarts on the
// same machine.
func NewInstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return uuid.NewString()
	}
	return host + "-" + uuid.NewString()[:8]
}
