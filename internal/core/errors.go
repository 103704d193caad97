package core

import "errors"

// Error codes for domain errors.
const (
	ErrCodeNotIdentified   = "not_identified"
	ErrCodeChannelNotFound = "channel_not_found"
	ErrCodeBadRequest      = "bad_request"
	ErrCodeInternal        = "internal_error"
)

// MsgNotIdentified is the client-facing NotIdentified message. The wording
// is part of the UI contract.
const MsgNotIdentified = "Utilisateur non identifié"

var (
	ErrNotIdentified   = errors.New("connection not identified")
	ErrChannelNotFound = errors.New("channel not found")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
