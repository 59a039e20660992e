package model

import "errors"

var (
	// ErrAuthenticationRequired rejects any event arriving before a
	// successful handshake. Connection-local; the connection stays open.
	ErrAuthenticationRequired = errors.New("authentication required")

	// ErrInvalidRecipient rejects a send before anything is persisted.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrPersistence means the message store refused the append; the message
	// is not considered sent and nothing was pushed.
	ErrPersistence = errors.New("message store unavailable")

	// ErrUnknownIdentity is returned by the identity directory for an id it
	// has never seen.
	ErrUnknownIdentity = errors.New("unknown identity")
)
