package core

import "errors"

var (
	// ErrInvalidArgument marks a malformed join or message request. The
	// request is dropped; nothing is broadcast and nothing crashes.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrStore marks a persistence failure. The message is not broadcast but
	// the connection stays alive.
	ErrStore = errors.New("store failure")

	// ErrAlreadyBound is returned for a second join on a bound connection.
	ErrAlreadyBound = errors.New("connection already bound to a room")

	// ErrClosed is returned for any event on a closed connection.
	ErrClosed = errors.New("connection closed")
)
