package multiplayer

import "errors"

// Faults reported to clients. Transports map these to wire fault codes.
var (
	ErrNameTaken       = errors.New("name already taken")
	ErrVersionMismatch = errors.New("client version not supported")
	ErrIllegalMove     = errors.New("illegal move")
	ErrDuplicateMove   = errors.New("move already submitted this round")
	ErrNoRound         = errors.New("no round is accepting moves")
	ErrNotPlayer       = errors.New("session is chat-only")
	ErrNotJoined       = errors.New("session has not joined")
	ErrInvalidName     = errors.New("invalid name")
	ErrAutomatedBanned = errors.New("automated clients are not allowed")
)

// Engine failures. These indicate a bug, not player behaviour, and end the game.
var (
	ErrQueueInvariant = errors.New("move queue invariant violated")
	ErrPathNotFound   = errors.New("no path from start to end")
)

// ErrSessionClosed and ErrSendBufferFull are returned by SessionHandle.Send.
var (
	ErrSessionClosed  = errors.New("session closed")
	ErrSendBufferFull = errors.New("session send buffer full")
)
