package multiplayer

import (
	"sync"

	"github.com/google/uuid"
)

// SessionID uniquely identifies a connection.
type SessionID string

// NewSessionID returns a fresh random session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// SessionHandle is the transport-neutral interface for notifying a connection.
// It allows the engine and coordinator to send events without depending on
// websockets or SSH.
type SessionHandle interface {
	// ID returns the unique session identifier.
	ID() SessionID

	// Send queues an event for the session.
	// Must be non-blocking; a failed send affects only this session.
	Send(evt SessionEvent) error

	// Done returns a channel that closes when the session ends.
	Done() <-chan struct{}
}

// ChannelSession is a SessionHandle implementation using Go channels.
// Transports drain Events() and write each event to the wire.
type ChannelSession struct {
	id       SessionID
	events   chan SessionEvent
	done     chan struct{}
	doneOnce sync.Once
}

// NewChannelSession creates a new channel-based session handle.
// eventBufferSize controls how many events can be queued before sends fail.
func NewChannelSession(id SessionID, eventBufferSize int) *ChannelSession {
	if eventBufferSize < 1 {
		eventBufferSize = 64
	}
	return &ChannelSession{
		id:     id,
		events: make(chan SessionEvent, eventBufferSize),
		done:   make(chan struct{}),
	}
}

// ID returns the session identifier.
func (s *ChannelSession) ID() SessionID {
	return s.id
}

// Send queues an event. Events are never dropped silently: a closed session or
// a full buffer is reported to the caller, and ordering of queued events is kept.
func (s *ChannelSession) Send(evt SessionEvent) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.events <- evt:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Events returns the channel to receive events from.
func (s *ChannelSession) Events() <-chan SessionEvent {
	return s.events
}

// Done returns the done channel.
func (s *ChannelSession) Done() <-chan struct{} {
	return s.done
}

// Close marks the session as done.
// Safe to call multiple times.
func (s *ChannelSession) Close() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}
