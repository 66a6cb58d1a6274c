package protocol

import "io"

// Conn is a message-oriented, full-duplex connection. WriteMessage must be
// safe for concurrent use; ReadMessage is called from a single goroutine.
type Conn interface {
	ReadMessage() (Message, error)
	WriteMessage(m Message) error
	Close() error
}

// StreamConn adapts a byte stream to Conn using newline-delimited JSON.
type StreamConn struct {
	codec  *LineCodec
	closer io.Closer
}

// NewStreamConn wraps rwc.
func NewStreamConn(rwc io.ReadWriteCloser) *StreamConn {
	return &StreamConn{codec: NewLineCodec(rwc, rwc), closer: rwc}
}

// ReadMessage reads the next envelope.
func (c *StreamConn) ReadMessage() (Message, error) {
	return c.codec.Read()
}

// WriteMessage writes one envelope.
func (c *StreamConn) WriteMessage(m Message) error {
	return c.codec.Write(m)
}

// Close closes the underlying stream.
func (c *StreamConn) Close() error {
	return c.closer.Close()
}
