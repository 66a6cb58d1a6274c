package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// LineCodec reads and writes newline-delimited JSON envelopes over a byte
// stream such as an SSH channel. Writes are safe for concurrent use.
type LineCodec struct {
	dec *json.Decoder

	mu  sync.Mutex
	enc *json.Encoder
}

// NewLineCodec wraps r and w.
func NewLineCodec(r io.Reader, w io.Writer) *LineCodec {
	return &LineCodec{
		dec: json.NewDecoder(r),
		enc: json.NewEncoder(w),
	}
}

// Read decodes the next envelope. It returns io.EOF at end of stream.
func (c *LineCodec) Read() (Message, error) {
	var m Message
	if err := c.dec.Decode(&m); err != nil {
		if err == io.EOF {
			return Message{}, io.EOF
		}
		return Message{}, fmt.Errorf("protocol: read: %w", err)
	}
	return m, nil
}

// Write encodes m followed by a newline.
func (c *LineCodec) Write(m Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.enc.Encode(m); err != nil {
		return fmt.Errorf("protocol: write: %w", err)
	}
	return nil
}
