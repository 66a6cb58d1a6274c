// Package client is the player side of the pathrace protocol: a request
// multiplexer over a protocol.Conn, a local mirror of the board and a
// greedy automated player.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/pathrace/internal/core"
	"github.com/vovakirdan/pathrace/internal/multiplayer"
	"github.com/vovakirdan/pathrace/internal/protocol"
)

// MaxNameRetries bounds how often Join appends "_" to a taken name.
const MaxNameRetries = 8

// ErrClosed is returned by calls on a closed connection.
var ErrClosed = errors.New("client: connection closed")

// Client issues requests over conn and delivers server notifications as
// session events.
type Client struct {
	conn   protocol.Conn
	logger *log.Logger

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]chan protocol.Message
	closed  bool
	err     error

	events   chan multiplayer.SessionEvent
	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// New starts reading from conn.
func New(conn protocol.Conn, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	c := &Client{
		conn:    conn,
		logger:  logger,
		pending: make(map[uint64]chan protocol.Message),
		events:  make(chan multiplayer.SessionEvent, 256),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Events delivers notifications in arrival order. It is closed when the
// connection ends. Responses are read on the same stream, so callers must
// keep draining it.
func (c *Client) Events() <-chan multiplayer.SessionEvent {
	return c.events
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the error that ended the connection, nil for a clean close.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close closes the connection.
func (c *Client) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) readLoop() {
	defer close(c.events)
	defer c.shutdown()
	for {
		msg, err := c.conn.ReadMessage()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.mu.Lock()
				c.err = err
				c.mu.Unlock()
			}
			return
		}
		switch {
		case msg.IsResponse():
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			delete(c.pending, *msg.ID)
			c.mu.Unlock()
			if ok {
				ch <- msg
			} else {
				c.logger.Debug("unexpected response", "id", *msg.ID)
			}
		case msg.IsNotification():
			evt, err := protocol.DecodeEvent(msg)
			if err != nil {
				c.logger.Warn("dropping notification", "method", msg.Method, "error", err)
				continue
			}
			select {
			case c.events <- evt:
			case <-c.stop:
				return
			}
		default:
			c.logger.Debug("ignoring message", "method", msg.Method)
		}
	}
}

func (c *Client) shutdown() {
	c.mu.Lock()
	c.closed = true
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.mu.Unlock()
	close(c.done)
}

// call sends one request and waits for its response.
func (c *Client) call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.nextID++
	id := c.nextID
	ch := make(chan protocol.Message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	req, err := protocol.NewRequest(id, method, params)
	if err != nil {
		c.forget(id)
		return err
	}
	if err := c.conn.WriteMessage(req); err != nil {
		c.forget(id)
		return fmt.Errorf("client: %s: %w", method, err)
	}

	select {
	case resp, ok := <-ch:
		if !ok {
			return ErrClosed
		}
		return resp.DecodeResult(result)
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}
}

func (c *Client) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Join registers under name. A taken name is retried with "_" appended.
func (c *Client) Join(ctx context.Context, name string, automated bool) (protocol.JoinResult, error) {
	var res protocol.JoinResult
	for attempt := 0; ; attempt++ {
		err := c.call(ctx, protocol.MethodJoin, protocol.JoinParams{
			Name:      name,
			Version:   protocol.Version,
			Automated: automated,
		}, &res)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, multiplayer.ErrNameTaken) || attempt >= MaxNameRetries {
			return protocol.JoinResult{}, err
		}
		c.logger.Info("name taken, retrying", "name", name)
		name += "_"
	}
}

// GameType fetches the hosted game's configuration.
func (c *Client) GameType(ctx context.Context) (multiplayer.GameConfig, error) {
	var cfg multiplayer.GameConfig
	err := c.call(ctx, protocol.MethodGetGameType, nil, &cfg)
	return cfg, err
}

// Colour fetches this player's marker.
func (c *Client) Colour(ctx context.Context) (core.Marker, error) {
	var res protocol.ColourResult
	err := c.call(ctx, protocol.MethodGetColour, nil, &res)
	return res.Colour, err
}

// CanPlay reports whether this session holds a player seat.
func (c *Client) CanPlay(ctx context.Context) (bool, error) {
	var res protocol.CanPlayResult
	err := c.call(ctx, protocol.MethodCanPlay, nil, &res)
	return res.CanPlay, err
}

// ProposeMove submits this round's move.
func (c *Client) ProposeMove(ctx context.Context, mv multiplayer.Move) error {
	params := protocol.ProposeMoveParams{NoOp: mv.NoOp, Parent: mv.Parent}
	if !mv.NoOp {
		target := mv.Target
		params.Target = &target
	}
	return c.call(ctx, protocol.MethodProposeMove, params, nil)
}

// SendChat broadcasts a chat line.
func (c *Client) SendChat(ctx context.Context, text string) error {
	return c.call(ctx, protocol.MethodSendChat, protocol.SendChatParams{Text: text}, nil)
}

// Leave gives up the seat without closing the connection.
func (c *Client) Leave(ctx context.Context) error {
	return c.call(ctx, protocol.MethodLeave, nil, nil)
}
