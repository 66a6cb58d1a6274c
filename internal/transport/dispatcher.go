// Package transport exposes the coordinator over websockets and SSH. Both
// transports speak protocol envelopes and share one Dispatcher.
package transport

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/pathrace/internal/multiplayer"
	"github.com/vovakirdan/pathrace/internal/protocol"
)

// DefaultEventBuffer is the per-connection notification queue size.
const DefaultEventBuffer = 256

// Dispatcher serves protocol requests against a coordinator.
type Dispatcher struct {
	coord       *multiplayer.Coordinator
	logger      *log.Logger
	eventBuffer int
}

// NewDispatcher creates a dispatcher for coord.
func NewDispatcher(coord *multiplayer.Coordinator, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Dispatcher{coord: coord, logger: logger, eventBuffer: DefaultEventBuffer}
}

// connState is the per-connection state owned by the read loop.
type connState struct {
	session *multiplayer.ChannelSession
	name    string
}

// Serve runs one connection until it closes or ctx is cancelled. A joined
// session is removed from the coordinator on the way out.
func (d *Dispatcher) Serve(ctx context.Context, conn protocol.Conn, remote string) {
	st := &connState{session: multiplayer.NewChannelSession(multiplayer.NewSessionID(), d.eventBuffer)}
	logger := d.logger.With("session", st.session.ID(), "remote", remote)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		d.pump(ctx, st.session, conn, logger)
	}()

	for {
		msg, err := conn.ReadMessage()
		var malformed *protocol.MalformedError
		if errors.As(err, &malformed) {
			logger.Debug("malformed message", "error", err)
			d.write(conn, protocol.Message{Error: &protocol.Fault{Code: protocol.CodeBadRequest, Message: malformed.Error()}}, logger)
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logger.Debug("read failed", "error", err)
			}
			break
		}
		if !msg.IsRequest() {
			if msg.ID != nil {
				d.write(conn, protocol.NewError(*msg.ID, &protocol.Fault{Code: protocol.CodeBadRequest, Message: "missing method"}), logger)
			}
			continue
		}
		d.write(conn, d.handle(st, msg, logger), logger)
	}

	if st.name != "" {
		d.coord.Leave(st.name)
	}
	st.session.Close()
	cancel()
	<-pumpDone
}

// pump writes queued session events as notifications.
func (d *Dispatcher) pump(ctx context.Context, session *multiplayer.ChannelSession, conn protocol.Conn, logger *log.Logger) {
	for {
		select {
		case evt := <-session.Events():
			msg, err := protocol.EncodeEvent(evt)
			if err != nil {
				logger.Warn("cannot encode event", "error", err)
				continue
			}
			if err := conn.WriteMessage(msg); err != nil {
				logger.Debug("notification write failed", "error", err)
				return
			}
		case <-session.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

func (d *Dispatcher) write(conn protocol.Conn, msg protocol.Message, logger *log.Logger) {
	if err := conn.WriteMessage(msg); err != nil {
		logger.Debug("response write failed", "error", err)
	}
}

func (d *Dispatcher) handle(st *connState, req protocol.Message, logger *log.Logger) protocol.Message {
	id := *req.ID
	result, err := d.call(st, req)
	if err != nil {
		fault := protocol.FaultFor(err)
		if fault.Code == protocol.CodeInternal {
			logger.Error("request failed", "method", req.Method, "error", err)
		} else {
			logger.Debug("request rejected", "method", req.Method, "code", fault.Code)
		}
		return protocol.NewError(id, fault)
	}
	resp, err := protocol.NewResult(id, result)
	if err != nil {
		return protocol.NewError(id, protocol.FaultFor(err))
	}
	return resp
}

func (d *Dispatcher) call(st *connState, req protocol.Message) (any, error) {
	if req.Method == protocol.MethodJoin {
		return d.join(st, req)
	}
	if st.name == "" {
		return nil, multiplayer.ErrNotJoined
	}

	switch req.Method {
	case protocol.MethodSendChat:
		var p protocol.SendChatParams
		if err := req.DecodeParams(&p); err != nil {
			return nil, err
		}
		return nil, d.coord.SendChat(st.name, p.Text)

	case protocol.MethodGetGameType:
		return d.coord.GameType(st.name)

	case protocol.MethodGetColour:
		m, err := d.coord.Colour(st.name)
		if err != nil {
			return nil, err
		}
		return protocol.ColourResult{Colour: m}, nil

	case protocol.MethodCanPlay:
		ok, err := d.coord.CanPlay(st.name)
		if err != nil {
			return nil, err
		}
		return protocol.CanPlayResult{CanPlay: ok}, nil

	case protocol.MethodProposeMove:
		var p protocol.ProposeMoveParams
		if err := req.DecodeParams(&p); err != nil {
			return nil, err
		}
		mv, err := p.Move()
		if err != nil {
			return nil, err
		}
		return nil, d.coord.ProposeMove(st.name, mv)

	case protocol.MethodLeave:
		d.coord.Leave(st.name)
		st.name = ""
		return nil, nil

	default:
		return nil, &protocol.Fault{Code: protocol.CodeUnknownMethod, Message: req.Method}
	}
}

func (d *Dispatcher) join(st *connState, req protocol.Message) (any, error) {
	if st.name != "" {
		return nil, &protocol.Fault{Code: protocol.CodeBadRequest, Message: "already joined as " + st.name}
	}
	var p protocol.JoinParams
	if err := req.DecodeParams(&p); err != nil {
		return nil, err
	}
	cs, err := d.coord.Join(multiplayer.JoinRequest{Name: p.Name, Version: p.Version, Automated: p.Automated}, st.session)
	if err != nil {
		return nil, err
	}
	st.name = cs.Name
	return protocol.JoinResult{
		Name:     cs.Name,
		Role:     cs.Role.String(),
		Colour:   cs.Marker,
		Protocol: protocol.Version,
	}, nil
}
