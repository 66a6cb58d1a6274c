// Package protocol defines the JSON wire format spoken between pathrace
// clients and the server over any transport.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the protocol version this package implements.
const Version = 2

// Server methods, called by clients.
const (
	MethodJoin        = "join"
	MethodSendChat    = "sendChat"
	MethodGetGameType = "getGameType"
	MethodGetColour   = "getColour"
	MethodCanPlay     = "canPlay"
	MethodProposeMove = "proposeMove"
	MethodLeave       = "leave"
)

// Client notifications, sent by the server.
const (
	NotifyStartGame     = "startGame"
	NotifyStartNextTurn = "startNextTurn"
	NotifyUpdateCosts   = "updateCosts"
	NotifyWin           = "win"
	NotifyGameOver      = "gameOver"
	NotifyPrintChat     = "printChat"
	NotifyIllegalMove   = "illegalMove"
)

// Message is the single envelope for requests, responses and notifications.
//
//	request:      {"id":1,"method":"join","params":{...}}
//	response:     {"id":1,"result":{...}} or {"id":1,"error":{...}}
//	notification: {"method":"startGame","params":{...}}
type Message struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Fault          `json:"error,omitempty"`
}

// IsRequest reports whether m is a client call.
func (m Message) IsRequest() bool {
	return m.ID != nil && m.Method != ""
}

// IsResponse reports whether m answers a call.
func (m Message) IsResponse() bool {
	return m.ID != nil && m.Method == ""
}

// IsNotification reports whether m is a server push.
func (m Message) IsNotification() bool {
	return m.ID == nil && m.Method != ""
}

// NewRequest builds a request envelope.
func NewRequest(id uint64, method string, params any) (Message, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return Message{}, fmt.Errorf("protocol: encode %s params: %w", method, err)
	}
	return Message{ID: &id, Method: method, Params: raw}, nil
}

// NewNotification builds a notification envelope.
func NewNotification(method string, params any) (Message, error) {
	raw, err := marshalOptional(params)
	if err != nil {
		return Message{}, fmt.Errorf("protocol: encode %s params: %w", method, err)
	}
	return Message{Method: method, Params: raw}, nil
}

// NewResult builds a successful response.
func NewResult(id uint64, result any) (Message, error) {
	if result == nil {
		result = struct{}{}
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return Message{}, fmt.Errorf("protocol: encode result: %w", err)
	}
	return Message{ID: &id, Result: raw}, nil
}

// MalformedError reports a frame that is not a valid envelope. Transports
// with message framing return it so the connection can carry on.
type MalformedError struct {
	Err error
}

func (e *MalformedError) Error() string {
	return "protocol: malformed message: " + e.Err.Error()
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}

// NewError builds a failed response.
func NewError(id uint64, fault *Fault) Message {
	return Message{ID: &id, Error: fault}
}

// DecodeParams unmarshals the params of m into v. Missing params leave v untouched.
func (m Message) DecodeParams(v any) error {
	if len(m.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Params, v); err != nil {
		return &Fault{Code: CodeBadRequest, Message: fmt.Sprintf("invalid %s params: %v", m.Method, err)}
	}
	return nil
}

// DecodeResult unmarshals the result of a response into v, or returns its fault.
func (m Message) DecodeResult(v any) error {
	if m.Error != nil {
		return m.Error
	}
	if v == nil || len(m.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Result, v); err != nil {
		return fmt.Errorf("protocol: decode result: %w", err)
	}
	return nil
}

func marshalOptional(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
