// Package chat fans chat lines out to every connected session, either in
// process or over a NATS bus.
package chat

import (
	"errors"
	"fmt"
	"sync"

	"github.com/vovakirdan/pathrace/internal/core"
)

// ErrClosed is returned by a relay after Close.
var ErrClosed = errors.New("chat: relay closed")

// Message is one chat line.
type Message struct {
	Sender string      `json:"sender"`
	Text   string      `json:"text"`
	Colour core.Marker `json:"colour"`
}

// Format renders a line the way clients print it.
func Format(sender, text string) string {
	return fmt.Sprintf("<%s> %s", sender, text)
}

// Handler receives published messages.
type Handler func(Message)

// Relay delivers every published message to every subscriber.
type Relay interface {
	Publish(msg Message) error
	Subscribe(h Handler) (unsubscribe func(), err error)
	Close() error
}

// Local is an in-process Relay. Handlers run synchronously on the publishing
// goroutine in subscription order.
type Local struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
	order    []int
	closed   bool
}

// NewLocal creates an in-process relay.
func NewLocal() *Local {
	return &Local{handlers: make(map[int]Handler)}
}

// Publish delivers msg to every subscriber.
func (l *Local) Publish(msg Message) error {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return ErrClosed
	}
	hs := make([]Handler, 0, len(l.order))
	for _, id := range l.order {
		hs = append(hs, l.handlers[id])
	}
	l.mu.RUnlock()

	for _, h := range hs {
		h(msg)
	}
	return nil
}

// Subscribe registers h.
func (l *Local) Subscribe(h Handler) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, ErrClosed
	}

	id := l.next
	l.next++
	l.handlers[id] = h
	l.order = append(l.order, id)

	var once sync.Once
	return func() {
		once.Do(func() { l.remove(id) })
	}, nil
}

func (l *Local) remove(id int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.handlers, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			return
		}
	}
}

// Close drops all subscribers.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.handlers = make(map[int]Handler)
	l.order = nil
	return nil
}
