package multiplayer

import (
	"strings"
	"sync"

	"github.com/vovakirdan/pathrace/internal/core"
)

// ClientSession is a named connection that has joined the server.
type ClientSession struct {
	Name   string
	Role   SessionRole
	Marker core.Marker
	Handle SessionHandle
	Player *PlayerSession // nil for chat-only sessions
}

// SessionRegistry tracks joined sessions by name.
// Thread-safe for concurrent access.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*ClientSession
	order    []string // join order
	players  int
	capacity int
	palette  *core.Palette
}

// NewSessionRegistry creates a registry admitting up to capacity players.
// A capacity below one means unlimited.
func NewSessionRegistry(capacity int, palette *core.Palette) *SessionRegistry {
	if palette == nil {
		palette = core.NewPalette(1)
	}
	return &SessionRegistry{
		sessions: make(map[string]*ClientSession),
		capacity: capacity,
		palette:  palette,
	}
}

// Register adds a session under name. While seating is true and capacity
// allows, the session becomes a player with the next palette colour; otherwise
// it is chat-only.
func (r *SessionRegistry) Register(name string, handle SessionHandle, seating bool) (*ClientSession, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalidName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.sessions[name]; taken {
		return nil, ErrNameTaken
	}

	cs := &ClientSession{
		Name:   name,
		Role:   RoleChatOnly,
		Marker: core.ChatMarker,
		Handle: handle,
	}
	if seating && (r.capacity < 1 || r.players < r.capacity) {
		cs.Role = RolePlayer
		cs.Marker = r.palette.Next()
		cs.Player = NewPlayerSession(name, cs.Marker, handle)
		r.players++
	}

	r.sessions[name] = cs
	r.order = append(r.order, name)
	return cs, nil
}

// Unregister removes a session and returns it.
func (r *SessionRegistry) Unregister(name string) (*ClientSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cs, ok := r.sessions[name]
	if !ok {
		return nil, false
	}
	delete(r.sessions, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	if cs.Role == RolePlayer {
		r.players--
	}
	return cs, true
}

// Get retrieves a session by name.
func (r *SessionRegistry) Get(name string) (*ClientSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cs, ok := r.sessions[name]
	return cs, ok
}

// Players returns the player sessions in join order.
func (r *SessionRegistry) Players() []*ClientSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ClientSession, 0, r.players)
	for _, name := range r.order {
		if cs := r.sessions[name]; cs.Role == RolePlayer {
			out = append(out, cs)
		}
	}
	return out
}

// Sessions returns every session in join order.
func (r *SessionRegistry) Sessions() []*ClientSession {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*ClientSession, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.sessions[name])
	}
	return out
}

// Count returns the number of registered sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PlayerCount returns the number of player sessions.
func (r *SessionRegistry) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.players
}

// Capacity returns the player cap, zero for unlimited.
func (r *SessionRegistry) Capacity() int {
	if r.capacity < 1 {
		return 0
	}
	return r.capacity
}

// Broadcast sends an event to every session and returns the names whose
// send failed.
func (r *SessionRegistry) Broadcast(evt SessionEvent) []string {
	var failed []string
	for _, cs := range r.Sessions() {
		if cs.Handle == nil {
			continue
		}
		if err := cs.Handle.Send(evt); err != nil {
			failed = append(failed, cs.Name)
		}
	}
	return failed
}
