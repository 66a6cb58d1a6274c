package multiplayer

import (
	"fmt"
	"sync"
)

// Inbox is the single synchronization point between connection goroutines
// and the engine. Connections Submit moves; only the engine reads them.
//
// A round gate admits at most one move per eligible player per round, so the
// buffered channel can never fill and Submit never blocks.
type Inbox struct {
	mu        sync.Mutex
	moves     chan Move
	open      bool
	turn      int
	eligible  map[string]bool
	submitted map[string]bool
	admitted  int
}

// NewInbox creates an inbox for up to capacity players.
func NewInbox(capacity int) *Inbox {
	if capacity < 1 {
		capacity = 1
	}
	return &Inbox{
		moves:     make(chan Move, capacity),
		eligible:  make(map[string]bool),
		submitted: make(map[string]bool),
	}
}

// Open starts accepting moves for a round from the named players.
func (b *Inbox) Open(turn int, eligible []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.open = true
	b.turn = turn
	b.admitted = 0
	b.eligible = make(map[string]bool, len(eligible))
	for _, name := range eligible {
		b.eligible[name] = true
	}
	b.submitted = make(map[string]bool, len(eligible))
}

// Withdraw stops accepting moves from a player for the rest of the round.
func (b *Inbox) Withdraw(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.eligible, name)
}

// Turn returns the round currently or most recently open.
func (b *Inbox) Turn() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.turn
}

// Submit queues a move for the open round.
func (b *Inbox) Submit(mv Move) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open || !b.eligible[mv.Player] {
		return ErrNoRound
	}
	if b.submitted[mv.Player] {
		return ErrDuplicateMove
	}

	select {
	case b.moves <- mv:
	default:
		// Unreachable while the gate holds; treat as a lost move.
		return fmt.Errorf("%w: queue full on turn %d", ErrQueueInvariant, b.turn)
	}
	b.submitted[mv.Player] = true
	b.admitted++
	return nil
}

// Moves returns the channel the engine receives from.
func (b *Inbox) Moves() <-chan Move {
	return b.moves
}

// Close shuts the gate and drains moves that arrived after the engine stopped
// collecting. consumed is how many moves the engine received this round.
// Every admitted move must be either consumed or drained, and the queue must
// be empty afterwards.
func (b *Inbox) Close(consumed int) ([]Move, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.open = false

	var late []Move
	for {
		select {
		case mv := <-b.moves:
			late = append(late, mv)
			continue
		default:
		}
		break
	}

	if n := len(b.moves); n != 0 {
		return late, fmt.Errorf("%w: %d moves left after drain on turn %d", ErrQueueInvariant, n, b.turn)
	}
	if consumed+len(late) != b.admitted {
		return late, fmt.Errorf("%w: admitted %d moves on turn %d, collected %d and drained %d",
			ErrQueueInvariant, b.admitted, b.turn, consumed, len(late))
	}
	return late, nil
}

// Len returns the number of queued moves.
func (b *Inbox) Len() int {
	return len(b.moves)
}
