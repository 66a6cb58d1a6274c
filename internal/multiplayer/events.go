package multiplayer

import "github.com/vovakirdan/pathrace/internal/core"

// SessionEvent represents a notification sent from the server to a session.
type SessionEvent interface {
	sessionEvent()
}

// StartGameEvent is sent to every player when the game begins.
// Delta carries each player's start cell painted in their marker.
type StartGameEvent struct {
	GameID  string
	Start   core.Coord
	End     core.Coord
	Players []PlayerInfo
	Delta   []core.CellCost
}

func (StartGameEvent) sessionEvent() {}

// StartNextTurnEvent carries the previous round's terrain delta and
// re-enables input for an active player.
type StartNextTurnEvent struct {
	Turn  int
	Delta []core.CellCost
}

func (StartNextTurnEvent) sessionEvent() {}

// UpdateCostsEvent carries a terrain delta to a player that no longer moves.
type UpdateCostsEvent struct {
	Turn  int
	Delta []core.CellCost
}

func (UpdateCostsEvent) sessionEvent() {}

// WinEvent is sent to the best-ranked player.
type WinEvent struct {
	Standings []Standing
}

func (WinEvent) sessionEvent() {}

// GameOverEvent is sent to every other player.
type GameOverEvent struct {
	Standings []Standing
}

func (GameOverEvent) sessionEvent() {}

// ChatEvent delivers a chat line to a session.
type ChatEvent struct {
	Text   string
	Colour core.Marker
}

func (ChatEvent) sessionEvent() {}

// IllegalMoveEvent tells a player their move for the round was discarded.
type IllegalMoveEvent struct {
	Turn   int
	Target core.Coord
	Reason string
}

func (IllegalMoveEvent) sessionEvent() {}
