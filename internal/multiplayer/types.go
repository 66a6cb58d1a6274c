// Package multiplayer implements the authoritative game server: the session
// registry, the per-player discovered-cell state and the round-based turn engine.
// It is transport-neutral; transports talk to it through Coordinator and
// receive notifications through SessionHandle.
package multiplayer

import (
	"fmt"

	"github.com/vovakirdan/pathrace/internal/core"
)

// ProtocolVersion is the version this server speaks.
const ProtocolVersion = 2

// ClientVersions lists the client protocol versions the server accepts.
var ClientVersions = []int{2}

// GameMode selects the kind of game being hosted.
type GameMode string

const (
	// ModeRace has each player facing the same challenge independently.
	ModeRace GameMode = "race"

	// ModeBattle places players on the same terrain with interacting goals.
	ModeBattle GameMode = "battle"
)

// ParseGameMode validates a mode string.
func ParseGameMode(s string) (GameMode, error) {
	switch GameMode(s) {
	case ModeRace, ModeBattle:
		return GameMode(s), nil
	default:
		return "", fmt.Errorf("multiplayer: unknown game mode %q (want race or battle)", s)
	}
}

// GameConfig describes the hosted game. It is created once at server start
// and sent verbatim to every joining player.
type GameConfig struct {
	Mode             GameMode `json:"game"`
	TimeoutMillis    int      `json:"timeout"`
	DiagonalsAllowed bool     `json:"diagonals"`
	AutomatedAllowed bool     `json:"automated"`
	Width            int      `json:"width"`
	Height           int      `json:"height"`
	Seed             []byte   `json:"image,omitempty"` // raw terrain payload, opaque to the engine
}

// Phase is the server-wide game state.
type Phase int

const (
	PhaseLobby      Phase = iota // accepting players
	PhaseInProgress              // rounds running
	PhaseFinished                // terminal
)

// String returns a human-readable name for the phase.
func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseInProgress:
		return "in_progress"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// SessionRole is fixed at join time. Sessions that join after the game has
// started, or once capacity is reached, can only chat.
type SessionRole int

const (
	RoleChatOnly SessionRole = iota
	RolePlayer
)

// String returns a human-readable name for the role.
func (r SessionRole) String() string {
	if r == RolePlayer {
		return "player"
	}
	return "chat"
}

// PlayerInfo is the public view of a player sent at game start.
type PlayerInfo struct {
	Name   string      `json:"name"`
	Marker core.Marker `json:"colour"`
}

// Standing is one entry of the final ranking.
// Score is nil for players that forfeited.
type Standing struct {
	Name      string `json:"name"`
	Score     *int   `json:"score,omitempty"`
	Turn      int    `json:"turn,omitempty"`
	Forfeited bool   `json:"forfeited,omitempty"`
}

// Move is a single proposed move for the current round.
type Move struct {
	Player string
	Target core.Coord
	Parent *core.Coord // optional: the discovered cell the move extends from
	NoOp   bool
}

// NoOpMove returns an explicit pass for the player.
func NoOpMove(player string) Move {
	return Move{Player: player, NoOp: true}
}
