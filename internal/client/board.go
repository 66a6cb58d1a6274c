package client

import (
	"fmt"

	"github.com/vovakirdan/pathrace/internal/config"
	"github.com/vovakirdan/pathrace/internal/core"
	"github.com/vovakirdan/pathrace/internal/multiplayer"
)

// chatHistory is how many chat lines a board keeps.
const chatHistory = 50

// Board mirrors what one player knows about the game: the shared terrain,
// its own discovered cells and the outcome. It is not safe for concurrent use.
type Board struct {
	Game    multiplayer.GameConfig
	Terrain *core.Terrain
	Adj     core.Adjacency
	Me      *multiplayer.PlayerSession
	Players []multiplayer.PlayerInfo

	GameID    string
	Turn      int
	Started   bool
	Over      bool
	Won       bool
	Standings []multiplayer.Standing
	Chat      []multiplayer.ChatEvent
	LastError string

	pending *pendingMove
}

type pendingMove struct {
	turn   int
	target core.Coord
	parent core.Coord
}

// NewBoard builds a board from the game configuration. The terrain comes
// from the seed payload when present, otherwise it starts black.
func NewBoard(game multiplayer.GameConfig, name string, marker core.Marker) (*Board, error) {
	var terrain *core.Terrain
	if len(game.Seed) > 0 {
		t, err := config.ParseTerrain(game.Seed)
		if err != nil {
			return nil, fmt.Errorf("client: terrain seed: %w", err)
		}
		if t.W != game.Width || t.H != game.Height {
			return nil, fmt.Errorf("client: seed is %dx%d, game is %dx%d", t.W, t.H, game.Width, game.Height)
		}
		terrain = t
	} else {
		terrain = core.NewTerrain(game.Width, game.Height, core.Cost{})
	}
	return &Board{
		Game:    game,
		Terrain: terrain,
		Adj:     core.NewAdjacency(game.Width, game.Height, game.DiagonalsAllowed),
		Me:      multiplayer.NewPlayerSession(name, marker, nil),
	}, nil
}

// CanMove reports whether a move may be proposed for the current turn.
func (b *Board) CanMove() bool {
	return b.Started && !b.Over && b.Me.Active() && b.pending == nil
}

// Discovered reports whether c is one of this player's cells.
func (b *Board) Discovered(c core.Coord) bool {
	_, ok := b.Me.Visited[c]
	return ok
}

// Pending returns the target proposed for the current turn, if any.
func (b *Board) Pending() (core.Coord, bool) {
	if b.pending == nil {
		return core.Coord{}, false
	}
	return b.pending.target, true
}

// Prepare checks mv against the local discovered set and fills in the parent.
func (b *Board) Prepare(mv multiplayer.Move) (multiplayer.Move, error) {
	if mv.NoOp {
		return mv, nil
	}
	parent, err := b.Me.Validate(b.Adj, mv.Target, mv.Parent)
	if err != nil {
		return multiplayer.Move{}, err
	}
	mv.Parent = &parent
	return mv, nil
}

// Proposed records a move the server accepted for turn. A response that
// arrives after the turn already advanced is committed at once.
func (b *Board) Proposed(turn int, mv multiplayer.Move) {
	if mv.NoOp || mv.Parent == nil {
		b.pending = &pendingMove{turn: turn, target: core.Coord{X: -1, Y: -1}}
	} else {
		b.pending = &pendingMove{turn: turn, target: mv.Target, parent: *mv.Parent}
	}
	if turn < b.Turn {
		b.commit()
	}
}

// Frontier returns every undiscovered cell adjacent to a discovered one,
// in row-major order.
func (b *Board) Frontier() []core.Coord {
	var out []core.Coord
	for y := 0; y < b.Terrain.H; y++ {
		for x := 0; x < b.Terrain.W; x++ {
			c := core.C(x, y)
			if b.Discovered(c) {
				continue
			}
			for _, n := range b.Adj.Neighbors(c) {
				if b.Discovered(n) {
					out = append(out, c)
					break
				}
			}
		}
	}
	return out
}

// Apply folds a server notification into the board.
func (b *Board) Apply(evt multiplayer.SessionEvent) {
	switch e := evt.(type) {
	case multiplayer.StartGameEvent:
		b.GameID = e.GameID
		b.Players = e.Players
		b.Me.Place(e.Start, e.End)
		b.Terrain.Apply(e.Delta)
		b.Turn = 1
		b.Started = true
		if e.Start == e.End {
			b.Me.Finished = true
		}
	case multiplayer.StartNextTurnEvent:
		b.commit()
		b.Terrain.Apply(e.Delta)
		b.Turn = e.Turn
	case multiplayer.UpdateCostsEvent:
		b.commit()
		b.Terrain.Apply(e.Delta)
		b.Turn = e.Turn
		if !b.Me.Finished {
			// The server stopped asking for moves without a finish.
			b.Me.Forfeited = true
		}
	case multiplayer.IllegalMoveEvent:
		if b.pending != nil && b.pending.turn == e.Turn {
			b.pending = nil
		}
		b.LastError = e.Reason
	case multiplayer.WinEvent:
		b.finish(e.Standings, true)
	case multiplayer.GameOverEvent:
		b.finish(e.Standings, false)
	case multiplayer.ChatEvent:
		b.Chat = append(b.Chat, e)
		if len(b.Chat) > chatHistory {
			b.Chat = b.Chat[len(b.Chat)-chatHistory:]
		}
	}
}

func (b *Board) commit() {
	p := b.pending
	b.pending = nil
	if p == nil || !b.Adj.Contains(p.target) {
		return
	}
	b.Me.Record(p.target, p.parent)
	if p.target == b.Me.End {
		b.Me.Finished = true
		b.Me.FinishedTurn = p.turn
	}
}

func (b *Board) finish(standings []multiplayer.Standing, won bool) {
	b.commit()
	b.Over = true
	b.Won = won
	b.Standings = standings
	for _, st := range standings {
		if st.Name == b.Me.Name {
			b.Me.Score = st.Score
		}
	}
}
