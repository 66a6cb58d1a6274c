package multiplayer

import (
	"fmt"

	"github.com/vovakirdan/pathrace/internal/core"
)

// Parent records how a discovered cell was reached.
// The start cell has Root set and no parent.
type Parent struct {
	At   core.Coord
	Root bool
}

// PlayerSession is the game state of one player. After the game starts it is
// owned by the engine goroutine and must not be touched by transports.
type PlayerSession struct {
	Name   string
	Marker core.Marker
	Start  core.Coord
	End    core.Coord

	// Visited maps every legally reached cell to the cell it was reached from.
	Visited map[core.Coord]Parent

	Finished     bool
	FinishedTurn int
	Score        *int

	// Forfeited players take no further part: they left mid-game or hit the
	// round limit. Left is set only for disconnects.
	Forfeited bool
	Left      bool

	handle SessionHandle
}

// NewPlayerSession creates a player bound to a session handle.
func NewPlayerSession(name string, marker core.Marker, handle SessionHandle) *PlayerSession {
	return &PlayerSession{
		Name:    name,
		Marker:  marker,
		Visited: make(map[core.Coord]Parent),
		handle:  handle,
	}
}

// Place sets the start and end cells and resets discovery to the start cell.
func (p *PlayerSession) Place(start, end core.Coord) {
	p.Start = start
	p.End = end
	p.Visited = map[core.Coord]Parent{start: {Root: true}}
	p.Finished = false
	p.Score = nil
}

// Active reports whether the player still submits moves.
func (p *PlayerSession) Active() bool {
	return !p.Finished && !p.Forfeited
}

// Validate checks a non-no-op move and returns the parent it extends from.
// The target must be on the grid, not yet discovered, and adjacent to some
// discovered cell. A parent supplied by the client must itself satisfy the rule;
// otherwise the first discovered neighbour in adjacency order is used.
func (p *PlayerSession) Validate(adj core.Adjacency, target core.Coord, hint *core.Coord) (core.Coord, error) {
	if !adj.Contains(target) {
		return core.Coord{}, fmt.Errorf("%w: %v is off the grid", ErrIllegalMove, target)
	}
	if _, seen := p.Visited[target]; seen {
		return core.Coord{}, fmt.Errorf("%w: %v already discovered", ErrIllegalMove, target)
	}

	if hint != nil {
		if _, ok := p.Visited[*hint]; ok && adj.IsNeighbor(*hint, target) {
			return *hint, nil
		}
		return core.Coord{}, fmt.Errorf("%w: %v cannot be reached from %v", ErrIllegalMove, target, *hint)
	}

	for _, n := range adj.Neighbors(target) {
		if _, ok := p.Visited[n]; ok {
			return n, nil
		}
	}
	return core.Coord{}, fmt.Errorf("%w: %v is not adjacent to any discovered cell", ErrIllegalMove, target)
}

// Record stores a validated move.
func (p *PlayerSession) Record(target, parent core.Coord) {
	p.Visited[target] = Parent{At: parent}
}

// ReconstructPathCost walks parent links from End back to Start and sums the
// weight of every cell entered along the way (the start cell is free).
func (p *PlayerSession) ReconstructPathCost(terrain *core.Terrain) (int, error) {
	node := p.End
	parent, ok := p.Visited[node]
	if !ok {
		return 0, fmt.Errorf("%w: %s never reached %v", ErrPathNotFound, p.Name, p.End)
	}

	cost := 0
	for steps := 0; !parent.Root; steps++ {
		if steps > len(p.Visited) {
			return 0, fmt.Errorf("%w: %s has a cycle at %v", ErrPathNotFound, p.Name, node)
		}
		cost += terrain.At(node).Weight()
		node = parent.At
		parent, ok = p.Visited[node]
		if !ok {
			return 0, fmt.Errorf("%w: %s lost the chain at %v", ErrPathNotFound, p.Name, node)
		}
	}
	if node != p.Start {
		return 0, fmt.Errorf("%w: %s path roots at %v, not %v", ErrPathNotFound, p.Name, node, p.Start)
	}
	return cost, nil
}

// MarkFinished scores the player: path cost plus the turn they arrived on, so
// slower players lose ties on path cost.
func (p *PlayerSession) MarkFinished(terrain *core.Terrain, turn int) error {
	cost, err := p.ReconstructPathCost(terrain)
	if err != nil {
		return err
	}
	score := cost + turn
	p.Score = &score
	p.Finished = true
	p.FinishedTurn = turn
	return nil
}

// Forfeit removes the player from play without a score.
func (p *PlayerSession) Forfeit(left bool) {
	p.Forfeited = true
	p.Left = p.Left || left
}

// Standing returns the player's ranking entry.
func (p *PlayerSession) Standing() Standing {
	s := Standing{Name: p.Name, Forfeited: p.Forfeited && !p.Finished}
	if p.Finished && p.Score != nil {
		score := *p.Score
		s.Score = &score
		s.Turn = p.FinishedTurn
	}
	return s
}
