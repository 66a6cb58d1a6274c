package core

// Step vectors in the order neighbours are reported.
var (
	cardinalSteps = [...]Coord{{-1, 0}, {1, 0}, {0, 1}, {0, -1}}
	ringSteps     = [...]Coord{
		{-1, -1}, {-1, 0}, {-1, 1},
		{0, -1}, {0, 1},
		{1, -1}, {1, 0}, {1, 1},
	}
)

// Adjacency answers which cells can be reached from a cell in one move.
// It is immutable and safe for concurrent use.
type Adjacency struct {
	W         int
	H         int
	Diagonals bool
}

// NewAdjacency creates the adjacency rule for a width x height grid.
func NewAdjacency(w, h int, diagonals bool) Adjacency {
	return Adjacency{W: w, H: h, Diagonals: diagonals}
}

// Contains reports whether c lies inside [0,W) x [0,H).
func (a Adjacency) Contains(c Coord) bool {
	return c.X >= 0 && c.X < a.W && c.Y >= 0 && c.Y < a.H
}

func (a Adjacency) steps() []Coord {
	if a.Diagonals {
		return ringSteps[:]
	}
	return cardinalSteps[:]
}

// Neighbors returns the in-bounds cells adjacent to c, in a fixed order.
// The result never contains c itself.
func (a Adjacency) Neighbors(c Coord) []Coord {
	steps := a.steps()
	out := make([]Coord, 0, len(steps))
	for _, s := range steps {
		n := Coord{X: c.X + s.X, Y: c.Y + s.Y}
		if a.Contains(n) {
			out = append(out, n)
		}
	}
	return out
}

// IsNeighbor reports whether b is one of a's neighbours. Does not allocate.
func (a Adjacency) IsNeighbor(from, to Coord) bool {
	if !a.Contains(from) || !a.Contains(to) {
		return false
	}
	dx := Abs(from.X - to.X)
	dy := Abs(from.Y - to.Y)
	if dx > 1 || dy > 1 || dx+dy == 0 {
		return false
	}
	return a.Diagonals || dx+dy == 1
}
