package core

import "fmt"

// Coord is a cell position on the terrain grid.
// X increases to the right, Y increases downward.
type Coord struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// C is a convenience constructor for Coord.
func C(x, y int) Coord {
	return Coord{X: x, Y: y}
}

// String returns a string representation of the coordinate.
func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Add returns a new Coord offset by (dx, dy).
func (c Coord) Add(dx, dy int) Coord {
	return Coord{X: c.X + dx, Y: c.Y + dy}
}

// Chebyshev returns the king-move distance to another coordinate.
func (c Coord) Chebyshev(other Coord) int {
	return Max(Abs(c.X-other.X), Abs(c.Y-other.Y))
}

// Manhattan returns the Manhattan distance to another coordinate.
func (c Coord) Manhattan(other Coord) int {
	return Abs(c.X-other.X) + Abs(c.Y-other.Y)
}
