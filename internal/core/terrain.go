package core

import "fmt"

// CellCost pairs a cell with its new cost. A round's delta is a list of these.
type CellCost struct {
	At   Coord `json:"at"`
	Cost Cost  `json:"cost"`
}

// Terrain is the shared cost map. Cells are stored in row-major order:
// index = y*W + x. Terrain is not safe for concurrent mutation; the turn
// engine owns it.
type Terrain struct {
	W     int
	H     int
	Cells []Cost
}

// NewTerrain creates a w x h terrain with every cell set to fill.
func NewTerrain(w, h int, fill Cost) *Terrain {
	t := &Terrain{W: w, H: h, Cells: make([]Cost, w*h)}
	for i := range t.Cells {
		t.Cells[i] = fill
	}
	return t
}

// TerrainFromRows builds a terrain from rows of costs (rows[y][x]).
// Every row must have the same length.
func TerrainFromRows(rows [][]Cost) (*Terrain, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("core: terrain must have at least one cell")
	}
	w, h := len(rows[0]), len(rows)
	t := &Terrain{W: w, H: h, Cells: make([]Cost, 0, w*h)}
	for y, row := range rows {
		if len(row) != w {
			return nil, fmt.Errorf("core: terrain row %d has %d cells, expected %d", y, len(row), w)
		}
		t.Cells = append(t.Cells, row...)
	}
	return t, nil
}

func (t *Terrain) index(c Coord) int {
	return c.Y*t.W + c.X
}

// InBounds returns true if the coordinate is within the terrain.
func (t *Terrain) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < t.W && c.Y >= 0 && c.Y < t.H
}

// At returns the cost at c. Out-of-bounds reads return the zero cost.
func (t *Terrain) At(c Coord) Cost {
	if !t.InBounds(c) {
		return Cost{}
	}
	return t.Cells[t.index(c)]
}

// Blend averages the cost at c with the marker and stores the result.
// It returns the new cost. Out-of-bounds writes are ignored.
func (t *Terrain) Blend(c Coord, m Marker) Cost {
	if !t.InBounds(c) {
		return Cost{}
	}
	i := t.index(c)
	t.Cells[i] = t.Cells[i].Blend(m)
	return t.Cells[i]
}

// Clone returns a deep copy of the terrain.
func (t *Terrain) Clone() *Terrain {
	cells := make([]Cost, len(t.Cells))
	copy(cells, t.Cells)
	return &Terrain{W: t.W, H: t.H, Cells: cells}
}

// Rows returns the terrain as rows of costs, rows[y][x].
func (t *Terrain) Rows() [][]Cost {
	rows := make([][]Cost, t.H)
	for y := 0; y < t.H; y++ {
		rows[y] = append([]Cost(nil), t.Cells[y*t.W:(y+1)*t.W]...)
	}
	return rows
}

// Apply writes every entry of a delta verbatim. Clients use this to mirror
// the server's terrain; the server itself only mutates via Blend.
func (t *Terrain) Apply(delta []CellCost) {
	for _, d := range delta {
		if t.InBounds(d.At) {
			t.Cells[t.index(d.At)] = d.Cost
		}
	}
}
