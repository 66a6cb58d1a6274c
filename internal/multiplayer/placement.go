package multiplayer

import (
	"math/rand"

	"github.com/vovakirdan/pathrace/internal/core"
)

// Endpoints is a player's start and goal.
type Endpoints struct {
	Start core.Coord
	End   core.Coord
}

// AssignEndpoints picks start and end cells for n players on a w x h grid,
// in join order. Up to four players use the grid corners, each ending where
// its partner starts. Larger games get random starts with the end offset by
// half the grid in each axis (wrapping).
func AssignEndpoints(w, h, n int, rng *rand.Rand) []Endpoints {
	out := make([]Endpoints, 0, n)
	if n <= 4 {
		starts := []core.Coord{
			core.C(0, h-1),
			core.C(w-1, 0),
			core.C(w-1, h-1),
			core.C(0, 0),
		}
		ends := []core.Coord{starts[1], starts[0], starts[3], starts[2]}
		// Corners are handed out from the back of the list.
		for i := 0; i < n; i++ {
			j := len(starts) - 1 - i
			out = append(out, Endpoints{Start: starts[j], End: ends[j]})
		}
		return out
	}

	for i := 0; i < n; i++ {
		start := core.C(rng.Intn(w), rng.Intn(h))
		end := core.C((start.X+w/2)%w, (start.Y+h/2)%h)
		out = append(out, Endpoints{Start: start, End: end})
	}
	return out
}
