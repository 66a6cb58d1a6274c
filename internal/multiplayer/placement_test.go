package multiplayer

import (
	"math/rand"
	"testing"

	"github.com/vovakirdan/pathrace/internal/core"
)

func TestAssignEndpointsCorners(t *testing.T) {
	got := AssignEndpoints(5, 4, 4, nil)
	want := []Endpoints{
		{Start: core.C(0, 0), End: core.C(4, 3)},
		{Start: core.C(4, 3), End: core.C(0, 0)},
		{Start: core.C(4, 0), End: core.C(0, 3)},
		{Start: core.C(0, 3), End: core.C(4, 0)},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("player %d = %+v, expected %+v", i, got[i], want[i])
		}
	}

	if two := AssignEndpoints(5, 4, 2, nil); len(two) != 2 || two[0] != want[0] || two[1] != want[1] {
		t.Errorf("AssignEndpoints(n=2) = %+v, expected the first two corners", two)
	}
}

func TestAssignEndpointsRandom(t *testing.T) {
	w, h := 10, 6
	a := AssignEndpoints(w, h, 7, rand.New(rand.NewSource(3)))
	b := AssignEndpoints(w, h, 7, rand.New(rand.NewSource(3)))

	if len(a) != 7 {
		t.Fatalf("AssignEndpoints() returned %d entries, expected 7", len(a))
	}
	for i, e := range a {
		if e != b[i] {
			t.Errorf("player %d not deterministic: %+v vs %+v", i, e, b[i])
		}
		if e.Start.X < 0 || e.Start.X >= w || e.Start.Y < 0 || e.Start.Y >= h {
			t.Errorf("player %d start %v off the grid", i, e.Start)
		}
		want := core.C((e.Start.X+w/2)%w, (e.Start.Y+h/2)%h)
		if e.End != want {
			t.Errorf("player %d end = %v, expected %v", i, e.End, want)
		}
	}
}
