package sim

import (
	"slices"
	"testing"
)

func TestSpatialGridInsertAndQuery(t *testing.T) {
	grid := NewSpatialGrid(1000, 700)
	grid.Insert(100, 100, 7)

	if res := grid.QueryBuf(100, 100, 50, nil); !slices.Contains(res, 7) {
		t.Error("expected to find body at (100,100)")
	}
	if res := grid.QueryBuf(900, 600, 50, nil); slices.Contains(res, 7) {
		t.Error("should not find body at (900,600)")
	}
}

func TestSpatialGridClear(t *testing.T) {
	grid := NewSpatialGrid(1000, 700)
	grid.Insert(500, 500, 0)
	grid.Clear()

	if res := grid.QueryBuf(500, 500, 100, nil); len(res) != 0 {
		t.Errorf("expected 0 results after clear, got %d", len(res))
	}
}

func TestSpatialGridBoundaryClamp(t *testing.T) {
	grid := NewSpatialGrid(1000, 700)

	// Negative coords should clamp to the first cell
	grid.Insert(-10, -10, 1)
	if res := grid.QueryBuf(0, 0, 5, nil); !slices.Contains(res, 1) {
		t.Error("expected clamped body near the origin")
	}

	// Beyond the bounds clamps to the last cell
	grid.Insert(5000, 5000, 2)
	if res := grid.QueryBuf(999, 699, 5, nil); !slices.Contains(res, 2) {
		t.Error("expected clamped body near the far corner")
	}
}

func TestSpatialGridResize(t *testing.T) {
	grid := NewSpatialGrid(100, 100)
	grid.Resize(1200, 800)
	grid.Insert(1150, 750, 3)
	if res := grid.QueryBuf(1150, 750, 10, nil); !slices.Contains(res, 3) {
		t.Error("expected body in the resized grid")
	}
	if res := grid.QueryBuf(100, 100, 10, nil); slices.Contains(res, 3) {
		t.Error("far body should not be returned")
	}
}

// lattice lays out non-touching bodies and then overlaps three pairs
func lattice() []*Body {
	var bodies []*Body
	for k := 0; k < 10; k++ {
		for i := 0; i < 20; i++ {
			bodies = append(bodies, &Body{
				ID:     BodyID(len(bodies) + 1),
				X:      25 + 50*float64(i),
				Y:      25 + 50*float64(k),
				VX:     0.1,
				Radius: 10,
			})
		}
	}
	for _, i := range []int{4, 57, 123} {
		bodies[i+1].X = bodies[i].X + 15
		bodies[i+1].VX = -0.1
	}
	return bodies
}

func cloneBodies(in []*Body) []*Body {
	out := make([]*Body, len(in))
	for i, b := range in {
		c := *b
		out[i] = &c
	}
	return out
}

func TestGridPassMatchesAllPairs(t *testing.T) {
	base := lattice()
	if len(base) < broadphaseMin {
		t.Fatalf("lattice too small for the grid path: %d", len(base))
	}

	brute := cloneBodies(base)
	gridded := cloneBodies(base)

	nb := resolveCollisions(brute, 4, nil)
	ng := resolveCollisions(gridded, 4, NewSpatialGrid(1000, 500))
	if nb != 3 || ng != 3 {
		t.Fatalf("expected 3 overlaps on both paths, got all-pairs=%d grid=%d", nb, ng)
	}
	for i := range brute {
		if *brute[i] != *gridded[i] {
			t.Fatalf("body %d differs: all-pairs=%+v grid=%+v", i, *brute[i], *gridded[i])
		}
	}
}

func TestSmallSetsSkipGrid(t *testing.T) {
	// the grid is never consulted below broadphaseMin, so a grid sized
	// for a different world cannot change the outcome
	a := &Body{X: 100, Y: 100, Radius: 10, VX: 0.1}
	b := &Body{X: 115, Y: 100, Radius: 10, VX: -0.1}
	if n := resolveCollisions([]*Body{a, b}, 1, NewSpatialGrid(1, 1)); n != 1 {
		t.Errorf("expected 1 overlap, got %d", n)
	}
	if a.VX >= 0 || b.VX <= 0 {
		t.Errorf("expected velocities exchanged, got %v %v", a.VX, b.VX)
	}
}

// packed scatters n bodies over a small square so that most of them
// overlap several neighbours
func packed(seed uint64, n int, size float64) []*Body {
	rng := NewRand(seed)
	bodies := make([]*Body, n)
	for i := range bodies {
		bodies[i] = &Body{
			ID:     BodyID(i + 1),
			X:      rng.Float64() * size,
			Y:      rng.Float64() * size,
			VX:     rng.Float64() - 0.5,
			VY:     rng.Float64() - 0.5,
			Radius: BallMinRadius + rng.IntN(BallMaxRadius-BallMinRadius+1),
		}
	}
	return bodies
}

func TestGridPassMatchesAllPairsWhenPacked(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		base := packed(seed, 150, 300)
		brute := cloneBodies(base)
		gridded := cloneBodies(base)

		nb := resolveCollisions(brute, 4, nil)
		ng := resolveCollisions(gridded, 4, NewSpatialGrid(300, 300))
		if nb != ng {
			t.Fatalf("seed %d: all-pairs resolved %d overlaps, grid %d", seed, nb, ng)
		}
		for i := range brute {
			if *brute[i] != *gridded[i] {
				t.Fatalf("seed %d: body %d differs: all-pairs=%+v grid=%+v", seed, i, *brute[i], *gridded[i])
			}
		}
	}
}

func TestWorldGridMatchesAllPairs(t *testing.T) {
	newPacked := func() *World {
		w, err := NewWorld(Config{Width: 1000, Height: 700, Seed: 11})
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 150; i++ {
			w.AddBall()
		}
		if err := w.Resize(400, 400); err != nil {
			t.Fatal(err)
		}
		return w
	}
	gridded := newPacked()
	brute := newPacked()
	brute.grid = nil

	for tick := 1; tick <= 50; tick++ {
		gridded.Tick(16)
		brute.Tick(16)
		gs, bs := gridded.Snapshot(), brute.Snapshot()
		for i := range gs.Balls {
			if gs.Balls[i] != bs.Balls[i] {
				t.Fatalf("tick %d: ball %d differs: grid=%+v all-pairs=%+v", tick, i, gs.Balls[i], bs.Balls[i])
			}
		}
	}
}
