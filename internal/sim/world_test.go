package sim

import (
	"errors"
	"sync"
	"testing"
)

func newTestWorld(t *testing.T, w, h int) *World {
	t.Helper()
	world, err := NewWorld(Config{Width: w, Height: h, Seed: 1})
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	return world
}

func TestNewWorldInvalidBounds(t *testing.T) {
	for _, c := range []Config{
		{Width: 0, Height: 100},
		{Width: 100, Height: -1},
		{Width: MaxWorldSize + 1, Height: 100},
		{Width: 1<<31 - 1, Height: 1<<31 - 1},
	} {
		if _, err := NewWorld(c); !errors.Is(err, ErrInvalidBounds) {
			t.Errorf("NewWorld(%dx%d): expected ErrInvalidBounds, got %v", c.Width, c.Height, err)
		}
	}
}

func TestNewWorldRoomCentered(t *testing.T) {
	w := newTestWorld(t, 1000, 700)
	b := w.Room().Bounds()
	if b != (Rect{X: 350, Y: 200, Width: 300, Height: 300}) {
		t.Errorf("unexpected room bounds %+v", b)
	}
}

func TestAddBall(t *testing.T) {
	w := newTestWorld(t, 1000, 700)
	id1 := w.AddBall()
	id2 := w.AddBall()
	if id1 == 0 || id1 == id2 {
		t.Errorf("expected distinct non-zero ids, got %d and %d", id1, id2)
	}
	if w.Count() != 2 {
		t.Errorf("expected 2 balls, got %d", w.Count())
	}
}

func TestAddPlayerOnlyOnce(t *testing.T) {
	w := newTestWorld(t, 1000, 700)
	id, ok := w.AddPlayer()
	if !ok || id == 0 {
		t.Fatal("first player should be added")
	}
	if _, ok := w.AddPlayer(); ok {
		t.Error("second player should be refused")
	}
	if w.PlayerCount() != 1 {
		t.Errorf("expected 1 player, got %d", w.PlayerCount())
	}
	s := w.Snapshot()
	if len(s.Players) != 1 || !s.Players[0].Controlled || s.Players[0].Mode != "direct" {
		t.Errorf("unexpected player state %+v", s.Players)
	}
}

func TestSetPlayerInputWithoutPlayer(t *testing.T) {
	w := newTestWorld(t, 1000, 700)
	if w.SetPlayerInput(PlayerInput{DirX: 1}) {
		t.Error("input without a player should be rejected")
	}
	w.AddPlayer()
	if !w.SetPlayerInput(PlayerInput{Mode: ModeShip}) {
		t.Error("input should reach the player")
	}
	if m := w.Snapshot().Players[0].Mode; m != "ship" {
		t.Errorf("expected ship mode, got %s", m)
	}
}

func TestClearBalls(t *testing.T) {
	w := newTestWorld(t, 1000, 700)
	for i := 0; i < 5; i++ {
		w.AddBall()
	}
	w.AddPlayer()
	if n := w.ClearBalls(); n != 5 {
		t.Errorf("expected 5 removed, got %d", n)
	}
	if w.Count() != 0 {
		t.Errorf("expected no balls, got %d", w.Count())
	}
	if w.PlayerCount() != 1 {
		t.Error("clear must keep the player")
	}
}

func TestClearBallsReleasesRoom(t *testing.T) {
	w := newTestWorld(t, 1000, 700)
	id := w.AddBall()

	// Park the ball in the middle of the room
	w.mu.Lock()
	b := w.balls[0]
	b.X, b.Y = 500, 350
	b.VX, b.VY, b.AX, b.AY = 0, 0, 0, 0
	w.mu.Unlock()

	w.Tick(1)
	if w.Room().Occupant() != id {
		t.Fatalf("expected ball %d in the room, got %d", id, w.Room().Occupant())
	}
	w.ClearBalls()
	if w.Room().Occupied() {
		t.Error("room should be free after its occupant is cleared")
	}
}

func TestResizeRecentersRoom(t *testing.T) {
	w := newTestWorld(t, 1000, 700)
	if err := w.Resize(1200, 800); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	b := w.Room().Bounds()
	if b.Width != 300 || b.Height != 300 {
		t.Errorf("room size changed: %+v", b)
	}
	if b.X+b.Width/2 != 600 || b.Y+b.Height/2 != 400 {
		t.Errorf("room not centered: %+v", b)
	}
	if width, height := w.Bounds(); width != 1200 || height != 800 {
		t.Errorf("expected 1200x800, got %dx%d", width, height)
	}
	if err := w.Resize(0, 800); !errors.Is(err, ErrInvalidBounds) {
		t.Errorf("expected ErrInvalidBounds, got %v", err)
	}
}

func TestResizeRejectsOversizedBounds(t *testing.T) {
	w := newTestWorld(t, 1000, 700)
	w.AddBall()
	room := w.Room().Bounds()

	for _, size := range [][2]int{{1<<31 - 1, 1<<31 - 1}, {MaxWorldSize + 1, 800}, {800, MaxWorldSize + 1}} {
		if err := w.Resize(size[0], size[1]); !errors.Is(err, ErrInvalidBounds) {
			t.Errorf("Resize(%dx%d): expected ErrInvalidBounds, got %v", size[0], size[1], err)
		}
	}
	if width, height := w.Bounds(); width != 1000 || height != 700 {
		t.Errorf("rejected resize changed bounds to %dx%d", width, height)
	}
	if w.Room().Bounds() != room {
		t.Errorf("rejected resize moved the room to %+v", w.Room().Bounds())
	}
	w.Tick(16)

	if err := w.Resize(MaxWorldSize, MaxWorldSize); err != nil {
		t.Fatalf("largest allowed size rejected: %v", err)
	}
	w.Tick(16)
}

func TestTickIgnoresNonPositiveDt(t *testing.T) {
	w := newTestWorld(t, 1000, 700)
	w.AddBall()
	before := w.Snapshot()
	st := w.Tick(0)
	if st.Tick != 0 {
		t.Errorf("tick counter advanced on dt=0: %d", st.Tick)
	}
	if w.Snapshot().Balls[0] != before.Balls[0] {
		t.Error("ball moved on dt=0")
	}
}

func TestTickRoomExclusion(t *testing.T) {
	w := newTestWorld(t, 1000, 700)
	for i := 0; i < 40; i++ {
		w.AddBall()
	}
	w.AddPlayer()
	w.SetPlayerInput(PlayerInput{DirX: 1, DirY: 0.3})

	for i := 0; i < 2000; i++ {
		st := w.Tick(16)
		if st.Bodies != 41 {
			t.Fatalf("expected 41 bodies, got %d", st.Bodies)
		}
		inside := 0
		s := w.Snapshot()
		for _, b := range s.Balls {
			if b.InRoom {
				inside++
			}
		}
		for _, p := range s.Players {
			if p.InRoom {
				inside++
			}
		}
		if inside > 1 {
			t.Fatalf("tick %d: %d bodies flagged inside the room", i, inside)
		}
		if (inside == 1) != s.Room.Occupied {
			t.Fatalf("tick %d: inside=%d but occupied=%v", i, inside, s.Room.Occupied)
		}
	}
}

func TestTickBodiesStayNearBounds(t *testing.T) {
	w := newTestWorld(t, 800, 600)
	for i := 0; i < 30; i++ {
		w.AddBall()
	}
	for i := 0; i < 1000; i++ {
		w.Tick(16)
	}
	for _, b := range w.Snapshot().Balls {
		// Collision separation may push a body past a wall until its next update
		slack := float64(BallMaxRadius)
		if b.X < -slack || b.X > 800+slack || b.Y < -slack || b.Y > 600+slack {
			t.Errorf("ball %d escaped to (%f,%f)", b.ID, b.X, b.Y)
		}
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	w := newTestWorld(t, 1000, 700)
	w.AddBall()
	s := w.Snapshot()
	s.Balls[0].X = -999
	if w.Snapshot().Balls[0].X == -999 {
		t.Error("snapshot shares memory with the world")
	}
}

func TestWorldConcurrentCommands(t *testing.T) {
	w := newTestWorld(t, 1000, 700)
	var wg sync.WaitGroup

	wg.Add(4)
	go func() {
		defer wg.Done()
		for i := 0; i < 300; i++ {
			w.Tick(16)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			w.AddBall()
			if i%25 == 0 {
				w.ClearBalls()
			}
		}
	}()
	go func() {
		defer wg.Done()
		w.AddPlayer()
		for i := 0; i < 100; i++ {
			w.SetPlayerInput(PlayerInput{DirX: float64(i%3 - 1), Turbo: i%2 == 0})
			_ = w.Snapshot()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			_ = w.Resize(1000+i, 700+i)
		}
	}()
	wg.Wait()

	if w.PlayerCount() != 1 {
		t.Errorf("expected 1 player, got %d", w.PlayerCount())
	}
}

// worstOverlap returns the deepest interpenetration between any two bodies
func worstOverlap(w *World) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	var bodies []*Body
	for _, b := range w.balls {
		bodies = append(bodies, &b.Body)
	}
	for _, p := range w.players {
		bodies = append(bodies, &p.Body)
	}
	worst := 0.0
	for i := range bodies {
		for j := i + 1; j < len(bodies); j++ {
			a, b := bodies[i], bodies[j]
			d := float64(a.Radius+b.Radius) - Distance(a.X, a.Y, b.X, b.Y)
			worst = max(worst, d)
		}
	}
	return worst
}

// Residual overlap after a tick stays under 1px with the default
// iterations, across seeds and with a player steering through the crowd.
// A single pass leaves several px in chains of three or more bodies.
func TestTickNoPersistentOverlap(t *testing.T) {
	const tolerance = 1.0 // px
	for seed := uint64(1); seed <= 10; seed++ {
		w, err := NewWorld(Config{Width: 1000, Height: 700, Seed: seed})
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 40; i++ {
			w.AddBall()
		}
		w.AddPlayer()
		for tick := 0; tick < 400; tick++ {
			w.SetPlayerInput(PlayerInput{DirX: 1, DirY: float64(tick%3 - 1), Turbo: tick%100 < 50})
			w.Tick(16)
			if tick < 5 {
				continue // spawn positions may start deep in each other
			}
			if o := worstOverlap(w); o > tolerance {
				t.Fatalf("seed %d tick %d: overlap %.3fpx exceeds %.1fpx", seed, tick, o, tolerance)
			}
		}
	}
}

// Every body is within its type's cap after each integration step, even
// when the previous collision pass pushed it above.
func TestTickIntegrationRespectsSpeedCaps(t *testing.T) {
	const eps = 1e-9
	for seed := uint64(1); seed <= 10; seed++ {
		w, err := NewWorld(Config{Width: 1000, Height: 700, Seed: seed})
		if err != nil {
			t.Fatal(err)
		}
		for i := 0; i < 40; i++ {
			w.AddBall()
		}
		w.AddPlayer()
		for tick := 0; tick < 300; tick++ {
			mode := ModeDirect
			if tick%120 >= 60 {
				mode = ModeShip
			}
			w.SetPlayerInput(PlayerInput{
				Mode:    mode,
				DirX:    1,
				DirY:    -1,
				Rotate:  1,
				Forward: true,
				Turbo:   tick%40 < 20,
			})

			w.mu.Lock()
			w.integrateLocked(16)
			for _, b := range w.balls {
				if s := b.Speed(); s > b.MaxSpeed()+eps {
					w.mu.Unlock()
					t.Fatalf("seed %d tick %d: ball %d speed %v above %v", seed, tick, b.ID, s, b.MaxSpeed())
				}
			}
			for _, p := range w.players {
				if s := p.Speed(); s > p.MaxSpeed()+eps {
					w.mu.Unlock()
					t.Fatalf("seed %d tick %d: player speed %v above %v", seed, tick, s, p.MaxSpeed())
				}
			}
			w.collideLocked()
			w.mu.Unlock()
		}
	}
}

func TestSingleCollisionPass(t *testing.T) {
	w, err := NewWorld(Config{Width: 400, Height: 300, Seed: 5, CollisionIterations: 1})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 40; i++ {
		w.AddBall()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for tick := 0; tick < 20; tick++ {
		w.integrateLocked(16)
		var want []*Body
		for _, b := range w.balls {
			want = append(want, &b.Body)
		}
		want = cloneBodies(want)
		nw := allPairsPass(want)

		if n := w.collideLocked(); n != nw {
			t.Fatalf("tick %d: world resolved %d overlaps, one pass %d", tick, n, nw)
		}
		for i, b := range w.balls {
			if b.Body != *want[i] {
				t.Fatalf("tick %d: ball %d ran more than one pass", tick, i)
			}
		}
	}
}
