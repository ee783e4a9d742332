package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sgomezmalagon/juego-bolas/internal/journal"
	"github.com/sgomezmalagon/juego-bolas/internal/sim"
)

// mockRecorder captures journal events for testing
type mockRecorder struct {
	mu     sync.Mutex
	events []string
	bodies []uint64
}

func (m *mockRecorder) Track(evtType string, bodyID uint64, data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evtType)
	m.bodies = append(m.bodies, bodyID)
}

func (m *mockRecorder) TrackJSON(evtType string, bodyID uint64, v any) {
	m.Track(evtType, bodyID, "")
}

func (m *mockRecorder) count(evtType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.events {
		if e == evtType {
			n++
		}
	}
	return n
}

func newTestGame(t *testing.T, opts Options) (*Game, *mockRecorder) {
	t.Helper()
	w, err := sim.NewWorld(sim.Config{Width: 1000, Height: 700, Seed: 1})
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	rec := &mockRecorder{}
	opts.Journal = rec
	opts.Logger = zerolog.Nop()
	g, err := New(w, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g, rec
}

func TestGameCommandsJournaled(t *testing.T) {
	g, rec := newTestGame(t, Options{})

	g.AddBall()
	g.AddBall()
	if _, ok := g.AddPlayer(); !ok {
		t.Fatal("expected player to be added")
	}
	if _, ok := g.AddPlayer(); ok {
		t.Error("second player should be refused")
	}
	if n := g.ClearBalls(); n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
	if err := g.Resize(1200, 800); err != nil {
		t.Fatalf("Resize: %v", err)
	}

	checks := map[string]int{
		journal.EvtBallAdded:     2,
		journal.EvtPlayerAdded:   1,
		journal.EvtPlayerRefused: 1,
		journal.EvtBallsCleared:  1,
		journal.EvtResize:        1,
	}
	for evt, want := range checks {
		if got := rec.count(evt); got != want {
			t.Errorf("%s: expected %d events, got %d", evt, want, got)
		}
	}
}

func TestGameResizeInvalid(t *testing.T) {
	g, rec := newTestGame(t, Options{})
	if err := g.Resize(-1, 10); !errors.Is(err, sim.ErrInvalidBounds) {
		t.Errorf("expected ErrInvalidBounds, got %v", err)
	}
	if rec.count(journal.EvtResize) != 0 {
		t.Error("a failed resize must not be journaled")
	}
}

func TestGameSetInputNeedsPlayer(t *testing.T) {
	g, _ := newTestGame(t, Options{})
	if g.SetInput(sim.PlayerInput{DirX: 1}) {
		t.Error("input without a player should be rejected")
	}
	g.AddPlayer()
	if !g.SetInput(sim.PlayerInput{DirX: 1}) {
		t.Error("input should reach the player")
	}
}

func TestGameStepRoomEvents(t *testing.T) {
	g, rec := newTestGame(t, Options{})
	g.AddPlayer()

	// Steer the player at the room center until it gets in
	entered := false
	for i := 0; i < 2000 && !entered; i++ {
		p := g.Snapshot().Players[0]
		g.SetInput(sim.PlayerInput{DirX: (500 - p.X) / 500, DirY: (350 - p.Y) / 500})
		entered = g.Step(16).Occupant != 0
	}
	if !entered {
		t.Fatal("player never reached the room")
	}
	if rec.count(journal.EvtRoomEnter) != 1 {
		t.Errorf("expected one room_enter event, got %d", rec.count(journal.EvtRoomEnter))
	}

	// Steer away until it leaves
	left := false
	for i := 0; i < 2000 && !left; i++ {
		g.SetInput(sim.PlayerInput{DirX: -1})
		left = g.Step(16).Occupant == 0
	}
	if !left {
		t.Fatal("player never left the room")
	}
	if rec.count(journal.EvtRoomLeave) != 1 {
		t.Errorf("expected one room_leave event, got %d", rec.count(journal.EvtRoomLeave))
	}
}

func TestGameStepStats(t *testing.T) {
	g, rec := newTestGame(t, Options{StatsEvery: 10})
	g.AddBall()
	for i := 0; i < 35; i++ {
		g.Step(16)
	}
	if n := rec.count(journal.EvtTickStats); n != 3 {
		t.Errorf("expected 3 stats rows, got %d", n)
	}
}

func TestGameStepIgnoresZeroDt(t *testing.T) {
	g, _ := newTestGame(t, Options{})
	if st := g.Step(0); st.Tick != 0 {
		t.Errorf("expected tick 0, got %d", st.Tick)
	}
}

func TestGameRunStopsOnCancel(t *testing.T) {
	g, _ := newTestGame(t, Options{TickRate: 200, SpawnInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for g.Count() < 2 || g.Snapshot().Tick < 5 {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("drivers made no progress: balls=%d tick=%d", g.Count(), g.Snapshot().Tick)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !g.Running() {
		t.Error("expected game to report running")
	}
	if err := g.Run(ctx); !errors.Is(err, ErrRunning) {
		t.Errorf("expected ErrRunning, got %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	tick := g.Snapshot().Tick
	balls := g.Count()
	time.Sleep(50 * time.Millisecond)
	if g.Snapshot().Tick != tick || g.Count() != balls {
		t.Error("world kept changing after Run returned")
	}
	if g.Running() {
		t.Error("expected game to report stopped")
	}
}

func TestGameRunWithoutSpawner(t *testing.T) {
	g, _ := newTestGame(t, Options{TickRate: 200})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	if err := g.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if g.Count() != 0 {
		t.Errorf("spawner should be disabled, got %d balls", g.Count())
	}
	if g.Snapshot().Tick == 0 {
		t.Error("expected the tick driver to run")
	}
}

func TestGameStepConcurrentWithRun(t *testing.T) {
	g, rec := newTestGame(t, Options{TickRate: 200})
	for range 30 {
		g.AddBall()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- g.Run(ctx) }()

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				g.Step(16)
			}
		}()
	}
	wg.Wait()
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned %v", err)
	}

	// Occupancy transitions are seen one at a time, so every leave
	// follows its own enter
	enters, leaves := rec.count(journal.EvtRoomEnter), rec.count(journal.EvtRoomLeave)
	if d := enters - leaves; d != 0 && d != 1 {
		t.Errorf("unbalanced room events: %d enters, %d leaves", enters, leaves)
	}
}
