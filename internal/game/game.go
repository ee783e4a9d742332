package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sgomezmalagon/juego-bolas/internal/journal"
	"github.com/sgomezmalagon/juego-bolas/internal/logging"
	"github.com/sgomezmalagon/juego-bolas/internal/sim"
)

const (
	DefaultTickRate      = 60
	DefaultSpawnInterval = 2 * time.Second
	debugLogEvery        = 60 // ticks between dt debug lines
)

// ErrRunning is returned by Run when the drivers are already active
var ErrRunning = errors.New("game already running")

// Recorder receives journal events. *journal.Journal satisfies it.
type Recorder interface {
	Track(evtType string, bodyID uint64, data string)
	TrackJSON(evtType string, bodyID uint64, v any)
}

type nopRecorder struct{}

func (nopRecorder) Track(string, uint64, string)  {}
func (nopRecorder) TrackJSON(string, uint64, any) {}

// Options configures the drivers around a World
type Options struct {
	TickRate      int           // ticks per second
	SpawnInterval time.Duration // 0 disables the spawner
	StatsEvery    int           // ticks between journal stats rows, 0 disables
	Journal       Recorder
	Logger        zerolog.Logger
}

// Game owns a World and drives it: a fixed-rate tick loop measuring real
// elapsed time and a periodic ball spawner. Commands from front-ends go
// through Game so they are journaled and counted.
type Game struct {
	world   *sim.World
	opts    Options
	log     zerolog.Logger
	journal Recorder
	metrics *metrics

	running atomic.Bool

	stepMu       sync.Mutex // serializes Step
	lastOccupant sim.BodyID
}

// New wraps world. The world must not be driven by anything else.
func New(world *sim.World, opts Options) (*Game, error) {
	if opts.TickRate <= 0 {
		opts.TickRate = DefaultTickRate
	}
	if opts.SpawnInterval < 0 {
		opts.SpawnInterval = 0
	}
	g := &Game{
		world:   world,
		opts:    opts,
		log:     logging.Component(opts.Logger, "game"),
		journal: opts.Journal,
	}
	if g.journal == nil {
		g.journal = nopRecorder{}
	}
	m, err := newMetrics(func() (int, int) {
		return world.Count(), world.PlayerCount()
	})
	if err != nil {
		return nil, fmt.Errorf("game metrics: %w", err)
	}
	g.metrics = m
	return g, nil
}

// World exposes the simulation for read-only use (snapshots, room state)
func (g *Game) World() *sim.World {
	return g.world
}

// Running reports whether Run is active
func (g *Game) Running() bool {
	return g.running.Load()
}

// Run drives the world until ctx is cancelled. Both drivers stop before
// Run returns.
func (g *Game) Run(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer g.running.Store(false)

	w, h := g.world.Bounds()
	g.log.Info().
		Int("tick_rate", g.opts.TickRate).
		Dur("spawn_interval", g.opts.SpawnInterval).
		Int("width", w).
		Int("height", h).
		Msg("simulation started")

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		g.tickLoop(ctx)
		return nil
	})
	if g.opts.SpawnInterval > 0 {
		eg.Go(func() error {
			g.spawnLoop(ctx)
			return nil
		})
	}
	err := eg.Wait()
	g.log.Info().Int("balls", g.world.Count()).Msg("simulation stopped")
	return err
}

// Close releases the metric registration
func (g *Game) Close() error {
	return g.metrics.close()
}

func (g *Game) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(g.opts.TickRate))
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := float64(now.Sub(last)) / float64(time.Millisecond)
			last = now
			g.Step(max(dt, sim.MinTickMs))
		}
	}
}

func (g *Game) spawnLoop(ctx context.Context) {
	ticker := time.NewTicker(g.opts.SpawnInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id := g.world.AddBall()
			g.metrics.command("spawn")
			g.journal.Track(journal.EvtBallAdded, uint64(id), `{"source":"spawner"}`)
		}
	}
}

// Step advances the world by dt milliseconds and does the per-tick
// bookkeeping. The tick driver calls it; tests call it directly. Safe to
// call while Run is active.
func (g *Game) Step(dt float64) sim.TickStats {
	g.stepMu.Lock()
	defer g.stepMu.Unlock()

	st := g.world.Tick(dt)
	if dt <= 0 {
		return st
	}
	g.metrics.tick(st.Collisions)

	if st.Occupant != g.lastOccupant {
		if g.lastOccupant != 0 {
			g.journal.Track(journal.EvtRoomLeave, uint64(g.lastOccupant), "")
		}
		if st.Occupant != 0 {
			g.journal.Track(journal.EvtRoomEnter, uint64(st.Occupant), "")
		}
		g.lastOccupant = st.Occupant
	}

	if g.opts.StatsEvery > 0 && st.Tick%uint64(g.opts.StatsEvery) == 0 {
		g.journal.TrackJSON(journal.EvtTickStats, 0, map[string]any{
			"tick":       st.Tick,
			"bodies":     st.Bodies,
			"collisions": st.Collisions,
			"dt":         dt,
		})
	}

	if st.Tick%debugLogEvery == 0 {
		g.log.Debug().
			Uint64("tick", st.Tick).
			Float64("dt_ms", dt).
			Int("bodies", st.Bodies).
			Int("collisions", st.Collisions).
			Msg("tick")
	}
	return st
}

// AddBall spawns one autonomous ball
func (g *Game) AddBall() sim.BodyID {
	id := g.world.AddBall()
	g.metrics.command("add_ball")
	g.journal.Track(journal.EvtBallAdded, uint64(id), "")
	return id
}

// AddPlayer creates the controllable body. false means one already exists.
func (g *Game) AddPlayer() (sim.BodyID, bool) {
	id, ok := g.world.AddPlayer()
	if !ok {
		g.journal.Track(journal.EvtPlayerRefused, 0, "")
		g.log.Info().Msg("player already exists")
		return 0, false
	}
	g.metrics.command("add_player")
	g.journal.Track(journal.EvtPlayerAdded, uint64(id), "")
	g.log.Info().Uint64("id", uint64(id)).Msg("player added")
	return id, true
}

// ClearBalls removes every autonomous ball
func (g *Game) ClearBalls() int {
	n := g.world.ClearBalls()
	g.metrics.command("clear")
	g.journal.TrackJSON(journal.EvtBallsCleared, 0, map[string]int{"removed": n})
	g.log.Info().Int("removed", n).Msg("balls cleared")
	return n
}

// Resize changes the world bounds
func (g *Game) Resize(width, height int) error {
	if err := g.world.Resize(width, height); err != nil {
		return err
	}
	g.metrics.command("resize")
	g.journal.TrackJSON(journal.EvtResize, 0, map[string]int{"w": width, "h": height})
	g.log.Debug().Int("width", width).Int("height", height).Msg("resized")
	return nil
}

// SetInput forwards control input. false means there is no player yet.
func (g *Game) SetInput(in sim.PlayerInput) bool {
	return g.world.SetPlayerInput(in)
}

// Snapshot returns the current render state
func (g *Game) Snapshot() sim.Snapshot {
	return g.world.Snapshot()
}

// Count returns the number of autonomous balls
func (g *Game) Count() int {
	return g.world.Count()
}
