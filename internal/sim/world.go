package sim

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
)

// ErrInvalidBounds is returned for world dimensions outside (0, MaxWorldSize]
var ErrInvalidBounds = errors.New("world bounds must be positive and at most 16384")

const (
	// MaxWorldSize bounds each world dimension in pixels
	MaxWorldSize = 16384

	// DefaultCollisionIterations is used when Config leaves it at zero
	DefaultCollisionIterations = 4
)

func validBounds(width, height int) bool {
	return width > 0 && height > 0 && width <= MaxWorldSize && height <= MaxWorldSize
}

// Config holds the construction parameters of a World
type Config struct {
	Width               int
	Height              int
	Seed                uint64
	// CollisionIterations caps the collision passes per tick. 1 is a single
	// pass over every pair; more passes stop early once nothing overlaps.
	// Zero means DefaultCollisionIterations.
	CollisionIterations int
}

// TickStats summarises one Tick for metrics and logs
type TickStats struct {
	Tick       uint64
	Collisions int
	Bodies     int
	Occupant   BodyID
}

// World owns every body, the room and the bounds. All mutation happens
// under mu, so a tick is atomic with respect to commands from other
// goroutines.
type World struct {
	mu         sync.RWMutex
	width      int
	height     int
	balls      []*Ball
	players    []*Player // zero or one
	room       *Room
	rng        *rand.Rand
	nextID     BodyID
	tick       uint64
	iterations int
	flat       []*Body // reused collision view
	grid       *SpatialGrid
}

// NewWorld creates an empty world with the room centered in the bounds
func NewWorld(cfg Config) (*World, error) {
	if !validBounds(cfg.Width, cfg.Height) {
		return nil, fmt.Errorf("new world %dx%d: %w", cfg.Width, cfg.Height, ErrInvalidBounds)
	}
	iters := cfg.CollisionIterations
	if iters <= 0 {
		iters = DefaultCollisionIterations
	}
	return &World{
		width:      cfg.Width,
		height:     cfg.Height,
		room:       centeredRoom(cfg.Width, cfg.Height),
		rng:        NewRand(cfg.Seed),
		iterations: iters,
		grid:       NewSpatialGrid(cfg.Width, cfg.Height),
	}, nil
}

// Room returns the exclusion zone. It carries its own lock.
func (w *World) Room() *Room {
	return w.room
}

// Bounds returns the current world size
func (w *World) Bounds() (int, int) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.width, w.height
}

// Resize changes the bounds and recenters the room
func (w *World) Resize(width, height int) error {
	if !validBounds(width, height) {
		return fmt.Errorf("resize %dx%d: %w", width, height, ErrInvalidBounds)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.width = width
	w.height = height
	w.grid.Resize(width, height)
	b := w.room.Bounds()
	w.room.MoveTo((width-b.Width)/2, (height-b.Height)/2)
	return nil
}

func (w *World) newID() BodyID {
	w.nextID++
	return w.nextID
}

// AddBall appends a freshly spawned ball and returns its id
func (w *World) AddBall() BodyID {
	w.mu.Lock()
	defer w.mu.Unlock()
	b := NewBall(w.newID(), w.width, w.height, w.rng)
	w.balls = append(w.balls, b)
	return b.ID
}

// AddPlayer creates the controllable body. Returns false if one exists.
func (w *World) AddPlayer() (BodyID, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.players) > 0 {
		return 0, false
	}
	p := NewPlayer(w.newID(), w.width, w.height, w.rng)
	p.Controlled = true
	p.Mode = ModeDirect
	w.players = append(w.players, p)
	return p.ID, true
}

// ClearBalls removes every autonomous ball and frees the room if one of
// them held it. Returns how many were removed.
func (w *World) ClearBalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.balls)
	for _, b := range w.balls {
		if b.InRoom {
			w.room.Release(b.ID)
		}
	}
	clear(w.balls)
	w.balls = w.balls[:0]
	return n
}

// SetPlayerInput forwards input to the player. Returns false if there is none.
func (w *World) SetPlayerInput(in PlayerInput) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.players) == 0 {
		return false
	}
	w.players[0].Apply(in)
	return true
}

// Count returns the number of autonomous balls
func (w *World) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.balls)
}

// PlayerCount returns 0 or 1
func (w *World) PlayerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.players)
}

// Tick advances the world by dt milliseconds: players first, then balls,
// then collision resolution over all of them.
func (w *World) Tick(dt float64) TickStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	if dt <= 0 {
		return w.statsLocked(0)
	}
	w.tick++
	w.integrateLocked(dt)
	n := w.collideLocked()
	return w.statsLocked(n)
}

// integrateLocked moves players first, then balls
func (w *World) integrateLocked(dt float64) {
	for _, p := range w.players {
		p.Update(dt, w.width, w.height, w.room, w.rng)
	}
	for _, b := range w.balls {
		b.Update(dt, w.width, w.height, w.room, w.rng)
	}
}

// collideLocked resolves overlaps between all bodies, balls first
func (w *World) collideLocked() int {
	w.flat = w.flat[:0]
	for _, b := range w.balls {
		w.flat = append(w.flat, &b.Body)
	}
	for _, p := range w.players {
		w.flat = append(w.flat, &p.Body)
	}
	return resolveCollisions(w.flat, w.iterations, w.grid)
}

func (w *World) statsLocked(collisions int) TickStats {
	return TickStats{
		Tick:       w.tick,
		Collisions: collisions,
		Bodies:     len(w.balls) + len(w.players),
		Occupant:   w.room.Occupant(),
	}
}

// Snapshot copies the render state of the world
func (w *World) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	s := Snapshot{
		Width:   w.width,
		Height:  w.height,
		Tick:    w.tick,
		Room:    w.room.ToState(),
		Balls:   make([]BallState, 0, len(w.balls)),
		Players: make([]PlayerState, 0, len(w.players)),
	}
	for _, b := range w.balls {
		s.Balls = append(s.Balls, b.ToState())
	}
	for _, p := range w.players {
		s.Players = append(s.Players, p.ToState())
	}
	return s
}
