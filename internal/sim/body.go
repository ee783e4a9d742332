package sim

import (
	"math"
	"math/rand/v2"
)

// BodyID identifies a body for the lifetime of its world. Zero means none.
type BodyID uint64

// Body is the kinematic state shared by balls and the player
type Body struct {
	ID      BodyID
	X, Y    float64 // px
	VX, VY  float64 // px/ms
	AX, AY  float64 // px/ms²
	Radius  int
	Color   Color
	Variant int // texture selector, stable for the body's lifetime
	InRoom  bool
}

// Speed returns the velocity magnitude
func (b *Body) Speed() float64 {
	return math.Sqrt(b.VX*b.VX + b.VY*b.VY)
}

// limitSpeed rescales the velocity so its magnitude is at most maxSpeed
func (b *Body) limitSpeed(maxSpeed float64) {
	speed := b.Speed()
	if speed > maxSpeed {
		scale := maxSpeed / speed
		b.VX *= scale
		b.VY *= scale
	}
}

func (b *Body) move(dt float64) {
	b.X += b.VX * dt
	b.Y += b.VY * dt
}

func (b *Body) accelerate(dt float64) {
	b.VX += b.AX * dt
	b.VY += b.AY * dt
}

// bounceWalls keeps the disk inside the bounds, mirroring velocity and
// acceleration on the axis that crossed. Returns true if any wall was hit.
func (b *Body) bounceWalls(width, height int) bool {
	r := float64(b.Radius)
	bounced := false
	if b.X-r < 0 {
		b.X = r
		b.VX, b.AX = -b.VX, -b.AX
		bounced = true
	} else if b.X+r > float64(width) {
		b.X = float64(width) - r
		b.VX, b.AX = -b.VX, -b.AX
		bounced = true
	}
	if b.Y-r < 0 {
		b.Y = r
		b.VY, b.AY = -b.VY, -b.AY
		bounced = true
	} else if b.Y+r > float64(height) {
		b.Y = float64(height) - r
		b.VY, b.AY = -b.VY, -b.AY
		bounced = true
	}
	return bounced
}

func (b *Body) kick(rng *rand.Rand, maxSpeed float64) {
	b.VX += jitter(rng)
	b.VY += jitter(rng)
	b.limitSpeed(maxSpeed)
}

// interactRoom runs the enter/leave protocol by comparing the previous
// inside flag with where the body is now.
func (b *Body) interactRoom(room *Room, rng *rand.Rand, maxSpeed float64) {
	if room == nil {
		return
	}
	nowInside := room.Contains(b.X, b.Y)

	switch {
	case !b.InRoom && nowInside:
		if room.TryEnter(b.ID) {
			b.InRoom = true
		} else {
			b.bounceRoom(room, rng, maxSpeed)
		}
	case b.InRoom && !nowInside:
		room.TryLeave(b.ID)
		b.InRoom = false
	case !b.InRoom && room.Occupied() && room.Intersects(b.X, b.Y, b.Radius):
		b.bounceRoom(room, rng, maxSpeed)
	}
}

// bounceRoom reflects the body off the room wall closest to its center and
// parks it one pixel outside that wall.
func (b *Body) bounceRoom(room *Room, rng *rand.Rand, maxSpeed float64) {
	rect := room.Bounds()
	cx, cy := roundPx(b.X), roundPx(b.Y)
	r := b.Radius

	left := absInt(cx - rect.X)
	right := absInt(cx - (rect.X + rect.Width))
	top := absInt(cy - rect.Y)
	bottom := absInt(cy - (rect.Y + rect.Height))
	nearest := min(left, right, top, bottom)

	if nearest == left || nearest == right {
		b.VX, b.AX = -b.VX, -b.AX
		if nearest == left {
			b.X = float64(rect.X - r - 1)
		} else {
			b.X = float64(rect.X + rect.Width + r + 1)
		}
	} else {
		b.VY, b.AY = -b.VY, -b.AY
		if nearest == top {
			b.Y = float64(rect.Y - r - 1)
		} else {
			b.Y = float64(rect.Y + rect.Height + r + 1)
		}
	}
	b.kick(rng, maxSpeed)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
