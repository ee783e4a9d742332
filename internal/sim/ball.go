package sim

import "math/rand/v2"

// Ball is an autonomous body that drifts, bounces and fights for the room
type Ball struct {
	Body
}

// NewBall spawns a ball fully inside the bounds with random size, color,
// velocity and a small random acceleration.
func NewBall(id BodyID, width, height int, rng *rand.Rand) *Ball {
	r := rng.IntN(BallMaxRadius-BallMinRadius+1) + BallMinRadius
	b := &Ball{Body: Body{ID: id, Radius: r}}
	b.X = float64(rng.IntN(max(1, width-2*r)) + r)
	b.Y = float64(rng.IntN(max(1, height-2*r)) + r)
	b.VX = symmetric(rng) * (BallSpawnSpeedBase + float64(rng.IntN(BallSpawnSpeedRange))) / 1000
	b.VY = symmetric(rng) * (BallSpawnSpeedBase + float64(rng.IntN(BallSpawnSpeedRange))) / 1000
	b.AX = symmetric(rng) * BallSpawnAccel
	b.AY = symmetric(rng) * BallSpawnAccel
	b.Color = Color{R: uint8(rng.IntN(256)), G: uint8(rng.IntN(256)), B: uint8(rng.IntN(256))}
	b.Variant = rng.IntN(BallVariantRange)
	return b
}

// MaxSpeed returns the ball speed cap
func (b *Ball) MaxSpeed() float64 {
	return BallMaxSpeed
}

// Update advances the ball by dt milliseconds
func (b *Ball) Update(dt float64, width, height int, room *Room, rng *rand.Rand) {
	b.accelerate(dt)
	b.limitSpeed(BallMaxSpeed)
	b.move(dt)

	b.interactRoom(room, rng, BallMaxSpeed)

	if b.bounceWalls(width, height) {
		b.kick(rng, BallMaxSpeed)
	}
}

// ToState converts to a render snapshot
func (b *Ball) ToState() BallState {
	return BallState{
		ID:      b.ID,
		X:       b.X,
		Y:       b.Y,
		Radius:  b.Radius,
		Color:   b.Color.Hex(),
		Variant: b.Variant,
		InRoom:  b.InRoom,
	}
}
