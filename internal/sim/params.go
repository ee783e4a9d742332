package sim

// Units: positions in pixels, time in milliseconds, velocities in px/ms and
// accelerations in px/ms².
const (
	BallMinRadius = 10
	BallMaxRadius = 30
	BallMaxSpeed  = 0.8 // 800 px/s

	BallSpawnSpeedBase  = 50.0  // px/s
	BallSpawnSpeedRange = 100   // px/s, added on top of the base
	BallSpawnAccel      = 0.0001
	BallVariantRange    = 10000 // large so variant % textureCount mixes well

	BounceJitter = 0.02 // max random velocity kick per axis after a bounce

	PlayerRadius         = 12
	PlayerMaxSpeed       = 0.9 // rotational mode
	PlayerDirectMaxSpeed = 0.4
	PlayerFriction       = 0.0009
	PlayerAngImpulse     = 0.0025
	PlayerAngAccel       = 0.0006
	PlayerAngDamp        = 0.0012
	PlayerAccel          = 0.0012
	PlayerBackAccel      = 0.0020
	PlayerDirectAccel    = 0.0010
	PlayerTurboMul       = 2.2

	// velocity components below this snap to zero so an idle player stops
	velocitySnap = 1e-5

	RoomWidth  = 300
	RoomHeight = 300

	// MinTickMs is the smallest dt the drivers feed into Tick.
	MinTickMs = 1.0

	coincidentDist2 = 1e-4
)

// Color is the fallback render color of a body.
type Color struct {
	R, G, B uint8
}

// PlayerColor is the fixed color of the controllable body.
var PlayerColor = Color{R: 0, G: 90, B: 200}
