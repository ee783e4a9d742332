package sim

import (
	"math"
	"math/rand/v2"
)

// PlayerMaxAngVel bounds the turn rate while rotation is held (rad/ms)
const PlayerMaxAngVel = 0.008

// ControlMode selects how player input turns into thrust
type ControlMode int

const (
	ModeDirect ControlMode = 0 // input vector is the thrust direction
	ModeShip   ControlMode = 1 // thrust along a turning heading
)

func (m ControlMode) String() string {
	if m == ModeShip {
		return "ship"
	}
	return "direct"
}

// PlayerInput is what an input collector pushes between ticks
type PlayerInput struct {
	Mode     ControlMode `json:"mode"`
	DirX     float64     `json:"dx"`
	DirY     float64     `json:"dy"`
	Turbo    bool        `json:"turbo"`
	Rotate   int         `json:"rot"`
	Forward  bool        `json:"fwd"`
	Backward bool        `json:"back"`
}

// Player is the single controllable body
type Player struct {
	Body
	Angle      float64 // radians, (-PI, PI]
	AngularVel float64 // rad/ms
	Rotate     int     // -1, 0, 1
	Forward    bool
	Backward   bool
	Turbo      bool
	Mode       ControlMode
	DirX, DirY float64
	Controlled bool

	lastRotate int
}

// NewPlayer spawns the player at a random on-screen position. It keeps the
// random drift a fresh ball gets; friction bleeds it off.
func NewPlayer(id BodyID, width, height int, rng *rand.Rand) *Player {
	p := &Player{Body: Body{ID: id, Radius: PlayerRadius, Color: PlayerColor}}
	r := PlayerRadius
	p.X = float64(rng.IntN(max(1, width-2*r)) + r)
	p.Y = float64(rng.IntN(max(1, height-2*r)) + r)
	p.VX = symmetric(rng) * (BallSpawnSpeedBase + float64(rng.IntN(BallSpawnSpeedRange))) / 1000
	p.VY = symmetric(rng) * (BallSpawnSpeedBase + float64(rng.IntN(BallSpawnSpeedRange))) / 1000
	p.Variant = rng.IntN(BallVariantRange)
	return p
}

// Apply stores a new input state. Axes are clamped to [-1, 1].
func (p *Player) Apply(in PlayerInput) {
	p.Mode = in.Mode
	p.DirX = Clamp(in.DirX, -1, 1)
	p.DirY = Clamp(in.DirY, -1, 1)
	p.Turbo = in.Turbo
	switch {
	case in.Rotate < 0:
		p.Rotate = -1
	case in.Rotate > 0:
		p.Rotate = 1
	default:
		p.Rotate = 0
	}
	p.Forward = in.Forward
	p.Backward = in.Backward
}

// MaxSpeed returns the cap for the current mode and turbo state
func (p *Player) MaxSpeed() float64 {
	if p.Mode == ModeShip {
		return PlayerMaxSpeed
	}
	return PlayerDirectMaxSpeed * p.turboMul()
}

func (p *Player) turboMul() float64 {
	if p.Turbo {
		return PlayerTurboMul
	}
	return 1
}

// Update advances the player by dt milliseconds
func (p *Player) Update(dt float64, width, height int, room *Room, rng *rand.Rand) {
	if p.Mode == ModeShip {
		p.steer(dt)
	} else {
		p.drive(dt)
	}

	maxSpd := p.MaxSpeed()
	p.limitSpeed(maxSpd)
	if math.Abs(p.VX) < velocitySnap {
		p.VX = 0
	}
	if math.Abs(p.VY) < velocitySnap {
		p.VY = 0
	}
	p.move(dt)

	p.bounceWalls(width, height)
	p.interactRoom(room, rng, maxSpd)
}

// drive applies direct-mode thrust, or friction when there is no input
func (p *Player) drive(dt float64) {
	l := math.Sqrt(p.DirX*p.DirX + p.DirY*p.DirY)
	if l <= 1e-6 {
		p.brake(dt)
		return
	}
	accel := PlayerDirectAccel * p.turboMul()
	p.AX = p.DirX / l * accel
	p.AY = p.DirY / l * accel
	p.accelerate(dt)
}

// steer integrates the heading and applies thrust along it
func (p *Player) steer(dt float64) {
	if p.Rotate != 0 {
		if p.Rotate != p.lastRotate {
			p.AngularVel += float64(p.Rotate) * PlayerAngImpulse
		}
		p.AngularVel += float64(p.Rotate) * PlayerAngAccel * dt
		p.AngularVel = Clamp(p.AngularVel, -PlayerMaxAngVel, PlayerMaxAngVel)
	} else if p.AngularVel > 0 {
		p.AngularVel = math.Max(0, p.AngularVel-PlayerAngDamp*dt)
	} else {
		p.AngularVel = math.Min(0, p.AngularVel+PlayerAngDamp*dt)
	}
	p.lastRotate = p.Rotate
	p.Angle = NormalizeAngle(p.Angle + p.AngularVel*dt)

	accel := 0.0
	if p.Forward {
		accel += PlayerAccel
	}
	if p.Backward {
		accel -= PlayerBackAccel
	}
	accel *= p.turboMul()

	if math.Abs(accel) <= 1e-12 {
		p.brake(dt)
		return
	}
	p.AX = math.Cos(p.Angle) * accel
	p.AY = math.Sin(p.Angle) * accel
	p.accelerate(dt)
}

// brake decelerates against the current velocity and stops dead instead of
// overshooting through zero.
func (p *Player) brake(dt float64) {
	v := p.Speed()
	if v <= PlayerFriction*dt {
		p.VX, p.VY = 0, 0
		p.AX, p.AY = 0, 0
		return
	}
	p.AX = -(p.VX / v) * PlayerFriction
	p.AY = -(p.VY / v) * PlayerFriction
	p.accelerate(dt)
}

// ToState converts to a render snapshot
func (p *Player) ToState() PlayerState {
	return PlayerState{
		BallState: BallState{
			ID:      p.ID,
			X:       p.X,
			Y:       p.Y,
			Radius:  p.Radius,
			Color:   p.Color.Hex(),
			Variant: p.Variant,
			InRoom:  p.InRoom,
		},
		Angle:      p.Angle,
		VX:         p.VX,
		VY:         p.VY,
		Turbo:      p.Turbo,
		Controlled: p.Controlled,
		Mode:       p.Mode.String(),
	}
}
