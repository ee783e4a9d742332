package sim

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Hex formats the color as #rrggbb
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Clamp restricts v to [min, max]
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// Distance returns the distance between two points
func Distance(x1, y1, x2, y2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	return math.Sqrt(dx*dx + dy*dy)
}

// NormalizeAngle wraps angle to (-PI, PI]
func NormalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a <= -math.Pi {
		a += 2 * math.Pi
	}
	return a
}

// NewRand returns a seeded random source. Each World owns one; it is not
// safe for concurrent use and is only touched under the world lock.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// symmetric returns a uniform value in [-1, 1)
func symmetric(rng *rand.Rand) float64 {
	return rng.Float64()*2 - 1
}

func jitter(rng *rand.Rand) float64 {
	return symmetric(rng) * BounceJitter
}

// roundHalfUp rounds .5 toward positive infinity, so -2.5 becomes -2
func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
