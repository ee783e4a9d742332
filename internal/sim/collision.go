package sim

import "math"

// Restitution of every body-body collision
const Restitution = 1.0

// CheckCollision checks if two circles overlap
func CheckCollision(x1, y1, r1, x2, y2, r2 float64) bool {
	dx := x2 - x1
	dy := y2 - y1
	radSum := r1 + r2
	return dx*dx+dy*dy < radSum*radSum
}

// resolvePair separates two overlapping bodies along the line between their
// centers and, if they are closing in, exchanges the normal component of
// their velocities. Both bodies have the same mass. Returns false when the
// pair does not overlap.
func resolvePair(a, b *Body) bool {
	dx := b.X - a.X
	dy := b.Y - a.Y
	minDist := float64(a.Radius + b.Radius)
	dist2 := dx*dx + dy*dy
	if dist2 >= minDist*minDist {
		return false
	}

	var nx, ny, dist float64
	if dist2 < coincidentDist2 {
		// same center: any normal works, pick +X
		nx, ny = 1, 0
		dist = math.Sqrt(dist2)
	} else {
		dist = math.Sqrt(dist2)
		nx, ny = dx/dist, dy/dist
	}

	half := (minDist - dist) / 2
	a.X -= nx * half
	a.Y -= ny * half
	b.X += nx * half
	b.Y += ny * half

	vn := (b.VX-a.VX)*nx + (b.VY-a.VY)*ny
	if vn < 0 {
		j := -(1 + Restitution) * vn / 2
		a.VX -= j * nx
		a.VY -= j * ny
		b.VX += j * nx
		b.VY += j * ny
	}
	return true
}

// resolveCollisions runs passes over bodies until a pass finds no overlap
// or iterations run out. Large sets go through grid when it is non-nil;
// small ones test every pair. Returns the overlaps resolved in the first
// pass.
func resolveCollisions(bodies []*Body, iterations int, grid *SpatialGrid) int {
	first := 0
	for it := 0; it < max(1, iterations); it++ {
		var n int
		if grid != nil && len(bodies) >= broadphaseMin {
			n = grid.pass(bodies)
		} else {
			n = allPairsPass(bodies)
		}
		if it == 0 {
			first = n
		}
		if n == 0 {
			break
		}
	}
	return first
}

func allPairsPass(bodies []*Body) int {
	n := 0
	for i := 0; i < len(bodies); i++ {
		for j := i + 1; j < len(bodies); j++ {
			if resolvePair(bodies[i], bodies[j]) {
				n++
			}
		}
	}
	return n
}
