package sim

import (
	"math"
	"slices"
)

const (
	// SpatialCellSize is twice the largest radius
	SpatialCellSize = 2.0 * BallMaxRadius

	// broadphaseMin is the body count from which collision passes go
	// through the grid instead of testing every pair
	broadphaseMin = 64

	// how far a body may drift from its query center before its
	// candidates are looked up again
	querySlack = BallMaxRadius
)

// SpatialGrid is a uniform grid over the world bounds for broad-phase
// collision queries. Bodies are stored by index into the pass's flat list.
type SpatialGrid struct {
	cols, rows int
	cells      [][]int
	where      []int // cell of each body during a pass
	buf        []int
}

// NewSpatialGrid creates a grid covering width x height
func NewSpatialGrid(width, height int) *SpatialGrid {
	g := &SpatialGrid{}
	g.Resize(width, height)
	return g
}

// Resize rebuilds the cells for new bounds. Callers keep the bounds within
// MaxWorldSize.
func (g *SpatialGrid) Resize(width, height int) {
	g.cols = max(1, int(float64(width)/SpatialCellSize)+1)
	g.rows = max(1, int(float64(height)/SpatialCellSize)+1)
	g.cells = make([][]int, g.cols*g.rows)
}

// Clear resets all cells (keeps allocated capacity)
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// cellRange clamps the cells covering [v-r, v+r] on one axis
func cellRange(v, r float64, n int) (int, int) {
	lo := int((v - r) / SpatialCellSize)
	hi := int((v + r) / SpatialCellSize)
	return min(max(lo, 0), n-1), min(max(hi, 0), n-1)
}

func (g *SpatialGrid) cellOf(x, y float64) int {
	cx, _ := cellRange(x, 0, g.cols)
	cy, _ := cellRange(y, 0, g.rows)
	return cy*g.cols + cx
}

// Insert adds body idx at its center's cell. Out-of-bounds positions
// clamp to the border cells.
func (g *SpatialGrid) Insert(x, y float64, idx int) {
	c := g.cellOf(x, y)
	g.cells[c] = append(g.cells[c], idx)
}

// QueryBuf appends the indices in cells overlapping the box around (x,y)
// to buf and returns the extended slice
func (g *SpatialGrid) QueryBuf(x, y, radius float64, buf []int) []int {
	minCX, maxCX := cellRange(x, radius, g.cols)
	minCY, maxCY := cellRange(y, radius, g.rows)
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			buf = append(buf, g.cells[cy*g.cols+cx]...)
		}
	}
	return buf
}

// rebin moves body idx to the cell of its current position
func (g *SpatialGrid) rebin(idx int, b *Body) {
	c := g.cellOf(b.X, b.Y)
	old := g.where[idx]
	if c == old {
		return
	}
	cell := g.cells[old]
	if k := slices.Index(cell, idx); k >= 0 {
		cell[k] = cell[len(cell)-1]
		g.cells[old] = cell[:len(cell)-1]
	}
	g.cells[c] = append(g.cells[c], idx)
	g.where[idx] = c
}

// candidates returns the sorted indices above after near (x,y)
func (g *SpatialGrid) candidates(x, y, radius float64, after int) []int {
	g.buf = g.QueryBuf(x, y, radius, g.buf[:0])
	g.buf = slices.DeleteFunc(g.buf, func(j int) bool { return j <= after })
	slices.Sort(g.buf)
	return g.buf
}

// pass resolves overlapping pairs in the same (i, j) order and against the
// same positions as the all-pairs loop, so both give identical results.
// Bodies are re-binned as they move. A body's candidates are looked up
// again once it drifts querySlack from where they were taken. Returns the
// number of overlaps resolved.
func (g *SpatialGrid) pass(bodies []*Body) int {
	g.Clear()
	g.where = g.where[:0]
	for i, b := range bodies {
		c := g.cellOf(b.X, b.Y)
		g.cells[c] = append(g.cells[c], i)
		g.where = append(g.where, c)
	}

	n := 0
	for i, a := range bodies {
		reach := float64(a.Radius) + BallMaxRadius + querySlack
		qx, qy := a.X, a.Y
		cand := g.candidates(qx, qy, reach, i)
		for k := 0; k < len(cand); k++ {
			j := cand[k]
			if !resolvePair(a, bodies[j]) {
				continue
			}
			n++
			g.rebin(i, a)
			g.rebin(j, bodies[j])
			if math.Hypot(a.X-qx, a.Y-qy) > querySlack {
				qx, qy = a.X, a.Y
				cand = g.candidates(qx, qy, reach, j)
				k = -1
			}
		}
	}
	return n
}
