package sim

import "sync"

// Rect is an axis-aligned rectangle in world pixels.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Room is the central zone that admits at most one body at a time. It only
// remembers the occupant's id, never the body itself.
type Room struct {
	mu       sync.Mutex
	bounds   Rect
	occupant BodyID
}

// NewRoom creates an empty room
func NewRoom(x, y, width, height int) *Room {
	return &Room{bounds: Rect{X: x, Y: y, Width: width, Height: height}}
}

// centeredRoom returns a RoomWidth x RoomHeight room centered in the bounds
func centeredRoom(width, height int) *Room {
	return NewRoom((width-RoomWidth)/2, (height-RoomHeight)/2, RoomWidth, RoomHeight)
}

// Bounds returns the current rectangle
func (r *Room) Bounds() Rect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bounds
}

// MoveTo relocates the rectangle keeping its size
func (r *Room) MoveTo(x, y int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bounds.X = x
	r.bounds.Y = y
}

// Occupied reports whether a body is inside
func (r *Room) Occupied() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupant != 0
}

// Occupant returns the id of the body inside, or 0
func (r *Room) Occupant() BodyID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.occupant
}

// TryEnter admits id if the room is empty. A refusal leaves the room untouched.
func (r *Room) TryEnter(id BodyID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.occupant != 0 {
		return false
	}
	r.occupant = id
	return true
}

// TryLeave empties the room if id is the occupant; anyone else is ignored.
func (r *Room) TryLeave(id BodyID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.occupant == id {
		r.occupant = 0
	}
}

// Release frees the room when the occupant is removed from the world.
func (r *Room) Release(id BodyID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id == 0 || r.occupant != id {
		return false
	}
	r.occupant = 0
	return true
}

// Contains tests a body center, rounded to whole pixels, against the
// half-open rectangle.
func (r *Room) Contains(x, y float64) bool {
	b := r.Bounds()
	cx, cy := roundPx(x), roundPx(y)
	return cx >= b.X && cx < b.X+b.Width && cy >= b.Y && cy < b.Y+b.Height
}

// Intersects reports whether a disk touches the rectangle, using the closest
// point on the rectangle to the disk center.
func (r *Room) Intersects(x, y float64, radius int) bool {
	b := r.Bounds()
	cx, cy := roundPx(x), roundPx(y)
	closestX := max(b.X, min(cx, b.X+b.Width))
	closestY := max(b.Y, min(cy, b.Y+b.Height))
	dx := cx - closestX
	dy := cy - closestY
	return dx*dx+dy*dy < radius*radius
}

func roundPx(v float64) int {
	return int(roundHalfUp(v))
}
