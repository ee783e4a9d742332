package sim

// BallState is the render view of one autonomous body
type BallState struct {
	ID      BodyID  `json:"id"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Radius  int     `json:"r"`
	Color   string  `json:"c"`
	Variant int     `json:"v"`
	InRoom  bool    `json:"in,omitempty"`
}

// PlayerState adds heading, velocity and control flags
type PlayerState struct {
	BallState
	Angle      float64 `json:"a"`
	VX         float64 `json:"vx"`
	VY         float64 `json:"vy"`
	Turbo      bool    `json:"t,omitempty"`
	Controlled bool    `json:"ctl"`
	Mode       string  `json:"m"`
}

// RoomState is the render view of the room
type RoomState struct {
	X        int  `json:"x"`
	Y        int  `json:"y"`
	Width    int  `json:"w"`
	Height   int  `json:"h"`
	Occupied bool `json:"occ"`
}

// Snapshot is an immutable copy of the world taken under the read lock
type Snapshot struct {
	Width   int           `json:"w"`
	Height  int           `json:"h"`
	Tick    uint64        `json:"tick"`
	Room    RoomState     `json:"room"`
	Balls   []BallState   `json:"b"`
	Players []PlayerState `json:"p"`
}

// ToState converts to a render snapshot
func (r *Room) ToState() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomState{
		X:        r.bounds.X,
		Y:        r.bounds.Y,
		Width:    r.bounds.Width,
		Height:   r.bounds.Height,
		Occupied: r.occupant != 0,
	}
}
