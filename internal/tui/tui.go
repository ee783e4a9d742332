// Package tui is a terminal front-end for a running game: it draws
// snapshots with tcell and turns key presses into commands and player input.
package tui

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"

	"github.com/sgomezmalagon/juego-bolas/internal/game"
	"github.com/sgomezmalagon/juego-bolas/internal/logging"
	"github.com/sgomezmalagon/juego-bolas/internal/sim"
)

const (
	frameInterval = 33 * time.Millisecond
	// Terminals report presses and repeats but no releases, so a direction
	// stays held this long after its last key event.
	holdWindow  = 250 * time.Millisecond
	statusTTL   = 3 * time.Second
	eventBuffer = 64
)

type direction int

const (
	dirUp direction = iota
	dirDown
	dirLeft
	dirRight
	dirCount
)

var (
	styleRoom     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleRoomBusy = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleStatus   = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
)

// UI owns the screen. It is not safe for concurrent use; Run is the only
// goroutine touching it.
type UI struct {
	screen tcell.Screen
	game   *game.Game
	log    zerolog.Logger

	held  [dirCount]time.Time
	turbo bool
	mode  sim.ControlMode
	last  sim.PlayerInput
	sent  bool

	status   string
	statusAt time.Time
}

// New binds a UI to screen. The screen is initialised by Run.
func New(screen tcell.Screen, g *game.Game, log zerolog.Logger) *UI {
	return &UI{
		screen: screen,
		game:   g,
		log:    logging.Component(log, "tui"),
	}
}

// Run draws frames and handles keys until ctx is cancelled or the user
// quits. Quitting returns nil; the caller decides whether that stops the
// process.
func (u *UI) Run(ctx context.Context) error {
	if err := u.screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer u.screen.Fini()
	u.screen.HideCursor()

	done := make(chan struct{})
	defer close(done)
	events := make(chan tcell.Event, eventBuffer)
	go func() {
		for {
			ev := u.screen.PollEvent()
			if ev == nil {
				return // screen finalised
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	u.log.Debug().Msg("terminal front-end started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !u.handleEvent(ev, time.Now()) {
				u.log.Info().Msg("quit from terminal")
				return nil
			}
		case now := <-ticker.C:
			u.pushInput(now)
			u.draw(now)
		}
	}
}

// handleEvent applies one terminal event. It returns false on quit.
func (u *UI) handleEvent(ev tcell.Event, now time.Time) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return u.handleKey(ev, now)
	case *tcell.EventResize:
		u.screen.Sync()
	}
	return true
}

func (u *UI) handleKey(ev *tcell.EventKey, now time.Time) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		u.held[dirUp] = now
	case tcell.KeyDown:
		u.held[dirDown] = now
	case tcell.KeyLeft:
		u.held[dirLeft] = now
	case tcell.KeyRight:
		u.held[dirRight] = now
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'q', 'Q':
			return false
		case 'w', 'W':
			u.held[dirUp] = now
		case 's', 'S':
			u.held[dirDown] = now
		case 'a', 'A':
			u.held[dirLeft] = now
		case 'd', 'D':
			u.held[dirRight] = now
		case 't', 'T':
			u.turbo = !u.turbo
			u.setStatus(now, "turbo "+onOff(u.turbo))
		case 'm', 'M':
			if u.mode == sim.ModeShip {
				u.mode = sim.ModeDirect
			} else {
				u.mode = sim.ModeShip
			}
			u.setStatus(now, u.mode.String()+" mode")
		case 'b', 'B':
			u.game.AddBall()
		case 'p', 'P':
			if _, ok := u.game.AddPlayer(); !ok {
				u.setStatus(now, "player already exists")
			}
		case 'c', 'C':
			n := u.game.ClearBalls()
			u.setStatus(now, fmt.Sprintf("removed %d balls", n))
		}
	}
	u.pushInput(now)
	return true
}

func (u *UI) setStatus(now time.Time, msg string) {
	u.status = msg
	u.statusAt = now
}

func (u *UI) isHeld(d direction, now time.Time) bool {
	t := u.held[d]
	return !t.IsZero() && now.Sub(t) < holdWindow
}

// input derives the player input from the held directions and toggles
func (u *UI) input(now time.Time) sim.PlayerInput {
	axis := func(neg, pos direction) int {
		v := 0
		if u.isHeld(neg, now) {
			v--
		}
		if u.isHeld(pos, now) {
			v++
		}
		return v
	}
	x := axis(dirLeft, dirRight)
	y := axis(dirUp, dirDown)

	in := sim.PlayerInput{Mode: u.mode, Turbo: u.turbo}
	if u.mode == sim.ModeShip {
		in.Rotate = x
		in.Forward = y < 0
		in.Backward = y > 0
	} else {
		in.DirX = float64(x)
		in.DirY = float64(y)
	}
	return in
}

// pushInput sends the input when it changed since the last accepted push
func (u *UI) pushInput(now time.Time) {
	in := u.input(now)
	if u.sent && in == u.last {
		return
	}
	if u.game.SetInput(in) {
		u.last = in
		u.sent = true
	}
}

// viewport maps world pixels to terminal cells. The bottom row is the
// status line.
type viewport struct {
	cols, rows int
	sx, sy     float64
}

func newViewport(cols, rows, width, height int) viewport {
	rows-- // status line
	if rows < 1 || cols < 1 || width <= 0 || height <= 0 {
		return viewport{}
	}
	return viewport{
		cols: cols,
		rows: rows,
		sx:   float64(cols) / float64(width),
		sy:   float64(rows) / float64(height),
	}
}

func (v viewport) cell(x, y float64) (int, int, bool) {
	cx := int(x * v.sx)
	cy := int(y * v.sy)
	if cx < 0 || cy < 0 || cx >= v.cols || cy >= v.rows {
		return 0, 0, false
	}
	return cx, cy, true
}

func (u *UI) draw(now time.Time) {
	snap := u.game.Snapshot()
	cols, rows := u.screen.Size()
	vp := newViewport(cols, rows, snap.Width, snap.Height)

	u.screen.Clear()
	if vp.cols > 0 {
		u.drawRoom(vp, snap.Room)
		for _, b := range snap.Balls {
			u.drawBall(vp, b)
		}
		for _, p := range snap.Players {
			u.drawPlayer(vp, p)
		}
	}
	u.drawStatus(snap, cols, rows, now)
	u.screen.Show()
}

func (u *UI) drawRoom(vp viewport, r sim.RoomState) {
	style := styleRoom
	if r.Occupied {
		style = styleRoomBusy
	}
	x0, y0 := int(float64(r.X)*vp.sx), int(float64(r.Y)*vp.sy)
	x1, y1 := int(float64(r.X+r.Width)*vp.sx), int(float64(r.Y+r.Height)*vp.sy)
	x1 = min(x1, vp.cols-1)
	y1 = min(y1, vp.rows-1)
	if x1 <= x0 || y1 <= y0 {
		return
	}
	for x := x0 + 1; x < x1; x++ {
		u.screen.SetContent(x, y0, tcell.RuneHLine, nil, style)
		u.screen.SetContent(x, y1, tcell.RuneHLine, nil, style)
	}
	for y := y0 + 1; y < y1; y++ {
		u.screen.SetContent(x0, y, tcell.RuneVLine, nil, style)
		u.screen.SetContent(x1, y, tcell.RuneVLine, nil, style)
	}
	u.screen.SetContent(x0, y0, tcell.RuneULCorner, nil, style)
	u.screen.SetContent(x1, y0, tcell.RuneURCorner, nil, style)
	u.screen.SetContent(x0, y1, tcell.RuneLLCorner, nil, style)
	u.screen.SetContent(x1, y1, tcell.RuneLRCorner, nil, style)
}

func (u *UI) drawBall(vp viewport, b sim.BallState) {
	x, y, ok := vp.cell(b.X, b.Y)
	if !ok {
		return
	}
	ch := 'o'
	if b.Radius >= 20 {
		ch = 'O'
	}
	style := tcell.StyleDefault.Foreground(tcell.GetColor(b.Color))
	if b.InRoom {
		style = style.Bold(true).Reverse(true)
	}
	u.screen.SetContent(x, y, ch, nil, style)
}

func (u *UI) drawPlayer(vp viewport, p sim.PlayerState) {
	x, y, ok := vp.cell(p.X, p.Y)
	if !ok {
		return
	}
	ch := '@'
	if p.Mode == sim.ModeShip.String() {
		ch = headingRune(p.Angle)
	}
	style := tcell.StyleDefault.Foreground(tcell.GetColor(p.Color)).Bold(true)
	if p.Turbo {
		style = style.Reverse(true)
	}
	u.screen.SetContent(x, y, ch, nil, style)
}

// headingRune picks one of eight arrows for a heading. Screen y grows
// downwards, so angle π/2 points down.
func headingRune(angle float64) rune {
	arrows := [8]rune{'→', '↘', '↓', '↙', '←', '↖', '↑', '↗'}
	octant := int(math.Round(angle/(math.Pi/4))) % 8
	if octant < 0 {
		octant += 8
	}
	return arrows[octant]
}

func (u *UI) drawStatus(snap sim.Snapshot, cols, rows int, now time.Time) {
	if rows < 1 {
		return
	}
	y := rows - 1
	for x := 0; x < cols; x++ {
		u.screen.SetContent(x, y, ' ', nil, styleStatus)
	}
	line := fmt.Sprintf(" balls %d | %s | turbo %s | tick %d ",
		len(snap.Balls), u.mode, onOff(u.turbo), snap.Tick)
	if len(snap.Players) == 0 {
		line += "| p: add player "
	}
	if u.status != "" && now.Sub(u.statusAt) < statusTTL {
		line += "| " + u.status + " "
	}
	for i, r := range []rune(line) {
		if i >= cols {
			break
		}
		u.screen.SetContent(i, y, r, nil, styleStatus)
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
