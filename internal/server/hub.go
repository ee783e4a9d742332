package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sgomezmalagon/juego-bolas/internal/game"
	"github.com/sgomezmalagon/juego-bolas/internal/journal"
	"github.com/sgomezmalagon/juego-bolas/internal/logging"
)

const (
	defaultMaxConnsPerIP = 5
	defaultMaxTotalConns = 1000
	defaultBroadcastRate = 30
)

// StatsSource answers /stats and /events. *journal.Journal satisfies it.
type StatsSource interface {
	EventCounts(days int) (map[string]int, error)
	Recent(limit int) ([]journal.Event, error)
}

// Options configures a Hub
type Options struct {
	BroadcastRate int // snapshots per second
	MaxConnsPerIP int
	MaxConns      int
	Journal       game.Recorder
	Stats         StatsSource
	Logger        zerolog.Logger
}

// Hub tracks connected clients, applies their commands to the game and
// streams snapshots to all of them.
type Hub struct {
	game *game.Game
	auth *Auth
	opts Options
	log  zerolog.Logger

	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	done       chan struct{} // closed when Run exits

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int
}

// NewHub creates a Hub bound to g
func NewHub(g *game.Game, auth *Auth, opts Options) *Hub {
	if opts.BroadcastRate <= 0 {
		opts.BroadcastRate = defaultBroadcastRate
	}
	if opts.MaxConnsPerIP <= 0 {
		opts.MaxConnsPerIP = defaultMaxConnsPerIP
	}
	if opts.MaxConns <= 0 {
		opts.MaxConns = defaultMaxTotalConns
	}
	return &Hub{
		game:       g,
		auth:       auth,
		opts:       opts,
		log:        logging.Component(opts.Logger, "hub"),
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
		ipConns:    make(map[string]int),
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= h.opts.MaxConns {
		return false
	}
	if h.ipConns[ip] >= h.opts.MaxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events and broadcasts snapshots until
// ctx is cancelled. Remaining clients are closed on exit.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(h.opts.BroadcastRate))
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			// clients queued but never registered
			for {
				select {
				case c := <-h.register:
					close(c.send)
				default:
					return
				}
			}

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.record(journal.EvtClientJoin, client.remoteAddr)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.record(journal.EvtClientLeave, client.remoteAddr)

		case <-ticker.C:
			h.broadcastState()
		}
	}
}

func (h *Hub) record(evt, addr string) {
	if h.opts.Journal != nil {
		h.opts.Journal.TrackJSON(evt, 0, map[string]string{"addr": addr})
	}
	h.log.Debug().Str("event", evt).Str("addr", addr).Msg("client")
}

// broadcastState sends the current snapshot to every client as a binary frame
func (h *Hub) broadcastState() {
	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n == 0 {
		return
	}

	data, err := encodeSnapshot(h.game.Snapshot())
	if err != nil {
		h.log.Error().Err(err).Msg("encode snapshot")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.SendBinary(data)
	}
}

// Register hands a new client to Run. Returns false once the hub stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client; a no-op after the hub stopped
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
