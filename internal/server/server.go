package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sgomezmalagon/juego-bolas/internal/journal"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func isLoopback(ip string) bool {
	parsed := net.ParseIP(ip)
	return parsed != nil && parsed.IsLoopback()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket endpoint. ?token= authorizes the connection up front.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		authorized := false
		if tok := r.URL.Query().Get("token"); tok != "" && hub.auth != nil {
			if err := hub.auth.ValidateToken(tok); err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			authorized = true
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn().Err(err).Str("addr", ip).Msg("upgrade")
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, ip)
		client.authorized = client.authorized || authorized

		// queued before registering so it precedes any snapshot
		width, height := hub.game.World().Bounds()
		client.SendJSON(Envelope{T: MsgWelcome, Data: WelcomeMsg{
			Width:        width,
			Height:       height,
			AuthRequired: hub.auth != nil && hub.auth.Required(),
			Authorized:   client.authorized,
		}})

		if !hub.Register(client) {
			hub.TrackDisconnect(ip)
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
	})

	mux.HandleFunc("GET /state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, hub.game.Snapshot())
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		days := 1
		if d, err := strconv.Atoi(r.URL.Query().Get("days")); err == nil && d > 0 {
			days = d
		}
		counts := map[string]int{}
		if hub.opts.Stats != nil {
			c, err := hub.opts.Stats.EventCounts(days)
			if err != nil {
				hub.log.Error().Err(err).Msg("event counts")
				http.Error(w, "stats unavailable", http.StatusInternalServerError)
				return
			}
			counts = c
		}
		writeJSON(w, map[string]any{
			"days":    days,
			"events":  counts,
			"clients": hub.ClientCount(),
			"balls":   hub.game.Count(),
		})
	})

	mux.HandleFunc("GET /events", func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 500 {
			limit = n
		}
		events := []journal.Event{}
		if hub.opts.Stats != nil {
			ev, err := hub.opts.Stats.Recent(limit)
			if err != nil {
				hub.log.Error().Err(err).Msg("recent events")
				http.Error(w, "events unavailable", http.StatusInternalServerError)
				return
			}
			if ev != nil {
				events = ev
			}
		}
		writeJSON(w, events)
	})

	mux.HandleFunc("GET /pair.png", func(w http.ResponseWriter, r *http.Request) {
		if !isLoopback(extractIP(r)) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		png, err := pairingCode(hub.auth, r.Host, r.TLS != nil)
		if err != nil {
			hub.log.Error().Err(err).Msg("pairing code")
			http.Error(w, "pairing unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(png)
	})

	return mux
}

// Server serves the hub over HTTP until its context ends
type Server struct {
	hub  *Hub
	http *http.Server
}

// New builds a server listening on addr
func New(addr string, hub *Hub) *Server {
	return &Server{
		hub: hub,
		http: &http.Server{
			Addr:              addr,
			Handler:           SetupRoutes(hub),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Run starts the hub and the listener. It returns when ctx is cancelled
// (nil) or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.hub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.hub.log.Info().Str("addr", ln.Addr().String()).Msg("http listening")
		errCh <- s.http.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	}
}
