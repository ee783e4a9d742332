package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sgomezmalagon/juego-bolas/internal/journal"
	"github.com/sgomezmalagon/juego-bolas/internal/sim"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
)

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
	authorized bool // may add the player and send input
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client. Without an auth gate it starts authorized.
func NewClient(hub *Hub, conn *websocket.Conn, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		remoteAddr: remoteAddr,
		authorized: hub.auth == nil || !hub.auth.Required(),
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Warn().Err(err).Str("addr", c.remoteAddr).Msg("ws read")
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.hub.log.Warn().Str("addr", c.remoteAddr).Msg("rate limit exceeded, disconnecting")
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// Check for binary marker (0xFF prefix from SendBinary)
			var err error
			if len(message) > 0 && message[0] == 0xFF {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.hub.log.Error().Err(err).Msg("marshal")
		return
	}
	c.SendRaw(data)
}

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }() // send may already be closed by the hub
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// SendBinary sends pre-marshaled bytes as a binary WebSocket message.
// Prefixes with 0xFF marker byte so WritePump can distinguish from text.
// JSON text never starts with 0xFF.
func (c *Client) SendBinary(data []byte) {
	defer func() { recover() }()
	msg := make([]byte, len(data)+1)
	msg[0] = 0xFF
	copy(msg[1:], data)
	select {
	case c.send <- msg:
	default:
	}
}

func (c *Client) sendError(msg string) {
	c.SendJSON(Envelope{T: MsgError, Data: ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.hub.log.Debug().Err(err).Str("addr", c.remoteAddr).Msg("unmarshal")
		return
	}

	switch env.T {
	case MsgAdd:
		c.handleAdd()
	case MsgAddPlayer:
		c.handleAddPlayer()
	case MsgClear:
		c.handleClear()
	case MsgResize:
		c.handleResize(env.D)
	case MsgInput:
		c.handleInput(env.D)
	case MsgLogin:
		c.handleLogin(env.D)
	case MsgAuth:
		c.handleAuth(env.D)
	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) handleAdd() {
	g := c.hub.game
	id := g.AddBall()
	c.SendJSON(Envelope{T: MsgAdded, Data: AddedMsg{ID: uint64(id), Count: g.Count()}})
}

func (c *Client) handleAddPlayer() {
	if !c.authorized {
		c.sendError("not authorized")
		return
	}
	id, ok := c.hub.game.AddPlayer()
	c.SendJSON(Envelope{T: MsgPlayer, Data: PlayerMsg{ID: uint64(id), OK: ok}})
}

func (c *Client) handleClear() {
	n := c.hub.game.ClearBalls()
	c.SendJSON(Envelope{T: MsgCleared, Data: ClearedMsg{Removed: n}})
}

func (c *Client) handleResize(data json.RawMessage) {
	var msg ResizeMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("bad resize")
		return
	}
	if err := c.hub.game.Resize(msg.Width, msg.Height); err != nil {
		c.sendError(err.Error())
		return
	}
	c.SendJSON(Envelope{T: MsgResized, Data: msg})
}

func (c *Client) handleInput(data json.RawMessage) {
	if !c.authorized {
		c.sendError("not authorized")
		return
	}
	var in sim.PlayerInput
	if err := json.Unmarshal(data, &in); err != nil {
		return
	}
	if !c.hub.game.SetInput(in) {
		c.sendError("no player")
	}
}

func (c *Client) handleLogin(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError(ErrAuthDisabled.Error())
		return
	}
	var msg LoginMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	token, err := c.hub.auth.Login(msg.Password, c.remoteAddr)
	if err != nil {
		if errors.Is(err, ErrBadPassword) || errors.Is(err, ErrRateLimited) {
			c.hub.record(journal.EvtLoginFailed, c.remoteAddr)
		}
		c.sendError(err.Error())
		return
	}
	c.authorized = true
	c.hub.record(journal.EvtLogin, c.remoteAddr)
	c.SendJSON(Envelope{T: MsgToken, Data: TokenMsg{Token: token}})
}

func (c *Client) handleAuth(data json.RawMessage) {
	if c.hub.auth == nil {
		c.sendError(ErrAuthDisabled.Error())
		return
	}
	var msg AuthMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if err := c.hub.auth.ValidateToken(msg.Token); err != nil {
		c.sendError(ErrInvalidToken.Error())
		return
	}
	c.authorized = true
	c.SendJSON(Envelope{T: MsgToken, Data: TokenMsg{Token: msg.Token}})
}
